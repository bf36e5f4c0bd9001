package logger

import (
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestCounters(t *testing.T) {
	before := Counters()

	IncrementOrderbookFrame(128)
	IncrementTradeFrame(64)
	IncrementControlSent(32)
	IncrementDecodeFailure()

	after := Counters()
	if after["orderbook_frames"] != before["orderbook_frames"]+1 {
		t.Errorf("orderbook counter not incremented: %v -> %v", before, after)
	}
	if after["trade_frames"] != before["trade_frames"]+1 {
		t.Errorf("trade counter not incremented: %v -> %v", before, after)
	}
	if after["control_sent"] != before["control_sent"]+1 {
		t.Errorf("control counter not incremented: %v -> %v", before, after)
	}
	if after["decode_failures"] != before["decode_failures"]+1 {
		t.Errorf("decode failure counter not incremented: %v -> %v", before, after)
	}
}

func TestWarnCounting(t *testing.T) {
	log := Logger()
	before := warnsDecoder
	log.WithComponent("feed_decoder").Warn("malformed payload")
	if warnsDecoder != before+1 {
		t.Errorf("decoder warn not recorded: %d -> %d", before, warnsDecoder)
	}
}
