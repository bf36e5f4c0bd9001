package store

import (
	"testing"

	"driftflow/models"
)

func TestUpsertReplaces(t *testing.T) {
	s := New()

	first := &models.OrderBookSnapshot{MarketName: "SOL-PERP"}
	second := &models.OrderBookSnapshot{MarketName: "SOL-PERP", Oracle: 42}
	s.Upsert("orderbook_perp_0", first)
	s.Upsert("orderbook_perp_0", second)

	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}
	snap, ok := s.OrderBook("orderbook_perp_0")
	if !ok {
		t.Fatal("orderbook record missing")
	}
	if snap.Oracle != 42 {
		t.Errorf("expected latest snapshot to win, got oracle %d", snap.Oracle)
	}
}

func TestAppendHistoryBounds(t *testing.T) {
	s := New()

	for i := 1; i <= 5; i++ {
		s.AppendHistory("trades_perp_0", models.TradeEvent{TS: int64(i)}, 3)
	}

	history, ok := s.Trades("trades_perp_0")
	if !ok {
		t.Fatal("trade history missing")
	}
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
	if history[0].TS != 5 || history[1].TS != 4 || history[2].TS != 3 {
		t.Errorf("expected newest-first ordering, got %#v", history)
	}
}

func TestAppendHistoryCreatesRecord(t *testing.T) {
	s := New()
	s.AppendHistory("trades_perp_2", models.TradeEvent{TS: 1}, 30)

	history, ok := s.Trades("trades_perp_2")
	if !ok || len(history) != 1 {
		t.Fatalf("expected one-element history, got %#v (ok=%v)", history, ok)
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := New()
	s.Upsert("orderbook_perp_0", &models.OrderBookSnapshot{})
	s.Upsert("trades_perp_0", []models.TradeEvent{})

	s.Remove("orderbook_perp_0")
	if _, ok := s.Get("orderbook_perp_0"); ok {
		t.Error("record should be gone after Remove")
	}
	// Removing an absent id is a no-op.
	s.Remove("orderbook_perp_0")

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("expected empty store after Clear, got %d records", s.Len())
	}
}

func TestFind(t *testing.T) {
	s := New()
	s.Upsert("orderbook_perp_7", &models.OrderBookSnapshot{MarketName: "RNDR-PERP"})

	rec, ok := s.Find(func(r Record) bool { return r.ID == "orderbook_perp_7" })
	if !ok || rec.ID != "orderbook_perp_7" {
		t.Errorf("Find missed the record: %#v (ok=%v)", rec, ok)
	}

	if _, ok := s.Find(func(r Record) bool { return false }); ok {
		t.Error("Find matched nothing, expected ok=false")
	}
}

func TestWatchNotifications(t *testing.T) {
	s := New()

	var calls int
	cancel := s.Watch(func() { calls++ })

	s.Upsert("orderbook_perp_0", &models.OrderBookSnapshot{})
	s.AppendHistory("trades_perp_0", models.TradeEvent{TS: 1}, 30)
	s.Remove("orderbook_perp_0")
	s.Remove("does_not_exist")

	if calls != 3 {
		t.Errorf("expected 3 notifications, got %d", calls)
	}

	cancel()
	s.Clear()
	if calls != 3 {
		t.Errorf("expected no notifications after cancel, got %d", calls)
	}
}

func TestSnapshotCopies(t *testing.T) {
	s := New()
	s.Upsert("orderbook_perp_0", &models.OrderBookSnapshot{})
	s.Upsert("trades_perp_0", []models.TradeEvent{{TS: 1}})

	snapshot := s.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 records in snapshot, got %d", len(snapshot))
	}
	for _, rec := range snapshot {
		if rec.LastUpdate.IsZero() {
			t.Errorf("record %s missing update timestamp", rec.ID)
		}
	}
}
