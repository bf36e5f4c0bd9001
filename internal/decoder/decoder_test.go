package decoder

import (
	"testing"

	"driftflow/internal/store"
	"driftflow/logger"
	"driftflow/models"
)

func TestHandleOrderBook(t *testing.T) {
	st := store.New()
	d := New(st, 10, 30)

	d.Handle(models.Envelope{
		Channel: "orderbook_perp_0",
		Data:    `{"marketName":"SOL-PERP","bids":[{"price":"149250000","size":"1000000000"}],"asks":[],"oracle":"149275000"}`,
	})

	snap, ok := st.OrderBook("orderbook_perp_0")
	if !ok {
		t.Fatal("orderbook record missing after handle")
	}
	if snap.MarketName != "SOL-PERP" || len(snap.Bids) != 1 {
		t.Errorf("unexpected snapshot: %#v", snap)
	}
}

func TestHandleOrderBookDepthCap(t *testing.T) {
	st := store.New()
	d := New(st, 2, 30)

	d.Handle(models.Envelope{
		Channel: "orderbook_perp_0",
		Data:    `{"marketName":"SOL-PERP","bids":[{"price":"3"},{"price":"2"},{"price":"1"}],"asks":[{"price":"4"},{"price":"5"},{"price":"6"}]}`,
	})

	snap, ok := st.OrderBook("orderbook_perp_0")
	if !ok {
		t.Fatal("orderbook record missing")
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 2 {
		t.Errorf("expected 2 levels per side, got %d bids / %d asks", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Price != 3 || snap.Asks[0].Price != 4 {
		t.Errorf("truncate kept the wrong end of the book: %#v", snap)
	}
}

func TestHandleMalformedOrderBookKeepsPrevious(t *testing.T) {
	st := store.New()
	d := New(st, 10, 30)

	d.Handle(models.Envelope{
		Channel: "orderbook_perp_0",
		Data:    `{"marketName":"SOL-PERP","oracle":"1"}`,
	})

	before := logger.Counters()
	d.Handle(models.Envelope{
		Channel: "orderbook_perp_0",
		Data:    `{"oracle": garbage`,
	})
	after := logger.Counters()

	snap, ok := st.OrderBook("orderbook_perp_0")
	if !ok {
		t.Fatal("previous snapshot should survive a malformed frame")
	}
	if snap.Oracle != 1 {
		t.Errorf("previous snapshot was overwritten: %#v", snap)
	}

	if after["decode_failures"] != before["decode_failures"]+1 {
		t.Errorf("decode failure not counted: %v -> %v", before["decode_failures"], after["decode_failures"])
	}
	if after["dropped_frames"] != before["dropped_frames"]+1 {
		t.Errorf("dropped frame not counted: %v -> %v", before["dropped_frames"], after["dropped_frames"])
	}
}

func TestHandleTrades(t *testing.T) {
	st := store.New()
	d := New(st, 10, 3)

	d.Handle(models.Envelope{
		Channel: "trades_perp_0",
		Data:    `[{"ts":1,"baseAssetAmountFilled":"1","quoteAssetAmountFilled":"1"},{"ts":2,"baseAssetAmountFilled":"1","quoteAssetAmountFilled":"1"}]`,
	})
	d.Handle(models.Envelope{
		Channel: "trades_perp_0",
		Data:    `{"ts":3,"baseAssetAmountFilled":"1","quoteAssetAmountFilled":"1"}`,
	})
	d.Handle(models.Envelope{
		Channel: "trades_perp_0",
		Data:    `{"ts":4,"baseAssetAmountFilled":"1","quoteAssetAmountFilled":"1"}`,
	})

	history, ok := st.Trades("trades_perp_0")
	if !ok {
		t.Fatal("trade history missing")
	}
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
	if history[0].TS != 4 || history[1].TS != 3 || history[2].TS != 2 {
		t.Errorf("unexpected history ordering: %#v", history)
	}
}

func TestHandleUnknownChannel(t *testing.T) {
	st := store.New()
	d := New(st, 10, 30)

	d.Handle(models.Envelope{Channel: "candles_perp_0", Data: `{}`})
	d.Handle(models.Envelope{Channel: "heartbeat", Data: ``})

	if st.Len() != 0 {
		t.Errorf("unknown channels should not create records, got %d", st.Len())
	}
}
