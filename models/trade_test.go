package models

import "testing"

func TestDecodeTradesArray(t *testing.T) {
	data := `[{"ts":1700000001,"marketIndex":0,"takerOrderDirection":"long","baseAssetAmountFilled":"1000000000","quoteAssetAmountFilled":"149250000","txSig":"sig-a"},{"ts":1700000002,"marketIndex":0,"takerOrderDirection":"short","baseAssetAmountFilled":"2000000000","quoteAssetAmountFilled":"298500000","txSig":"sig-b"}]`

	trades, err := DecodeTrades(data)
	if err != nil {
		t.Fatalf("DecodeTrades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].TxSig != "sig-a" || trades[1].TakerOrderDirection != DirectionShort {
		t.Errorf("unexpected trades: %#v", trades)
	}
}

func TestDecodeTradesSingleObject(t *testing.T) {
	data := `{"ts":1700000001,"marketIndex":2,"takerOrderDirection":"long","baseAssetAmountFilled":"1000000000","quoteAssetAmountFilled":"149250000","txSig":"sig-a"}`

	trades, err := DecodeTrades(data)
	if err != nil {
		t.Fatalf("DecodeTrades failed: %v", err)
	}
	if len(trades) != 1 || trades[0].MarketIndex != 2 {
		t.Fatalf("expected single trade for market 2, got %#v", trades)
	}
}

func TestDecodeTradesMalformed(t *testing.T) {
	if _, err := DecodeTrades(`not json at all`); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestTradePriceAndSize(t *testing.T) {
	trade := TradeEvent{
		BaseAssetAmountFilled:  2_000_000_000,
		QuoteAssetAmountFilled: 298_500_000,
	}
	if got := trade.Size(); got != 2.0 {
		t.Errorf("size: got %v, want 2.0", got)
	}
	if got := trade.Price(); got != 149.25 {
		t.Errorf("price: got %v, want 149.25", got)
	}

	empty := TradeEvent{}
	if got := empty.Price(); got != 0 {
		t.Errorf("price of empty fill should be 0, got %v", got)
	}
}

func TestValidTrades(t *testing.T) {
	trades := []TradeEvent{
		{TS: 10, BaseAssetAmountFilled: 1, QuoteAssetAmountFilled: 1},
		{TS: 0, BaseAssetAmountFilled: 1, QuoteAssetAmountFilled: 1},
		{TS: 30, BaseAssetAmountFilled: 1, QuoteAssetAmountFilled: 1},
		{TS: 20, BaseAssetAmountFilled: 0, QuoteAssetAmountFilled: 1},
		{TS: 20, BaseAssetAmountFilled: 1, QuoteAssetAmountFilled: 1},
	}

	out := ValidTrades(trades, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(out))
	}
	if out[0].TS != 30 || out[1].TS != 20 {
		t.Errorf("expected newest-first ordering, got %v then %v", out[0].TS, out[1].TS)
	}

	all := ValidTrades(trades, 0)
	if len(all) != 3 {
		t.Errorf("expected 3 valid trades with no cap, got %d", len(all))
	}
}
