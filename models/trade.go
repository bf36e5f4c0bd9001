package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Direction is the taker side of a fill.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// TradeEvent is a single fill streamed on a trades channel. Amounts use the
// on-chain precision convention: base 1e9-scaled, quote 1e6-scaled.
type TradeEvent struct {
	TS                     int64      `json:"ts"`
	MarketIndex            int        `json:"marketIndex"`
	TakerOrderDirection    Direction  `json:"takerOrderDirection"`
	BaseAssetAmountFilled  FixedPoint `json:"baseAssetAmountFilled"`
	QuoteAssetAmountFilled FixedPoint `json:"quoteAssetAmountFilled"`
	TxSig                  string     `json:"txSig"`
}

// Price derives the fill price from the quote and base amounts.
func (t TradeEvent) Price() float64 {
	base := t.BaseAssetAmountFilled.Float(SizeScale)
	if base == 0 {
		return 0
	}
	return t.QuoteAssetAmountFilled.Float(PriceScale) / base
}

// Size returns the filled base amount as a display value.
func (t TradeEvent) Size() float64 {
	return t.BaseAssetAmountFilled.Float(SizeScale)
}

// Valid reports whether the event carries enough data to display. Entries
// with a missing timestamp or fill amounts are filtered before rendering.
func (t TradeEvent) Valid() bool {
	return t.TS != 0 && t.BaseAssetAmountFilled != 0 && t.QuoteAssetAmountFilled != 0
}

// DecodeTrades parses the nested payload of a trades frame. The endpoint
// emits either a single event object or an array of events; both shapes are
// handled.
func DecodeTrades(data string) ([]TradeEvent, error) {
	raw := []byte(data)

	var many []TradeEvent
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}

	var one TradeEvent
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("failed to decode trade payload: %w", err)
	}
	return []TradeEvent{one}, nil
}

// ValidTrades filters out incomplete events and orders the remainder
// newest-first, bounded at max entries.
func ValidTrades(trades []TradeEvent, max int) []TradeEvent {
	out := make([]TradeEvent, 0, len(trades))
	for _, t := range trades {
		if t.Valid() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS > out[j].TS })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
