package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Fixed-point scales used by the DLOB feed. Prices and the oracle are
// 1e6-scaled integers, sizes are 1e9-scaled.
const (
	PriceScale = 1_000_000
	SizeScale  = 1_000_000_000
)

// FixedPoint is an integer fixed-point value as delivered by the feed.
// The endpoint is inconsistent about encoding these as JSON numbers or
// numeric strings, so both are accepted.
type FixedPoint int64

func (f *FixedPoint) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FixedPoint(i)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid fixed-point value %q: %w", s, err)
	}
	*f = FixedPoint(v)
	return nil
}

// Float converts the raw integer into a display value using the given scale.
func (f FixedPoint) Float(scale int64) float64 {
	return float64(f) / float64(scale)
}

// OrderBookLevel is a single price level of one book side.
type OrderBookLevel struct {
	Price FixedPoint `json:"price"`
	Size  FixedPoint `json:"size"`
	Total FixedPoint `json:"total"`
}

// OrderBookSnapshot is the decoded payload of an orderbook channel frame.
// Asks are stored best-first (ascending price); renderers reverse them for
// display.
type OrderBookSnapshot struct {
	MarketName string           `json:"marketName"`
	Bids       []OrderBookLevel `json:"bids"`
	Asks       []OrderBookLevel `json:"asks"`
	Oracle     FixedPoint       `json:"oracle"`
}

// Truncate caps both book sides at depth levels. It is applied on ingestion
// to bound memory and render cost.
func (s *OrderBookSnapshot) Truncate(depth int) {
	if depth <= 0 {
		return
	}
	if len(s.Bids) > depth {
		s.Bids = s.Bids[:depth]
	}
	if len(s.Asks) > depth {
		s.Asks = s.Asks[:depth]
	}
}

// Envelope is the top-level inbound frame. Data carries a second
// JSON-encoded document; that double encoding is fixed by the upstream
// endpoint and preserved at the wire boundary.
type Envelope struct {
	Channel string `json:"channel"`
	Data    string `json:"data"`
}

// DecodeOrderBook parses the nested payload of an orderbook frame.
func DecodeOrderBook(data string) (*OrderBookSnapshot, error) {
	var snap OrderBookSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode orderbook payload: %w", err)
	}
	return &snap, nil
}
