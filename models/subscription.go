package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MarketType distinguishes perpetual and spot markets on the feed.
type MarketType string

const (
	MarketTypePerp MarketType = "perp"
	MarketTypeSpot MarketType = "spot"
)

// ChannelKind is one data stream variety for a market.
type ChannelKind string

const (
	ChannelOrderbook ChannelKind = "orderbook"
	ChannelTrades    ChannelKind = "trades"
)

// SubscriptionSpec identifies one (market, channel) stream to keep active.
type SubscriptionSpec struct {
	MarketType MarketType  `json:"marketType"`
	Channel    ChannelKind `json:"channel"`
	Market     string      `json:"market"`
}

// ControlFrame is the outbound subscribe/unsubscribe request understood by
// the endpoint.
type ControlFrame struct {
	Type       string      `json:"type"`
	MarketType MarketType  `json:"marketType"`
	Channel    ChannelKind `json:"channel"`
	Market     string      `json:"market"`
}

// SubscribeFrame builds the control frame activating this spec.
func (s SubscriptionSpec) SubscribeFrame() ControlFrame {
	return ControlFrame{Type: "subscribe", MarketType: s.MarketType, Channel: s.Channel, Market: s.Market}
}

// UnsubscribeFrame builds the control frame deactivating this spec.
func (s SubscriptionSpec) UnsubscribeFrame() ControlFrame {
	return ControlFrame{Type: "unsubscribe", MarketType: s.MarketType, Channel: s.Channel, Market: s.Market}
}

// PingFrame is the periodic keep-alive sent while the connection is open.
type PingFrame struct {
	Type string   `json:"type"`
	Data PingData `json:"data"`
}

type PingData struct {
	Timestamp int64 `json:"timestamp"`
}

// PerpTicker converts a base currency into the perp market ticker used in
// subscription requests, e.g. "SOL" -> "SOL-PERP".
func PerpTicker(base string) string {
	return strings.ToUpper(strings.TrimSpace(base)) + "-PERP"
}

// ChannelID builds the store/routing key for one channel+market stream,
// e.g. ("orderbook", "perp", 0) -> "orderbook_perp_0".
func ChannelID(kind ChannelKind, marketType MarketType, marketIndex int) string {
	return fmt.Sprintf("%s_%s_%d", kind, marketType, marketIndex)
}

// ParseChannelID splits a channel identifier back into its parts. It
// tolerates suffixes after the index segment, which some feeds append.
func ParseChannelID(id string) (kind ChannelKind, marketType MarketType, marketIndex int, ok bool) {
	parts := strings.Split(id, "_")
	if len(parts) < 3 {
		return "", "", 0, false
	}
	switch ChannelKind(parts[0]) {
	case ChannelOrderbook, ChannelTrades:
		kind = ChannelKind(parts[0])
	default:
		return "", "", 0, false
	}
	switch MarketType(parts[1]) {
	case MarketTypePerp, MarketTypeSpot:
		marketType = MarketType(parts[1])
	default:
		return "", "", 0, false
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", "", 0, false
	}
	return kind, marketType, idx, true
}
