// Package decoder classifies inbound feed frames and routes their payloads
// into the market state store. Payloads arrive double-encoded: the frame is
// JSON and its data field is itself a JSON document in a string. The decoder
// is the only place raw payload strings are handled; everything downstream
// sees typed values.
package decoder

import (
	"strings"

	"github.com/sirupsen/logrus"

	"driftflow/internal/store"
	"driftflow/logger"
	"driftflow/models"
)

// Channel substrings marking the two known stream varieties. Anything else
// is ignored so new upstream channels do not break ingestion.
const (
	orderbookMarker = "orderbook_"
	tradesMarker    = "trades_"
)

// Decoder ingests envelopes and writes decoded market data into the store.
// It is the sole writer of stream data; decode failures are logged and
// counted and leave the previous record for that channel untouched.
type Decoder struct {
	store   *store.Store
	depth   int
	history int
	log     *logger.Log
}

func New(st *store.Store, depth, history int) *Decoder {
	if depth <= 0 {
		depth = 10
	}
	if history <= 0 {
		history = 30
	}
	return &Decoder{
		store:   st,
		depth:   depth,
		history: history,
		log:     logger.GetLogger(),
	}
}

// Handle classifies one envelope and updates the store. Unknown channels
// are a forward-compatible no-op.
func (d *Decoder) Handle(envelope models.Envelope) {
	switch {
	case strings.Contains(envelope.Channel, orderbookMarker):
		d.handleOrderBook(envelope)
	case strings.Contains(envelope.Channel, tradesMarker):
		d.handleTrades(envelope)
	}
}

func (d *Decoder) handleOrderBook(envelope models.Envelope) {
	log := d.log.WithComponent("feed_decoder").WithFields(logger.Fields{"channel": envelope.Channel})

	snap, err := models.DecodeOrderBook(envelope.Data)
	if err != nil {
		logger.IncrementDecodeFailure()
		logger.IncrementFrameDropped()
		log.WithError(err).Warn("dropping malformed orderbook payload")
		return
	}

	snap.Truncate(d.depth)
	d.store.Upsert(envelope.Channel, snap)
	logger.IncrementOrderbookFrame(len(envelope.Data))
	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.LogDataFlowEntry(log, "feed_ws", "market_store", len(snap.Bids)+len(snap.Asks), "orderbook_levels")
	}
}

func (d *Decoder) handleTrades(envelope models.Envelope) {
	log := d.log.WithComponent("feed_decoder").WithFields(logger.Fields{"channel": envelope.Channel})

	trades, err := models.DecodeTrades(envelope.Data)
	if err != nil {
		logger.IncrementDecodeFailure()
		logger.IncrementFrameDropped()
		log.WithError(err).Warn("dropping malformed trade payload")
		return
	}

	for _, trade := range trades {
		d.store.AppendHistory(envelope.Channel, trade, d.history)
	}
	logger.IncrementTradeFrame(len(envelope.Data))
}
