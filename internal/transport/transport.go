// Package transport maintains the single persistent websocket connection to
// the DLOB market-data endpoint. It masks transient network failures from
// callers: unintentional closes trigger bounded automatic reconnects and a
// periodic keep-alive runs while the connection is open. Callers observe
// connection health through IsActive and the log output only.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"driftflow/config"
	"driftflow/logger"
	"driftflow/models"
)

// State is the connection lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler receives every decoded top-level frame.
type Handler func(models.Envelope)

// Transport owns one logical connection to the feed.
type Transport struct {
	cfg config.FeedConfig
	log *logger.Log

	mu          sync.Mutex
	conn        *websocket.Conn
	state       State
	intentional bool
	attempts    int
	pending     *time.Timer
	sessionID   string
	stopBeat    chan struct{}

	writeMu sync.Mutex

	handlerMu       sync.RWMutex
	handlers        map[int]Handler
	channelHandlers map[string]map[int]Handler
	nextHandler     int
}

func New(cfg config.FeedConfig) *Transport {
	return &Transport{
		cfg:             cfg,
		log:             logger.GetLogger(),
		handlers:        make(map[int]Handler),
		channelHandlers: make(map[string]map[int]Handler),
	}
}

// Connect opens the underlying connection and returns once the handshake
// completes. It is idempotent: a second call while the connection is open is
// a no-op. Failures after the initial handshake are handled entirely by the
// reconnect policy and never surface here.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == StateOpen || t.state == StateConnecting {
		t.mu.Unlock()
		return nil
	}
	// An armed reconnect timer would dial a second connection once this
	// call succeeds; this dial replaces it.
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.intentional = false
	t.state = StateConnecting
	t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		t.mu.Lock()
		t.state = StateIdle
		t.mu.Unlock()
		return fmt.Errorf("websocket handshake failed: %w", err)
	}

	t.adopt(conn)
	return nil
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	log := t.log.WithComponent("feed_transport")
	log.WithField("url", t.cfg.URL).Debug("connecting to websocket")
	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	return conn, err
}

// adopt installs a freshly dialed connection and starts its read and
// heartbeat loops.
func (t *Transport) adopt(conn *websocket.Conn) {
	t.mu.Lock()
	// A connection adopted while another is still installed replaces it;
	// only one underlying connection may be open at a time.
	if t.stopBeat != nil {
		close(t.stopBeat)
	}
	old := t.conn
	t.conn = conn
	t.state = StateOpen
	t.attempts = 0
	t.sessionID = uuid.NewString()
	stop := make(chan struct{})
	t.stopBeat = stop
	t.mu.Unlock()

	if old != nil {
		old.Close()
	}

	t.log.WithComponent("feed_transport").WithFields(logger.Fields{
		"url":     t.cfg.URL,
		"session": t.sessionID,
	}).Info("websocket connected")

	go t.readLoop(conn, stop)
	go t.heartbeatLoop(stop)
}

func (t *Transport) readLoop(conn *websocket.Conn, stop chan struct{}) {
	log := t.log.WithComponent("feed_transport").WithFields(logger.Fields{"worker": "read_loop"})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			current := t.stopBeat == stop
			if current {
				close(stop)
				t.stopBeat = nil
				t.conn = nil
			}
			intentional := t.intentional
			t.mu.Unlock()
			conn.Close()

			// A connection replaced by a newer one must not drive the
			// reconnect policy.
			if !current {
				log.Debug("superseded websocket closed")
				return
			}
			if intentional {
				log.Debug("websocket closed")
				return
			}
			log.WithError(err).Warn("websocket read error, scheduling reconnect")
			t.scheduleReconnect()
			return
		}

		var envelope models.Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			logger.IncrementDecodeFailure()
			logger.IncrementFrameDropped()
			log.WithError(err).Warn("failed to decode inbound frame")
			continue
		}
		t.dispatch(envelope)
	}
}

func (t *Transport) dispatch(envelope models.Envelope) {
	t.handlerMu.RLock()
	var targeted []Handler
	if hs, ok := t.channelHandlers[envelope.Channel]; ok {
		for _, h := range hs {
			targeted = append(targeted, h)
		}
	}
	all := make([]Handler, 0, len(t.handlers))
	for _, h := range t.handlers {
		all = append(all, h)
	}
	t.handlerMu.RUnlock()

	for _, h := range targeted {
		h(envelope)
	}
	for _, h := range all {
		h(envelope)
	}
}

func (t *Transport) heartbeatLoop(stop chan struct{}) {
	interval := t.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Liveness signal only; a failed send is left to the read
			// loop to notice.
			t.Send(models.PingFrame{Type: "ping", Data: models.PingData{Timestamp: time.Now().UnixMilli()}})
		}
	}
}

// scheduleReconnect arms a single reconnect attempt after the configured
// delay. A second attempt is never scheduled while one is pending, after an
// intentional disconnect, or past the attempt ceiling.
func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil || t.intentional {
		return
	}
	if t.attempts >= t.cfg.MaxReconnectAttempts {
		t.state = StateClosed
		t.log.WithComponent("feed_transport").WithFields(logger.Fields{
			"attempts": t.attempts,
		}).Error("reconnect attempt ceiling reached, giving up")
		return
	}

	t.state = StateReconnecting
	delay := t.cfg.ReconnectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	t.pending = time.AfterFunc(delay, t.reconnect)
}

func (t *Transport) reconnect() {
	t.mu.Lock()
	t.pending = nil
	if t.intentional || t.state == StateOpen || t.state == StateConnecting {
		t.mu.Unlock()
		return
	}
	t.attempts++
	attempt := t.attempts
	t.mu.Unlock()

	logger.IncrementReconnect()
	log := t.log.WithComponent("feed_transport").WithFields(logger.Fields{
		"attempt":      attempt,
		"max_attempts": t.cfg.MaxReconnectAttempts,
	})
	log.Info("attempting to reconnect")

	conn, err := t.dial(context.Background())
	if err != nil {
		log.WithError(err).Warn("reconnect failed")
		t.scheduleReconnect()
		return
	}

	t.adopt(conn)
}

// Send serializes v and transmits it when the connection is open. It
// returns false and logs a warning otherwise; the failure is non-fatal and
// callers may retry.
func (t *Transport) Send(v interface{}) bool {
	t.mu.Lock()
	conn := t.conn
	open := t.state == StateOpen
	t.mu.Unlock()

	log := t.log.WithComponent("feed_transport")
	if !open || conn == nil {
		log.Warn("websocket not connected, cannot send message")
		return false
	}

	payload, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Warn("failed to marshal outbound frame")
		return false
	}

	t.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	t.writeMu.Unlock()
	if err != nil {
		log.WithError(err).Warn("websocket send error")
		return false
	}
	logger.IncrementControlSent(len(payload))
	return true
}

// OnMessage registers a handler invoked for every decoded top-level frame.
// The returned function removes the handler.
func (t *Transport) OnMessage(h Handler) func() {
	t.handlerMu.Lock()
	id := t.nextHandler
	t.nextHandler++
	t.handlers[id] = h
	t.handlerMu.Unlock()
	return func() {
		t.handlerMu.Lock()
		delete(t.handlers, id)
		t.handlerMu.Unlock()
	}
}

// OnChannel registers a handler for frames on one exact channel id.
func (t *Transport) OnChannel(channel string, h Handler) func() {
	t.handlerMu.Lock()
	id := t.nextHandler
	t.nextHandler++
	if t.channelHandlers[channel] == nil {
		t.channelHandlers[channel] = make(map[int]Handler)
	}
	t.channelHandlers[channel][id] = h
	t.handlerMu.Unlock()
	return func() {
		t.handlerMu.Lock()
		if hs, ok := t.channelHandlers[channel]; ok {
			delete(hs, id)
			if len(hs) == 0 {
				delete(t.channelHandlers, channel)
			}
		}
		t.handlerMu.Unlock()
	}
}

// Disconnect marks the close as intentional, suppressing the reconnect
// policy, and tears down the connection together with any pending reconnect
// timer and the heartbeat.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.intentional = true
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	if t.stopBeat != nil {
		close(t.stopBeat)
		t.stopBeat = nil
	}
	conn := t.conn
	t.conn = nil
	t.state = StateClosed
	t.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
	t.log.WithComponent("feed_transport").Info("websocket disconnected")
}

// IsActive reports whether the connection is currently open.
func (t *Transport) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateOpen
}

// State returns the current lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Attempts reports the reconnect attempts made since the last successful
// connection.
func (t *Transport) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}
