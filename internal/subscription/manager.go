// Package subscription keeps the transport's active channel subscriptions
// consistent with the currently selected trading symbol, and tears down
// stale market state so the UI never renders data for a market that is no
// longer selected.
package subscription

import (
	"context"
	"sync"
	"time"

	"driftflow/config"
	"driftflow/internal/store"
	"driftflow/internal/symbols"
	"driftflow/logger"
	"driftflow/models"
)

// Transport is the connection surface the manager drives. Satisfied by
// *transport.Transport.
type Transport interface {
	Connect(ctx context.Context) error
	Send(v interface{}) bool
	Disconnect()
	IsActive() bool
}

// Manager derives the required subscription set from (selected symbol,
// known contracts) and diffs it against the active set on every change.
//
// Rapid symbol switching is guarded by a generation counter: each change
// starts a new poll/subscribe goroutine carrying its generation, and a
// goroutine that observes a newer generation aborts without sending, so
// subscribe frames for a stale symbol are never issued after that symbol's
// unsubscribe. The stale teardown itself runs synchronously on the caller
// before the new activation starts, and frameMu serializes it against any
// in-flight subscribe batch, so unsubscribe frames always precede the next
// generation's subscribes.
type Manager struct {
	cfg       config.FeedConfig
	transport Transport
	store     *store.Store
	resolver  *symbols.Chain
	log       *logger.Log

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	active     []models.SubscriptionSpec
	subscribed []models.SubscriptionSpec
	symbol     string
	contracts  []models.Contract
	closed     bool

	frameMu sync.Mutex
	wg      sync.WaitGroup
}

func NewManager(cfg config.FeedConfig, tr Transport, st *store.Store, resolver *symbols.Chain) *Manager {
	return &Manager{
		cfg:       cfg,
		transport: tr,
		store:     st,
		resolver:  resolver,
		log:       logger.GetLogger(),
	}
}

// SetSymbol selects the trading symbol by base currency (e.g. "SOL"). An
// empty base clears the selection.
func (m *Manager) SetSymbol(base string) {
	m.mu.Lock()
	if m.closed || m.symbol == base {
		m.mu.Unlock()
		return
	}
	m.symbol = base
	stale, next, ctx, gen := m.applyLocked()
	m.mu.Unlock()
	m.transition(stale, next, ctx, gen)
}

// SetContracts supplies the current tradable contract listing.
func (m *Manager) SetContracts(contracts []models.Contract) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.contracts = contracts
	stale, next, ctx, gen := m.applyLocked()
	m.mu.Unlock()
	m.transition(stale, next, ctx, gen)
}

// Active returns a copy of the currently required subscription set.
func (m *Manager) Active() []models.SubscriptionSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SubscriptionSpec, len(m.active))
	copy(out, m.active)
	return out
}

// Close unsubscribes everything and disconnects the transport. It is meant
// for true shutdown only; ordinary symbol churn never disconnects, which
// avoids a reconnect storm when the user switches markets rapidly.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.generation++
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	stale := m.subscribed
	m.subscribed = nil
	m.active = nil
	m.mu.Unlock()

	m.teardown(stale)
	m.transport.Disconnect()
	m.wg.Wait()
}

// required computes the subscription set for the current inputs. It is
// empty until both the symbol and the contract listing are known, and the
// symbol must appear in the listing as a perp market.
func (m *Manager) required() []models.SubscriptionSpec {
	if m.symbol == "" || len(m.contracts) == 0 {
		return nil
	}
	listed := false
	for _, contract := range m.contracts {
		if contract.IsPerp() && contract.BaseCurrency == m.symbol {
			listed = true
			break
		}
	}
	if !listed {
		return nil
	}
	ticker := models.PerpTicker(m.symbol)
	return []models.SubscriptionSpec{
		{MarketType: models.MarketTypePerp, Channel: models.ChannelOrderbook, Market: ticker},
		{MarketType: models.MarketTypePerp, Channel: models.ChannelTrades, Market: ticker},
	}
}

// applyLocked diffs the required set against the active one and advances
// the generation. It returns the specs to tear down (only those whose
// subscribe frame was actually issued) and, when the new set is non-empty,
// the activation context. Caller holds m.mu.
func (m *Manager) applyLocked() (stale, next []models.SubscriptionSpec, ctx context.Context, gen uint64) {
	required := m.required()
	if specsEqual(m.active, required) {
		return nil, nil, nil, 0
	}

	m.generation++
	gen = m.generation
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	stale = m.subscribed
	m.subscribed = nil
	m.active = required

	if len(required) > 0 {
		ctx, m.cancel = context.WithCancel(context.Background())
		next = required
		m.wg.Add(1)
	}
	return stale, next, ctx, gen
}

// transition performs the stale teardown synchronously, so the unsubscribe
// of the old market is issued before the new poll loop starts, then hands
// off to the activation goroutine.
func (m *Manager) transition(stale, next []models.SubscriptionSpec, ctx context.Context, gen uint64) {
	m.teardown(stale)
	if next != nil {
		go m.activate(ctx, gen, next)
	}
}

// teardown sends one unsubscribe frame per stale spec and purges the
// matching market state records. It serializes against in-flight subscribe
// batches so a superseded generation's subscribe can never land after its
// unsubscribe.
func (m *Manager) teardown(stale []models.SubscriptionSpec) {
	if len(stale) == 0 {
		return
	}
	m.frameMu.Lock()
	defer m.frameMu.Unlock()

	log := m.log.WithComponent("subscription_manager")
	for _, spec := range stale {
		if m.transport.Send(spec.UnsubscribeFrame()) {
			log.WithFields(logger.Fields{"market": spec.Market, "channel": spec.Channel}).Debug("unsubscribed")
		}
		m.purge(spec)
	}
}

// purge removes every store record belonging to the spec's market/channel.
func (m *Manager) purge(spec models.SubscriptionSpec) {
	if idx, ok := m.resolver.IndexOf(spec.Market); ok {
		m.store.Remove(models.ChannelID(spec.Channel, spec.MarketType, idx))
		return
	}
	// Index unknown: fall back to scanning for records that resolve back
	// to the same ticker.
	for _, rec := range m.store.Snapshot() {
		kind, marketType, idx, ok := models.ParseChannelID(rec.ID)
		if !ok || kind != spec.Channel || marketType != spec.MarketType {
			continue
		}
		if symbol, ok := m.resolver.Resolve(idx); ok && symbol == spec.Market {
			m.store.Remove(rec.ID)
		}
	}
}

// activate connects if needed, then polls until the transport reports
// active before sending the subscribe frames. The loop is bounded and
// cancellable; it aborts silently when its generation is superseded.
func (m *Manager) activate(ctx context.Context, gen uint64, specs []models.SubscriptionSpec) {
	defer m.wg.Done()
	log := m.log.WithComponent("subscription_manager")

	if !m.transport.IsActive() {
		if err := m.transport.Connect(ctx); err != nil {
			log.WithError(err).Warn("feed connect failed, subscriptions deferred to reconnect")
		}
	}

	interval := m.cfg.SubscribePollInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	attempts := m.cfg.SubscribePollAttempts
	if attempts <= 0 {
		attempts = 50
	}

	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil || !m.currentGeneration(gen) {
			return
		}
		if m.transport.IsActive() {
			m.sendSubscribes(gen, specs, log)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
	log.WithFields(logger.Fields{"attempts": attempts}).Warn("transport never became active, subscriptions not sent")
}

// sendSubscribes issues the subscribe frames for one generation. Each spec
// is recorded as subscribed under the lock before its frame goes out, so a
// concurrent teardown never misses one.
func (m *Manager) sendSubscribes(gen uint64, specs []models.SubscriptionSpec, log *logger.Entry) {
	m.frameMu.Lock()
	defer m.frameMu.Unlock()

	for _, spec := range specs {
		m.mu.Lock()
		if m.generation != gen {
			m.mu.Unlock()
			return
		}
		m.subscribed = append(m.subscribed, spec)
		m.mu.Unlock()

		if m.transport.Send(spec.SubscribeFrame()) {
			log.WithFields(logger.Fields{"market": spec.Market, "channel": spec.Channel}).Info("subscribed")
		} else {
			log.WithFields(logger.Fields{"market": spec.Market, "channel": spec.Channel}).Warn("subscribe frame not sent")
		}
	}
}

func (m *Manager) currentGeneration(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation == gen
}

func specsEqual(a, b []models.SubscriptionSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
