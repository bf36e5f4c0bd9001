// Package store holds the in-memory market state consumed by the UI layer.
// It is the single source of truth for everything streamed off the feed:
// order book snapshots, bounded trade histories and the cached contract
// listing.
package store

import (
	"sync"
	"time"

	"driftflow/models"
)

// Record is one monitored channel+market entry. Payload is either a
// *models.OrderBookSnapshot, a []models.TradeEvent history (newest first),
// or a []models.Contract listing.
type Record struct {
	ID         string      `json:"id"`
	Payload    interface{} `json:"payload"`
	LastUpdate time.Time   `json:"last_update"`
}

// Store is a keyed collection of monitor records with change notification.
// At most one record exists per id; a later write for the same id always
// wins. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	records  map[string]Record
	watchers map[int]func()
	nextID   int
}

func New() *Store {
	return &Store{
		records:  make(map[string]Record),
		watchers: make(map[int]func()),
	}
}

// Upsert replaces or inserts the record for id and stamps the update time.
func (s *Store) Upsert(id string, payload interface{}) {
	s.mu.Lock()
	s.records[id] = Record{ID: id, Payload: payload, LastUpdate: time.Now()}
	s.mu.Unlock()
	s.notify()
}

// AppendHistory prepends item to the trade history held under id and
// truncates it to max entries. A missing record is created with a
// one-element history.
func (s *Store) AppendHistory(id string, item models.TradeEvent, max int) {
	s.mu.Lock()
	var history []models.TradeEvent
	if rec, ok := s.records[id]; ok {
		if prev, ok := rec.Payload.([]models.TradeEvent); ok {
			history = prev
		}
	}
	updated := make([]models.TradeEvent, 0, len(history)+1)
	updated = append(updated, item)
	updated = append(updated, history...)
	if max > 0 && len(updated) > max {
		updated = updated[:max]
	}
	s.records[id] = Record{ID: id, Payload: updated, LastUpdate: time.Now()}
	s.mu.Unlock()
	s.notify()
}

// Remove deletes the record for id. Removing an absent id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	_, existed := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()
	if existed {
		s.notify()
	}
}

// Clear drops every record.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = make(map[string]Record)
	s.mu.Unlock()
	s.notify()
}

// Get returns the record stored under id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Find returns the first record matching the predicate. Used by consumers
// that only know a pattern for the id, not the exact key.
func (s *Store) Find(match func(Record) bool) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if match(rec) {
			return rec, true
		}
	}
	return Record{}, false
}

// Snapshot copies out all current records.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// Len reports the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// OrderBook returns the snapshot payload stored under id, if present.
func (s *Store) OrderBook(id string) (*models.OrderBookSnapshot, bool) {
	rec, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	snap, ok := rec.Payload.(*models.OrderBookSnapshot)
	return snap, ok
}

// Trades returns the trade history stored under id, newest first.
func (s *Store) Trades(id string) ([]models.TradeEvent, bool) {
	rec, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	history, ok := rec.Payload.([]models.TradeEvent)
	return history, ok
}

// Watch registers a change callback invoked after every completed mutation.
// The returned function cancels the registration. Callbacks run on the
// mutating goroutine and must not block.
func (s *Store) Watch(fn func()) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}
