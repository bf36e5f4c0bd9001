package contracts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"driftflow/config"
	"driftflow/internal/store"
)

const listingBody = `{"contracts":[
  {"contract_index":0,"ticker_id":"SOL-PERP","base_currency":"SOL","quote_currency":"USD","product_type":"PERP","last_price":"149.25"},
  {"contract_index":1,"ticker_id":"BTC-PERP","base_currency":"BTC","quote_currency":"USD","product_type":"PERP","last_price":"97000.5"},
  {"contract_index":100,"ticker_id":"SOL-USDC","base_currency":"SOL","quote_currency":"USDC","product_type":"SPOT","last_price":"149.20"}
]}`

func newTestClient(t *testing.T, st *store.Store, hits *int32) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingBody))
	}))
	t.Cleanup(server.Close)

	return NewClient(config.ContractsConfig{
		URL:               server.URL,
		CacheTTL:          time.Minute,
		RequestsPerSecond: 100,
		BurstSize:         10,
	}, st)
}

func TestFetchCachesWithinTTL(t *testing.T) {
	var hits int32
	client := newTestClient(t, nil, &hits)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		contracts, err := client.Fetch(ctx)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(contracts) != 3 {
			t.Fatalf("expected 3 contracts, got %d", len(contracts))
		}
	}

	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected 1 endpoint hit with a warm cache, got %d", hits)
	}

	client.ClearCache()
	if _, err := client.Fetch(ctx); err != nil {
		t.Fatalf("Fetch after ClearCache failed: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Errorf("expected a second endpoint hit after ClearCache, got %d", hits)
	}
}

func TestFetchMirrorsIntoStore(t *testing.T) {
	var hits int32
	st := store.New()
	client := newTestClient(t, st, &hits)

	if _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	rec, ok := st.Get(StoreID)
	if !ok {
		t.Fatal("contract listing missing from store")
	}
	if rec.ID != StoreID {
		t.Errorf("unexpected record id: %s", rec.ID)
	}
}

func TestPerpetualsFiltersSpot(t *testing.T) {
	var hits int32
	client := newTestClient(t, nil, &hits)

	perps, err := client.Perpetuals(context.Background())
	if err != nil {
		t.Fatalf("Perpetuals failed: %v", err)
	}
	if len(perps) != 2 {
		t.Fatalf("expected 2 perps, got %d", len(perps))
	}
	for _, contract := range perps {
		if !contract.IsPerp() {
			t.Errorf("spot contract leaked through: %#v", contract)
		}
	}
}

func TestFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.ContractsConfig{URL: server.URL, RequestsPerSecond: 100}, nil)
	if _, err := client.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
