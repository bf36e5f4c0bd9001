// Package contracts fetches the tradable contract listing from the public
// REST endpoint. Responses are cached client-side with a short TTL; the
// listing is also mirrored into the market state store so consumers read it
// the same way as stream data.
package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"driftflow/config"
	"driftflow/internal/store"
	"driftflow/logger"
	"driftflow/models"
)

// StoreID is the market state store key holding the cached listing.
const StoreID = "contracts"

type Client struct {
	cfg     config.ContractsConfig
	client  *http.Client
	limiter *rate.Limiter
	store   *store.Store
	log     *logger.Log

	mu        sync.Mutex
	cached    []models.Contract
	fetchedAt time.Time
}

// NewClient builds a listing client. st may be nil when store mirroring is
// not wanted.
func NewClient(cfg config.ContractsConfig, st *store.Store) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		store:   st,
		log:     logger.GetLogger(),
	}
}

// Fetch returns the contract listing, serving the cached copy while it is
// fresh.
func (c *Client) Fetch(ctx context.Context) ([]models.Contract, error) {
	c.mu.Lock()
	ttl := c.cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if c.cached != nil && time.Since(c.fetchedAt) < ttl {
		cached := c.cached
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	log := c.log.WithComponent("contracts_client").WithFields(logger.Fields{"url": c.cfg.URL})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build contracts request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contracts request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("contracts request returned status %d", res.StatusCode)
	}

	var listing models.ContractListing
	if err := json.NewDecoder(res.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode contracts response: %w", err)
	}

	c.mu.Lock()
	c.cached = listing.Contracts
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	if c.store != nil {
		c.store.Upsert(StoreID, listing.Contracts)
	}

	log.WithFields(logger.Fields{"contracts": len(listing.Contracts)}).Debug("fetched contract listing")
	logger.RecordChannelMessage("contracts_rest", len(listing.Contracts))
	return listing.Contracts, nil
}

// Perpetuals returns only the perp markets from the listing.
func (c *Client) Perpetuals(ctx context.Context) ([]models.Contract, error) {
	all, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Contract, 0, len(all))
	for _, contract := range all {
		if contract.IsPerp() {
			out = append(out, contract)
		}
	}
	return out, nil
}

// ClearCache drops the cached listing so the next Fetch hits the endpoint.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
