// Package symbols maps numeric market indices to display tickers. The
// binding is derived through an ordered chain of resolver strategies and is
// assumed immutable for the lifetime of a session, so every successful
// resolution is cached in front of the chain.
package symbols

import (
	"strings"
	"sync"

	"driftflow/logger"
	"driftflow/models"
)

// Resolver is one strategy for turning a market index into a ticker.
// A false return means this tier has no answer, not an error.
type Resolver interface {
	Name() string
	Resolve(marketIndex int) (string, bool)
}

// Enumerator is implemented by resolvers that can list all their bindings,
// enabling reverse ticker-to-index lookups.
type Enumerator interface {
	Entries() map[int]string
}

// MarketAccountSource exposes the on-chain market account lookup of the
// protocol SDK. The SDK itself stays an external collaborator; only the raw
// name bytes of a perp market account are consumed here.
type MarketAccountSource interface {
	PerpMarketName(marketIndex int) ([]byte, error)
}

// Chain resolves indices through its tiers in order, first match wins.
// Resolved bindings are cached and never invalidated within a session.
type Chain struct {
	mu        sync.RWMutex
	cache     map[int]string
	resolvers []Resolver
	log       *logger.Log
}

func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{
		cache:     make(map[int]string),
		resolvers: resolvers,
		log:       logger.GetLogger(),
	}
}

// Resolve returns the ticker for marketIndex. A false return means the
// symbol is not available yet; callers should treat it as still loading
// rather than as a failure, since market tables load asynchronously.
func (c *Chain) Resolve(marketIndex int) (string, bool) {
	c.mu.RLock()
	if symbol, ok := c.cache[marketIndex]; ok {
		c.mu.RUnlock()
		return symbol, true
	}
	c.mu.RUnlock()

	for _, r := range c.resolvers {
		symbol, ok := r.Resolve(marketIndex)
		if !ok {
			continue
		}
		c.mu.Lock()
		c.cache[marketIndex] = symbol
		c.mu.Unlock()
		c.log.WithComponent("symbol_resolver").WithFields(logger.Fields{
			"market_index": marketIndex,
			"symbol":       symbol,
			"tier":         r.Name(),
		}).Debug("resolved market symbol")
		return symbol, true
	}
	return "", false
}

// IndexOf reverses a ticker back to its market index using the cache and
// any tier able to enumerate its bindings.
func (c *Chain) IndexOf(ticker string) (int, bool) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	c.mu.RLock()
	for idx, symbol := range c.cache {
		if symbol == ticker {
			c.mu.RUnlock()
			return idx, true
		}
	}
	c.mu.RUnlock()

	for _, r := range c.resolvers {
		en, ok := r.(Enumerator)
		if !ok {
			continue
		}
		for idx, symbol := range en.Entries() {
			if symbol == ticker {
				c.mu.Lock()
				c.cache[idx] = symbol
				c.mu.Unlock()
				return idx, true
			}
		}
	}
	return 0, false
}

// DecodeName interprets a raw on-chain name field: zero bytes are dropped
// and the remainder converted to characters.
func DecodeName(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		if b > 0 {
			out = append(out, b)
		}
	}
	return strings.TrimSpace(string(out))
}

// normalizeTicker upgrades a bare base symbol to a perp ticker while
// leaving full tickers untouched.
func normalizeTicker(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ""
	}
	if strings.Contains(symbol, "-") {
		return symbol
	}
	return models.PerpTicker(symbol)
}
