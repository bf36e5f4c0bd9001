package symbols

// ConfigResolver serves bindings from the external configuration table for
// the current network.
type ConfigResolver struct {
	table map[int]string
}

func NewConfigResolver(table map[int]string) *ConfigResolver {
	normalized := make(map[int]string, len(table))
	for idx, symbol := range table {
		if s := normalizeTicker(symbol); s != "" {
			normalized[idx] = s
		}
	}
	return &ConfigResolver{table: normalized}
}

func (r *ConfigResolver) Name() string { return "config" }

func (r *ConfigResolver) Resolve(marketIndex int) (string, bool) {
	symbol, ok := r.table[marketIndex]
	return symbol, ok
}

func (r *ConfigResolver) Entries() map[int]string {
	out := make(map[int]string, len(r.table))
	for idx, symbol := range r.table {
		out[idx] = symbol
	}
	return out
}

// AccountResolver decodes the raw name field of the on-chain market
// account. Lookup errors mean "no answer"; the market set is expected to
// load eventually.
type AccountResolver struct {
	source MarketAccountSource
}

func NewAccountResolver(source MarketAccountSource) *AccountResolver {
	return &AccountResolver{source: source}
}

func (r *AccountResolver) Name() string { return "account" }

func (r *AccountResolver) Resolve(marketIndex int) (string, bool) {
	if r.source == nil {
		return "", false
	}
	raw, err := r.source.PerpMarketName(marketIndex)
	if err != nil || len(raw) == 0 {
		return "", false
	}
	name := DecodeName(raw)
	if name == "" {
		return "", false
	}
	return normalizeTicker(name), true
}

// knownPerpMarkets is the static fallback of well-known index bindings for
// major markets, used when neither the config table nor the chain account
// has an answer.
var knownPerpMarkets = map[int]string{
	0:  "SOL",
	1:  "BTC",
	2:  "ETH",
	3:  "ARB",
	4:  "BNB",
	5:  "PYTH",
	6:  "DOGE",
	7:  "RNDR",
	8:  "XRP",
	9:  "SUI",
	10: "TIA",
	11: "JUP",
	12: "SEI",
	13: "JTO",
	14: "BONK",
	15: "WIF",
	21: "HYPE",
}

// StaticResolver serves the built-in fallback table.
type StaticResolver struct{}

func NewStaticResolver() *StaticResolver { return &StaticResolver{} }

func (r *StaticResolver) Name() string { return "static" }

func (r *StaticResolver) Resolve(marketIndex int) (string, bool) {
	base, ok := knownPerpMarkets[marketIndex]
	if !ok {
		return "", false
	}
	return normalizeTicker(base), true
}

func (r *StaticResolver) Entries() map[int]string {
	out := make(map[int]string, len(knownPerpMarkets))
	for idx, base := range knownPerpMarkets {
		out[idx] = normalizeTicker(base)
	}
	return out
}
