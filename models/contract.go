package models

// Contract is one tradable market as reported by the contract-listing REST
// endpoint. Numeric fields are strings on the wire and kept as such; only
// the index is parsed.
type Contract struct {
	ContractIndex int    `json:"contract_index"`
	TickerID      string `json:"ticker_id"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
	LastPrice     string `json:"last_price"`
	BaseVolume    string `json:"base_volume"`
	QuoteVolume   string `json:"quote_volume"`
	High          string `json:"high"`
	Low           string `json:"low"`
	ProductType   string `json:"product_type"`
	OpenInterest  string `json:"open_interest"`
	IndexPrice    string `json:"index_price"`
	IndexName     string `json:"index_name"`
	IndexCurrency string `json:"index_currency"`
	FundingRate   string `json:"funding_rate"`
}

// ContractListing is the contract endpoint's response envelope.
type ContractListing struct {
	Contracts []Contract `json:"contracts"`
}

// IsPerp reports whether the contract is a perpetual market.
func (c Contract) IsPerp() bool {
	return c.ProductType == "PERP"
}
