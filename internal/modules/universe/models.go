// Package universe manages the asset universe: the persistent daily price
// history, ingestion-time price validation, and technical screening that
// selects optimization candidates.
package universe

// DailyPrice is one OHLCV bar. Date is a calendar day in YYYY-MM-DD form;
// storage converts it to a Unix timestamp at the database boundary.
type DailyPrice struct {
	Date   string   `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume *float64 `json:"volume,omitempty"`
}

// SymbolInfo describes one symbol in the universe: its metadata plus the
// coverage of its stored price history.
type SymbolInfo struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name,omitempty"`
	Sector       string  `json:"sector,omitempty"`
	MarketCap    float64 `json:"market_cap,omitempty"`
	Observations int     `json:"observations"`
	FirstDate    string  `json:"first_date,omitempty"`
	LastDate     string  `json:"last_date,omitempty"`
}
