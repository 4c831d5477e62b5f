package api

// StockEntry is one stock in GET /api/stocks.
type StockEntry struct {
	Key  string `json:"key"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StocksResponse is the payload for GET /api/stocks.
type StocksResponse struct {
	Stocks  []StockEntry `json:"stocks"`
	Default string       `json:"default"`
}

// ConfigResponse is the payload for GET /api/config.
type ConfigResponse struct {
	StockID   string `json:"stockId"`
	StockName string `json:"stockName"`
	StockKey  string `json:"stockKey"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
