package models

import "time"

// RealTimeQuote is a delayed real-time quote from the market data provider.
type RealTimeQuote struct {
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// EODBar is a single end-of-day price bar.
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// EODResponse wraps end-of-day price data, most recent bar first.
type EODResponse struct {
	Data []EODBar `json:"data"`
}

// Fundamentals holds the subset of instrument fundamentals the dashboard
// uses: identity, pricing and declared dividend figures. The dividend
// fields are pointers because providers omit them for non-payers.
type Fundamentals struct {
	Ticker                      string    `json:"ticker"`
	Name                        string    `json:"name"`
	Currency                    string    `json:"currency"`
	Type                        string    `json:"type"` // "Common Stock", "ETF", ...
	ForwardAnnualDividendRate   *float64  `json:"forward_annual_dividend_rate,omitempty"`
	TrailingAnnualDividendYield *float64  `json:"trailing_annual_dividend_yield,omitempty"`
	DividendYield               float64   `json:"dividend_yield,omitempty"`
	LastUpdated                 time.Time `json:"last_updated"`
}

// DividendPayment is one historical dividend payment for an instrument.
type DividendPayment struct {
	ExDate      time.Time `json:"ex_date"`
	PaymentDate time.Time `json:"payment_date,omitempty"` // zero when provider omits it
	Amount      float64   `json:"amount"`                 // per share, native currency
	Currency    string    `json:"currency,omitempty"`
}

// Quote is the priced view the market service serves to callers,
// assembled from provider data and cached.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name,omitempty"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}
