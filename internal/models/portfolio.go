// Package models defines data structures for farmor-aktier
package models

import (
	"time"
)

// Holding represents a single equity position.
// AvgPrice uses the weighted-average cost method: buys re-average, sells
// leave the average untouched and only reduce Shares.
type Holding struct {
	Ticker   string    `json:"ticker"`
	Name     string    `json:"name"`
	Shares   float64   `json:"shares"`
	AvgPrice float64   `json:"avg_price"` // per-share, in the holding's native currency
	Currency string    `json:"currency"`
	Category string    `json:"category,omitempty"`
	BuyDate  time.Time `json:"buy_date"` // first purchase date of the position
}

// CostBasis returns the remaining cost basis of the position.
func (h Holding) CostBasis() float64 {
	return h.Shares * h.AvgPrice
}

// PortfolioRecord is the single persisted document holding a user's entire
// portfolio state: positions, cash balance, and dividend bookkeeping.
// Version implements optimistic concurrency: saves carry the version they
// loaded, and the store rejects the write if the stored version has moved.
type PortfolioRecord struct {
	UserID                 string             `json:"user_id"`
	Version                int                `json:"version"`
	Holdings               map[string]Holding `json:"holdings"`     // keyed by ticker
	CashBalance            float64            `json:"cash_balance"` // base currency
	TotalDeposited         float64            `json:"total_deposited"`
	TotalWithdrawn         float64            `json:"total_withdrawn"`
	TotalDividendsReceived float64            `json:"total_dividends_received"`
	LastDividendCheck      time.Time          `json:"last_dividend_check"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// NewPortfolioRecord returns an empty portfolio for a user.
func NewPortfolioRecord(userID string) *PortfolioRecord {
	now := time.Now().UTC()
	return &PortfolioRecord{
		UserID:    userID,
		Holdings:  make(map[string]Holding),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HoldingValuation is a position priced at current market levels,
// computed on response and never persisted.
type HoldingValuation struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Shares       float64 `json:"shares"`
	AvgPrice     float64 `json:"avg_price"`
	Currency     string  `json:"currency"`
	CurrentPrice float64 `json:"current_price"`
	FXRate       float64 `json:"fx_rate"`               // native currency → base currency
	CostBasis    float64 `json:"cost_basis"`            // base currency
	MarketValue  float64 `json:"market_value"`          // base currency
	GainLoss     float64 `json:"gain_loss"`             // market value − cost basis
	GainLossPct  float64 `json:"gain_loss_pct"`         // gain_loss / cost_basis × 100
	WeightPct    float64 `json:"weight_pct"`            // share of total equity value
	PriceStale   bool    `json:"price_stale,omitempty"` // quote lookup failed, avg price used
}

// PortfolioValuation is the full priced view of a portfolio.
type PortfolioValuation struct {
	UserID                 string             `json:"user_id"`
	BaseCurrency           string             `json:"base_currency"`
	Holdings               []HoldingValuation `json:"holdings"`
	CashBalance            float64            `json:"cash_balance"`
	EquityValue            float64            `json:"equity_value"`
	TotalValue             float64            `json:"total_value"` // equity + cash
	TotalCostBasis         float64            `json:"total_cost_basis"`
	TotalGainLoss          float64            `json:"total_gain_loss"`
	TotalGainLossPct       float64            `json:"total_gain_loss_pct"`
	TotalDeposited         float64            `json:"total_deposited"`
	TotalWithdrawn         float64            `json:"total_withdrawn"`
	TotalDividendsReceived float64            `json:"total_dividends_received"`
	EstimatedAnnualIncome  float64            `json:"estimated_annual_income"`
	AsOf                   time.Time          `json:"as_of"`
}
