// Package interfaces defines service contracts for farmor-aktier
package interfaces

import (
	"context"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// EODHDClient provides access to the EODHD API
type EODHDClient interface {
	// GetEOD retrieves end-of-day price data, most recent bar first
	GetEOD(ctx context.Context, ticker string, opts ...EODOption) (*models.EODResponse, error)

	// GetRealTimeQuote retrieves a delayed real-time quote
	GetRealTimeQuote(ctx context.Context, ticker string) (*models.RealTimeQuote, error)

	// GetFundamentals retrieves fundamental data
	GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error)

	// GetDividends retrieves historical dividend payments between from and to
	GetDividends(ctx context.Context, ticker string, from, to time.Time) ([]models.DividendPayment, error)

	// GetFXRate retrieves the current rate for a currency pair (e.g. "USDDKK")
	GetFXRate(ctx context.Context, pair string) (float64, error)
}

// EODOption configures EOD data requests
type EODOption func(*EODParams)

// EODParams holds EOD query parameters
type EODParams struct {
	From   time.Time
	To     time.Time
	Period string // d=daily, w=weekly, m=monthly
	Order  string // a=ascending, d=descending
}

// WithDateRange sets the date range for EOD query
func WithDateRange(from, to time.Time) EODOption {
	return func(p *EODParams) {
		p.From = from
		p.To = to
	}
}

// WithPeriod sets the period for EOD query
func WithPeriod(period string) EODOption {
	return func(p *EODParams) {
		p.Period = period
	}
}
