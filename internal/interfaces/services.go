// Package interfaces defines service contracts for farmor-aktier
package interfaces

import (
	"context"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// MarketService serves quotes, fundamentals and FX with short-lived caching
// in front of the EODHD client.
type MarketService interface {
	// GetQuote returns the current price for a ticker.
	GetQuote(ctx context.Context, ticker string) (*models.Quote, error)

	// GetQuotes returns quotes for multiple tickers. Tickers whose lookup
	// failed are absent from the result map.
	GetQuotes(ctx context.Context, tickers []string) map[string]*models.Quote

	// GetFundamentals returns fundamental data for a ticker.
	GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error)

	// GetDividendHistory returns historical dividend payments since from.
	GetDividendHistory(ctx context.Context, ticker string, from time.Time) ([]models.DividendPayment, error)

	// ToBase converts an amount from a currency into the base currency,
	// returning the converted amount and the rate used. Falls back to a
	// static rate table when the live FX lookup fails.
	ToBase(ctx context.Context, amount float64, currency string) (float64, float64, error)
}

// PortfolioService manages portfolio state and transactions.
// The acting user is resolved from the request context.
type PortfolioService interface {
	// GetPortfolio returns the portfolio priced at current market levels.
	GetPortfolio(ctx context.Context) (*models.PortfolioValuation, error)

	// GetRecord returns the raw persisted portfolio document.
	GetRecord(ctx context.Context) (*models.PortfolioRecord, error)

	// Deposit adds cash to the portfolio.
	Deposit(ctx context.Context, amount float64, note string) (*models.Transaction, error)

	// Withdraw removes cash; fails with models.ErrInsufficientFunds when
	// the balance cannot cover it.
	Withdraw(ctx context.Context, amount float64, note string) (*models.Transaction, error)

	// Buy purchases shares at the current market price, debiting cash.
	Buy(ctx context.Context, ticker string, shares float64) (*models.Transaction, error)

	// BuyManual purchases shares at a caller-supplied price, for entering
	// positions acquired elsewhere.
	BuyManual(ctx context.Context, ticker string, shares, price float64, currency string) (*models.Transaction, error)

	// Sell disposes shares at the current market price, crediting cash.
	// Fails with models.ErrInsufficientShares when the position is short.
	Sell(ctx context.Context, ticker string, shares float64) (*models.Transaction, error)

	// Setup initializes a fresh portfolio with a starting cash balance
	// (the configured bankroll when zero) and buys the configured planned
	// allocation, skipping positions that cannot be priced.
	Setup(ctx context.Context, startingCash float64) (*models.PortfolioRecord, error)

	// Reset wipes the portfolio, its transactions, and its dividend records.
	Reset(ctx context.Context) error

	// ListTransactions returns the transaction history, newest first.
	ListTransactions(ctx context.Context, limit int) ([]*models.Transaction, error)

	// RenderAllocationChart renders a PNG donut of current allocation.
	RenderAllocationChart(ctx context.Context) ([]byte, error)
}

// DividendService estimates dividend income and maintains received payments.
type DividendService interface {
	// EstimateAnnual estimates the annual per-share dividend for a ticker.
	EstimateAnnual(ctx context.Context, ticker string) (*models.DividendEstimate, error)

	// GetCalendar projects dividend payments over the next 12 months for
	// the acting user's holdings.
	GetCalendar(ctx context.Context) (*models.DividendCalendar, error)

	// CheckNewPayments finds dividend payments that went ex since the last
	// check, credits them to cash, and returns the newly recorded payments.
	CheckNewPayments(ctx context.Context) ([]*models.DividendRecord, error)

	// ListReceived returns all credited dividend payments, newest first.
	ListReceived(ctx context.Context) ([]*models.DividendRecord, error)
}

// UserService handles account registration and authentication.
type UserService interface {
	// Register creates a user account with a bcrypt-hashed password.
	Register(ctx context.Context, username, email, password string) (*models.InternalUser, error)

	// Authenticate verifies credentials and returns the account.
	Authenticate(ctx context.Context, username, password string) (*models.InternalUser, error)

	// GetUser returns an account by user ID.
	GetUser(ctx context.Context, userID string) (*models.InternalUser, error)
}
