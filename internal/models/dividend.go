package models

import (
	"fmt"
	"time"
)

// DividendMethod records which estimation strategy produced an annual figure.
type DividendMethod string

const (
	DividendMethodForwardRate   DividendMethod = "forward_rate"   // declared forward annual rate
	DividendMethodTrailingYield DividendMethod = "trailing_yield" // trailing yield × current price
	DividendMethodHistoryIQR    DividendMethod = "history_iqr"    // trailing-year payments, outliers fenced
	DividendMethodLastFour      DividendMethod = "last_four"      // sum of last four payments
	DividendMethodNone          DividendMethod = "none"
)

// DividendEstimate is the projected annual dividend for one holding.
type DividendEstimate struct {
	Ticker          string         `json:"ticker"`
	AnnualPerShare  float64        `json:"annual_per_share"` // native currency
	PaymentsPerYear int            `json:"payments_per_year"`
	Method          DividendMethod `json:"method"`
	Currency        string         `json:"currency"`
}

// CalendarEntry is one projected dividend payment in the coming year.
type CalendarEntry struct {
	Ticker         string    `json:"ticker"`
	Name           string    `json:"name,omitempty"`
	ExDate         time.Time `json:"ex_date"`
	PayDate        time.Time `json:"pay_date"`
	AmountPerShare float64   `json:"amount_per_share"` // native currency
	Shares         float64   `json:"shares"`
	Total          float64   `json:"total"` // base currency
	Currency       string    `json:"currency"`
}

// DividendCalendar is the 12-month forward projection across all holdings.
type DividendCalendar struct {
	UserID        string             `json:"user_id"`
	BaseCurrency  string             `json:"base_currency"`
	Entries       []CalendarEntry    `json:"entries"`        // sorted by pay date
	MonthlyTotals map[string]float64 `json:"monthly_totals"` // "2026-09" → base-currency total
	AnnualTotal   float64            `json:"annual_total"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// DividendRecord is a persisted, credited dividend payment. Key dedupes
// payments so a re-check never credits the same ex-date twice.
type DividendRecord struct {
	UserID         string    `json:"user_id"`
	Key            string    `json:"key"` // "<ticker>_<ex-date YYYY-MM-DD>"
	Ticker         string    `json:"ticker"`
	ExDate         time.Time `json:"ex_date"`
	PayDate        time.Time `json:"pay_date"`
	AmountPerShare float64   `json:"amount_per_share"`
	Shares         float64   `json:"shares"`
	Total          float64   `json:"total"` // base currency
	Currency       string    `json:"currency"`
	CreditedAt     time.Time `json:"credited_at"`
}

// DividendKey builds the dedup key for a ticker and ex-date.
func DividendKey(ticker string, exDate time.Time) string {
	return fmt.Sprintf("%s_%s", ticker, exDate.Format("2006-01-02"))
}
