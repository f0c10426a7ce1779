package models

import "time"

// TransactionType categorizes a portfolio transaction.
type TransactionType string

const (
	TxBuy      TransactionType = "buy"
	TxSell     TransactionType = "sell"
	TxDeposit  TransactionType = "deposit"
	TxWithdraw TransactionType = "withdraw"
	TxDividend TransactionType = "dividend"
)

// Transaction is an append-only audit record of a portfolio mutation.
// Amount is always in the base currency; Shares and Price are set for
// buy/sell/dividend rows, zero otherwise.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      TransactionType `json:"type"`
	Ticker    string          `json:"ticker,omitempty"`
	Shares    float64         `json:"shares,omitempty"`
	Price     float64         `json:"price,omitempty"` // per-share, native currency
	Currency  string          `json:"currency,omitempty"`
	FXRate    float64         `json:"fx_rate,omitempty"`
	Amount    float64         `json:"amount"` // base currency, always positive
	Note      string          `json:"note,omitempty"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"created_at"`
}
