package models

import "errors"

// Domain errors returned by the portfolio service. Handlers map these to
// HTTP status codes; everything else surfaces as a 500.
var (
	ErrInsufficientFunds  = errors.New("insufficient cash balance")
	ErrInsufficientShares = errors.New("insufficient shares held")
	ErrVersionConflict    = errors.New("portfolio version conflict")
	ErrNotFound           = errors.New("not found")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidShares      = errors.New("share count must be positive")
)
