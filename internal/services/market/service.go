// Package market serves quotes, fundamentals and FX rates with short-lived
// caching in front of the EODHD client.
package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// Compile-time interface check
var _ interfaces.MarketService = (*Service)(nil)

// DefaultCacheTTL is how long quotes, fundamentals and FX rates are served
// from cache before the provider is asked again.
const DefaultCacheTTL = 10 * time.Minute

// fallbackRatesToDKK is the static conversion table used when the live FX
// lookup fails. Rates are approximate and only a safety net.
var fallbackRatesToDKK = map[string]float64{
	"USD": 6.85,
	"EUR": 7.45,
	"GBP": 8.65,
	"SEK": 0.64,
	"NOK": 0.63,
	"CHF": 7.85,
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// Service implements MarketService.
type Service struct {
	client       interfaces.EODHDClient
	logger       *common.Logger
	baseCurrency string
	ttl          time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry

	now func() time.Time // injectable clock for testing
}

// NewService creates a new market service. ttl <= 0 selects DefaultCacheTTL.
func NewService(client interfaces.EODHDClient, logger *common.Logger, baseCurrency string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if baseCurrency == "" {
		baseCurrency = "DKK"
	}
	return &Service{
		client:       client,
		logger:       logger,
		baseCurrency: strings.ToUpper(baseCurrency),
		ttl:          ttl,
		cache:        make(map[string]cacheEntry),
		now:          time.Now,
	}
}

func (s *Service) cacheGet(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[key]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

func (s *Service) cacheSet(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cacheEntry{value: value, expiresAt: s.now().Add(s.ttl)}
}

// GetQuote returns the current price for a ticker. The real-time feed is
// tried first; a zero or failed quote falls back to the latest EOD close.
func (s *Service) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	if cached, ok := s.cacheGet("quote:" + ticker); ok {
		return cached.(*models.Quote), nil
	}

	quote := &models.Quote{
		Ticker:    ticker,
		Currency:  s.baseCurrency,
		Timestamp: s.now(),
	}

	rt, err := s.client.GetRealTimeQuote(ctx, ticker)
	if err == nil && rt.Close > 0 {
		quote.Price = rt.Close
		quote.Timestamp = rt.Timestamp
	} else {
		if err != nil {
			s.logger.Debug().Err(err).Str("ticker", ticker).Msg("Real-time quote failed, trying EOD")
		}
		eod, eodErr := s.client.GetEOD(ctx, ticker, interfaces.WithDateRange(s.now().AddDate(0, 0, -14), s.now()))
		if eodErr != nil {
			return nil, fmt.Errorf("no price available for %s: %w", ticker, eodErr)
		}
		if len(eod.Data) == 0 || eod.Data[0].Close <= 0 {
			return nil, fmt.Errorf("no price available for %s", ticker)
		}
		quote.Price = eod.Data[0].Close
		quote.Timestamp = eod.Data[0].Date
	}

	// Instrument name and native currency come from fundamentals; a failed
	// lookup leaves the base currency in place rather than failing the quote.
	if f, fErr := s.GetFundamentals(ctx, ticker); fErr == nil {
		quote.Name = f.Name
		if f.Currency != "" {
			quote.Currency = strings.ToUpper(f.Currency)
		}
	}

	s.cacheSet("quote:"+ticker, quote)
	return quote, nil
}

// GetQuotes returns quotes for multiple tickers. Tickers whose lookup failed
// are absent from the result map.
func (s *Service) GetQuotes(ctx context.Context, tickers []string) map[string]*models.Quote {
	quotes := make(map[string]*models.Quote, len(tickers))
	for _, ticker := range tickers {
		quote, err := s.GetQuote(ctx, ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Quote lookup failed")
			continue
		}
		quotes[ticker] = quote
	}
	return quotes
}

// GetFundamentals returns fundamental data for a ticker.
func (s *Service) GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	if cached, ok := s.cacheGet("fundamentals:" + ticker); ok {
		return cached.(*models.Fundamentals), nil
	}

	f, err := s.client.GetFundamentals(ctx, ticker)
	if err != nil {
		return nil, err
	}

	s.cacheSet("fundamentals:"+ticker, f)
	return f, nil
}

// GetDividendHistory returns historical dividend payments since from.
func (s *Service) GetDividendHistory(ctx context.Context, ticker string, from time.Time) ([]models.DividendPayment, error) {
	key := fmt.Sprintf("dividends:%s:%s", ticker, from.Format("2006-01-02"))
	if cached, ok := s.cacheGet(key); ok {
		return cached.([]models.DividendPayment), nil
	}

	payments, err := s.client.GetDividends(ctx, ticker, from, s.now())
	if err != nil {
		return nil, err
	}

	s.cacheSet(key, payments)
	return payments, nil
}

// ToBase converts an amount into the base currency, returning the converted
// amount and the rate used. The live forex feed is tried first; on failure
// the static fallback table applies, and unknown currencies pass through at
// a rate of 1.
func (s *Service) ToBase(ctx context.Context, amount float64, currency string) (float64, float64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == s.baseCurrency {
		return amount, 1.0, nil
	}

	rate, err := s.getFXRate(ctx, currency)
	if err != nil {
		return 0, 0, err
	}
	return amount * rate, rate, nil
}

func (s *Service) getFXRate(ctx context.Context, currency string) (float64, error) {
	pair := currency + s.baseCurrency
	if cached, ok := s.cacheGet("fx:" + pair); ok {
		return cached.(float64), nil
	}

	rate, err := s.client.GetFXRate(ctx, pair)
	if err != nil || rate <= 0 {
		if fallback, ok := s.fallbackRate(currency); ok {
			s.logger.Warn().Err(err).Str("pair", pair).Float64("fallback", fallback).
				Msg("Live FX lookup failed, using fallback rate")
			return fallback, nil
		}
		s.logger.Warn().Err(err).Str("pair", pair).
			Msg("No FX rate available, passing amount through unconverted")
		return 1.0, nil
	}

	s.cacheSet("fx:"+pair, rate)
	return rate, nil
}

// fallbackRate returns the static rate into the base currency, if known.
// The table is expressed against DKK; other base currencies skip it.
func (s *Service) fallbackRate(currency string) (float64, bool) {
	if s.baseCurrency != "DKK" {
		return 0, false
	}
	rate, ok := fallbackRatesToDKK[currency]
	return rate, ok
}
