// Package dividend estimates dividend income, projects the 12-month payment
// calendar, and credits newly observed payments to the portfolio.
package dividend

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// Compile-time interface check
var _ interfaces.DividendService = (*Service)(nil)

// maxPaymentAge is how stale the most recent payment may be before a ticker
// is treated as a former payer and skipped entirely.
const maxPaymentAge = 730 * 24 * time.Hour

// maxProjectionGapDays stops projection for cadences too irregular to trust.
const maxProjectionGapDays = 400

// payDateOffsetDays approximates the gap between ex-date and payment date.
const payDateOffsetDays = 25

// historyLookback is how far back payment history is fetched.
const historyLookback = 2 * 365 * 24 * time.Hour

// maxSaveAttempts bounds the reload-and-retry loop on version conflicts.
const maxSaveAttempts = 3

// Service implements DividendService.
type Service struct {
	storage      interfaces.StorageManager
	market       interfaces.MarketService
	logger       *common.Logger
	baseCurrency string
	now          func() time.Time // injectable clock for testing
}

// NewService creates a new dividend service.
func NewService(storage interfaces.StorageManager, market interfaces.MarketService, logger *common.Logger, baseCurrency string) *Service {
	if baseCurrency == "" {
		baseCurrency = "DKK"
	}
	return &Service{
		storage:      storage,
		market:       market,
		logger:       logger,
		baseCurrency: strings.ToUpper(baseCurrency),
		now:          time.Now,
	}
}

// EstimateAnnual estimates the annual per-share dividend for a ticker.
// Declared figures are preferred; payment history is the fallback.
func (s *Service) EstimateAnnual(ctx context.Context, ticker string) (*models.DividendEstimate, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	now := s.now()

	var currency string
	var fundamentals *models.Fundamentals
	if f, err := s.market.GetFundamentals(ctx, ticker); err == nil {
		fundamentals = f
		currency = strings.ToUpper(f.Currency)
	}

	// Fundamentals carry declared dividend figures but no price; the
	// trailing-yield fallback needs one, so it comes from the quote.
	var price float64
	if quote, err := s.market.GetQuote(ctx, ticker); err == nil {
		price = quote.Price
		if currency == "" {
			currency = quote.Currency
		}
	}

	payments, err := s.market.GetDividendHistory(ctx, ticker, now.Add(-historyLookback))
	if err != nil {
		s.logger.Debug().Err(err).Str("ticker", ticker).Msg("Dividend history unavailable")
		payments = nil
	}
	perYear, _ := detectInterval(payments)

	annual, method := annualFromFundamentals(fundamentals, price)
	if method == models.DividendMethodNone {
		annual, method = annualFromHistory(payments, now)
	}

	return &models.DividendEstimate{
		Ticker:          ticker,
		AnnualPerShare:  annual,
		PaymentsPerYear: perYear,
		Method:          method,
		Currency:        currency,
	}, nil
}

// GetCalendar projects dividend payments over the next 12 months for the
// acting user's holdings. Per-ticker failures are logged and contribute
// nothing rather than failing the whole calendar.
func (s *Service) GetCalendar(ctx context.Context) (*models.DividendCalendar, error) {
	userID := common.ResolveUserID(ctx)
	rec, err := s.loadRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	calendar := &models.DividendCalendar{
		UserID:        userID,
		BaseCurrency:  s.baseCurrency,
		Entries:       []models.CalendarEntry{},
		MonthlyTotals: make(map[string]float64),
		GeneratedAt:   now.UTC(),
	}

	for ticker, holding := range rec.Holdings {
		entries, err := s.projectHolding(ctx, ticker, holding, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Dividend projection skipped")
			continue
		}
		calendar.Entries = append(calendar.Entries, entries...)
	}

	sort.Slice(calendar.Entries, func(i, j int) bool {
		if calendar.Entries[i].PayDate.Equal(calendar.Entries[j].PayDate) {
			return calendar.Entries[i].Ticker < calendar.Entries[j].Ticker
		}
		return calendar.Entries[i].PayDate.Before(calendar.Entries[j].PayDate)
	})

	for _, entry := range calendar.Entries {
		calendar.MonthlyTotals[entry.PayDate.Format("2006-01")] += entry.Total
		calendar.AnnualTotal += entry.Total
	}

	return calendar, nil
}

// projectHolding projects the next year of payments for one holding.
func (s *Service) projectHolding(ctx context.Context, ticker string, holding models.Holding, now time.Time) ([]models.CalendarEntry, error) {
	payments, err := s.market.GetDividendHistory(ctx, ticker, now.Add(-historyLookback))
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, nil
	}

	sorted := sortedByExDate(payments)
	last := sorted[len(sorted)-1].ExDate
	if now.Sub(last) > maxPaymentAge {
		return nil, nil
	}

	perYear, medianGapDays := detectInterval(sorted)
	if perYear == 0 || medianGapDays <= 0 {
		return nil, nil
	}
	if medianGapDays >= maxProjectionGapDays {
		return nil, nil
	}

	estimate, err := s.EstimateAnnual(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if estimate.AnnualPerShare <= 0 {
		return nil, nil
	}
	perPayment := estimate.AnnualPerShare / float64(perYear)

	totalNative := perPayment * holding.Shares
	totalBase, _, err := s.market.ToBase(ctx, totalNative, holding.Currency)
	if err != nil {
		return nil, err
	}

	horizon := now.AddDate(0, 0, 365)
	var entries []models.CalendarEntry
	next := last
	for steps := 0; len(entries) < perYear && steps < 40; steps++ {
		next = next.AddDate(0, 0, medianGapDays)
		if next.After(horizon) {
			break
		}
		if !next.After(now) {
			continue
		}
		entries = append(entries, models.CalendarEntry{
			Ticker:         ticker,
			Name:           holding.Name,
			ExDate:         next,
			PayDate:        next.AddDate(0, 0, payDateOffsetDays),
			AmountPerShare: perPayment,
			Shares:         holding.Shares,
			Total:          totalBase,
			Currency:       estimate.Currency,
		})
	}

	return entries, nil
}

// CheckNewPayments finds payments that went ex since the last check, credits
// them to cash and TotalDividendsReceived, and records them for dedup. The
// first check on a portfolio only sets the baseline — history before it is
// not credited.
func (s *Service) CheckNewPayments(ctx context.Context) ([]*models.DividendRecord, error) {
	userID := common.ResolveUserID(ctx)

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		rec, err := s.loadRecord(ctx, userID)
		if err != nil {
			return nil, err
		}

		now := s.now().UTC()
		since := rec.LastDividendCheck
		baselineOnly := since.IsZero()

		var newRecords []*models.DividendRecord
		var creditTotal float64

		if !baselineOnly {
			for ticker, holding := range rec.Holdings {
				payments, err := s.market.GetDividendHistory(ctx, ticker, since)
				if err != nil {
					s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Dividend check skipped for ticker")
					continue
				}
				for _, p := range payments {
					if p.ExDate.Before(since) || p.ExDate.After(now) {
						continue
					}
					key := models.DividendKey(ticker, p.ExDate)
					exists, err := s.storage.DividendStore().Exists(ctx, userID, key)
					if err != nil {
						return nil, fmt.Errorf("failed to check dividend record: %w", err)
					}
					if exists {
						continue
					}

					totalBase, _, err := s.market.ToBase(ctx, p.Amount*holding.Shares, holding.Currency)
					if err != nil {
						s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Dividend conversion failed, skipping")
						continue
					}

					payDate := p.PaymentDate
					if payDate.IsZero() {
						payDate = p.ExDate.AddDate(0, 0, payDateOffsetDays)
					}
					newRecords = append(newRecords, &models.DividendRecord{
						UserID:         userID,
						Key:            key,
						Ticker:         ticker,
						ExDate:         p.ExDate,
						PayDate:        payDate,
						AmountPerShare: p.Amount,
						Shares:         holding.Shares,
						Total:          totalBase,
						Currency:       holding.Currency,
						CreditedAt:     now,
					})
					creditTotal += totalBase
				}
			}
		}

		rec.CashBalance += creditTotal
		rec.TotalDividendsReceived += creditTotal
		rec.LastDividendCheck = now
		rec.UpdatedAt = now

		if err := s.storage.PortfolioStore().Save(ctx, rec); err != nil {
			if errors.Is(err, models.ErrVersionConflict) && attempt < maxSaveAttempts {
				continue
			}
			return nil, err
		}

		for _, divRec := range newRecords {
			if err := s.storage.DividendStore().Save(ctx, divRec); err != nil {
				s.logger.Error().Err(err).Str("key", divRec.Key).Msg("Failed to save dividend record")
				continue
			}
			tx := &models.Transaction{
				ID:        generateDividendTxID(),
				UserID:    userID,
				Type:      models.TxDividend,
				Ticker:    divRec.Ticker,
				Shares:    divRec.Shares,
				Price:     divRec.AmountPerShare,
				Currency:  divRec.Currency,
				Amount:    divRec.Total,
				Date:      divRec.ExDate,
				CreatedAt: now,
			}
			if err := s.storage.TransactionStore().Append(ctx, tx); err != nil {
				s.logger.Error().Err(err).Str("key", divRec.Key).Msg("Failed to append dividend transaction")
			}
		}

		if len(newRecords) > 0 {
			s.logger.Info().Str("user_id", userID).Int("payments", len(newRecords)).
				Float64("total", creditTotal).Msg("Dividends credited")
		}
		return newRecords, nil
	}

	return nil, models.ErrVersionConflict
}

// ListReceived returns all credited dividend payments, newest first.
func (s *Service) ListReceived(ctx context.Context) ([]*models.DividendRecord, error) {
	userID := common.ResolveUserID(ctx)
	records, err := s.storage.DividendStore().List(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ExDate.After(records[j].ExDate)
	})
	return records, nil
}

func (s *Service) loadRecord(ctx context.Context, userID string) (*models.PortfolioRecord, error) {
	rec, err := s.storage.PortfolioStore().Get(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.NewPortfolioRecord(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio: %w", err)
	}
	return rec, nil
}

// generateDividendTxID returns a unique ID with "dv_" prefix + 8 hex chars.
func generateDividendTxID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "dv_00000000"
	}
	return "dv_" + hex.EncodeToString(b)
}
