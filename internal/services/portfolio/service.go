// Package portfolio manages portfolio state: cash movements, trades at live
// prices, and valuation against current market data.
package portfolio

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// Compile-time interface check
var _ interfaces.PortfolioService = (*Service)(nil)

// maxSaveAttempts bounds the reload-and-retry loop on version conflicts.
const maxSaveAttempts = 3

// shareEpsilon absorbs float drift when checking whether a position is flat.
const shareEpsilon = 1e-9

// Service implements PortfolioService.
type Service struct {
	storage      interfaces.StorageManager
	market       interfaces.MarketService
	logger       *common.Logger
	baseCurrency string
	plan         common.PortfolioConfig
	now          func() time.Time // injectable clock for testing
}

// NewService creates a new portfolio service.
func NewService(storage interfaces.StorageManager, market interfaces.MarketService, logger *common.Logger, baseCurrency string, plan common.PortfolioConfig) *Service {
	if baseCurrency == "" {
		baseCurrency = "DKK"
	}
	return &Service{
		storage:      storage,
		market:       market,
		logger:       logger,
		baseCurrency: strings.ToUpper(baseCurrency),
		plan:         plan,
		now:          time.Now,
	}
}

// generateTransactionID returns a unique ID with "tx_" prefix + 8 hex chars.
func generateTransactionID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "tx_00000000"
	}
	return "tx_" + hex.EncodeToString(b)
}

func validateAmount(amount float64) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return models.ErrInvalidAmount
	}
	return nil
}

func validateShares(shares float64) error {
	if shares <= 0 {
		return models.ErrInvalidShares
	}
	if math.IsInf(shares, 0) || math.IsNaN(shares) {
		return models.ErrInvalidShares
	}
	return nil
}

// mutate runs fn against the user's current portfolio record and saves the
// result. A version conflict reloads the record and reapplies fn, so a failed
// fn never leaves a partial write behind. The transaction fn returns is
// appended to the audit log after a successful save.
func (s *Service) mutate(ctx context.Context, fn func(rec *models.PortfolioRecord) (*models.Transaction, error)) (*models.Transaction, error) {
	userID := common.ResolveUserID(ctx)

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		rec, err := s.storage.PortfolioStore().Get(ctx, userID)
		if errors.Is(err, models.ErrNotFound) {
			rec = models.NewPortfolioRecord(userID)
		} else if err != nil {
			return nil, fmt.Errorf("failed to load portfolio: %w", err)
		}

		tx, err := fn(rec)
		if err != nil {
			return nil, err
		}

		rec.UpdatedAt = s.now().UTC()
		if err := s.storage.PortfolioStore().Save(ctx, rec); err != nil {
			if errors.Is(err, models.ErrVersionConflict) && attempt < maxSaveAttempts {
				s.logger.Debug().Str("user_id", userID).Int("attempt", attempt).
					Msg("Portfolio version conflict, retrying")
				continue
			}
			return nil, err
		}

		if tx != nil {
			if err := s.storage.TransactionStore().Append(ctx, tx); err != nil {
				// The portfolio write already landed; a missing audit row is
				// logged, not rolled back.
				s.logger.Error().Err(err).Str("user_id", userID).Str("tx_id", tx.ID).
					Msg("Failed to append transaction record")
			}
		}
		return tx, nil
	}

	return nil, models.ErrVersionConflict
}

// GetRecord returns the raw persisted portfolio document, or an empty one
// when the user has no portfolio yet.
func (s *Service) GetRecord(ctx context.Context) (*models.PortfolioRecord, error) {
	userID := common.ResolveUserID(ctx)
	rec, err := s.storage.PortfolioStore().Get(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.NewPortfolioRecord(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Deposit adds cash to the portfolio.
func (s *Service) Deposit(ctx context.Context, amount float64, note string) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	userID := common.ResolveUserID(ctx)
	tx, err := s.mutate(ctx, func(rec *models.PortfolioRecord) (*models.Transaction, error) {
		rec.CashBalance += amount
		rec.TotalDeposited += amount
		return s.newTransaction(userID, models.TxDeposit, amount, note), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Float64("amount", amount).Msg("Cash deposited")
	return tx, nil
}

// Withdraw removes cash from the portfolio.
func (s *Service) Withdraw(ctx context.Context, amount float64, note string) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	userID := common.ResolveUserID(ctx)
	tx, err := s.mutate(ctx, func(rec *models.PortfolioRecord) (*models.Transaction, error) {
		if rec.CashBalance < amount {
			return nil, models.ErrInsufficientFunds
		}
		rec.CashBalance -= amount
		rec.TotalWithdrawn += amount
		return s.newTransaction(userID, models.TxWithdraw, amount, note), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Float64("amount", amount).Msg("Cash withdrawn")
	return tx, nil
}

// Buy purchases shares at the current market price.
func (s *Service) Buy(ctx context.Context, ticker string, shares float64) (*models.Transaction, error) {
	if err := validateShares(shares); err != nil {
		return nil, err
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}

	quote, err := s.market.GetQuote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to price %s: %w", ticker, err)
	}

	return s.buy(ctx, ticker, shares, quote.Price, quote.Currency, quote.Name, "")
}

// BuyManual purchases shares at a caller-supplied price, for entering
// positions acquired elsewhere.
func (s *Service) BuyManual(ctx context.Context, ticker string, shares, price float64, currency string) (*models.Transaction, error) {
	if err := validateShares(shares); err != nil {
		return nil, err
	}
	// Zero is a valid fill price: free shares from a split or a grant.
	if price < 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return nil, models.ErrInvalidAmount
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.baseCurrency
	}

	// Instrument name is cosmetic; a failed lookup falls back to the ticker.
	name := ticker
	if f, err := s.market.GetFundamentals(ctx, ticker); err == nil && f.Name != "" {
		name = f.Name
	}

	return s.buy(ctx, ticker, shares, price, currency, name, "")
}

func (s *Service) buy(ctx context.Context, ticker string, shares, price float64, currency, name, category string) (*models.Transaction, error) {
	costNative := shares * price
	costBase, fxRate, err := s.market.ToBase(ctx, costNative, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to %s: %w", currency, s.baseCurrency, err)
	}

	userID := common.ResolveUserID(ctx)
	tx, err := s.mutate(ctx, func(rec *models.PortfolioRecord) (*models.Transaction, error) {
		if rec.CashBalance < costBase {
			return nil, models.ErrInsufficientFunds
		}
		rec.CashBalance -= costBase

		holding, exists := rec.Holdings[ticker]
		if !exists {
			holding = models.Holding{Ticker: ticker, Name: name, Currency: currency, BuyDate: s.now().UTC()}
		}
		if holding.Category == "" {
			holding.Category = category
		}
		// Weighted-average cost: the new average blends the existing position
		// with this purchase by share count.
		totalShares := holding.Shares + shares
		holding.AvgPrice = (holding.Shares*holding.AvgPrice + shares*price) / totalShares
		holding.Shares = totalShares
		if holding.Name == "" || holding.Name == ticker {
			holding.Name = name
		}
		rec.Holdings[ticker] = holding

		tx := s.newTransaction(userID, models.TxBuy, costBase, "")
		tx.Ticker = ticker
		tx.Shares = shares
		tx.Price = price
		tx.Currency = currency
		tx.FXRate = fxRate
		return tx, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("ticker", ticker).
		Float64("shares", shares).Float64("price", price).Str("currency", currency).
		Msg("Shares bought")
	return tx, nil
}

// Sell disposes shares at the current market price. The average cost of the
// remaining position is unchanged; a position sold to zero is removed.
func (s *Service) Sell(ctx context.Context, ticker string, shares float64) (*models.Transaction, error) {
	if err := validateShares(shares); err != nil {
		return nil, err
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	quote, err := s.market.GetQuote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to price %s: %w", ticker, err)
	}

	proceedsNative := shares * quote.Price
	proceedsBase, fxRate, err := s.market.ToBase(ctx, proceedsNative, quote.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to %s: %w", quote.Currency, s.baseCurrency, err)
	}

	userID := common.ResolveUserID(ctx)
	tx, err := s.mutate(ctx, func(rec *models.PortfolioRecord) (*models.Transaction, error) {
		holding, exists := rec.Holdings[ticker]
		if !exists || holding.Shares < shares-shareEpsilon {
			return nil, models.ErrInsufficientShares
		}

		holding.Shares -= shares
		if holding.Shares <= shareEpsilon {
			delete(rec.Holdings, ticker)
		} else {
			rec.Holdings[ticker] = holding
		}
		rec.CashBalance += proceedsBase

		tx := s.newTransaction(userID, models.TxSell, proceedsBase, "")
		tx.Ticker = ticker
		tx.Shares = shares
		tx.Price = quote.Price
		tx.Currency = quote.Currency
		tx.FXRate = fxRate
		return tx, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("ticker", ticker).
		Float64("shares", shares).Float64("price", quote.Price).Msg("Shares sold")
	return tx, nil
}

// Setup initializes a fresh portfolio, discarding any existing holdings.
// The starting balance is startingCash, or the configured bankroll when
// startingCash is zero. The configured planned allocation is then bought
// position by position; a ticker whose quote lookup or purchase fails is
// logged and skipped rather than failing the whole setup.
func (s *Service) Setup(ctx context.Context, startingCash float64) (*models.PortfolioRecord, error) {
	if startingCash < 0 || math.IsInf(startingCash, 0) || math.IsNaN(startingCash) {
		return nil, models.ErrInvalidAmount
	}
	if startingCash == 0 {
		startingCash = s.plan.Bankroll
	}

	userID := common.ResolveUserID(ctx)
	_, err := s.mutate(ctx, func(rec *models.PortfolioRecord) (*models.Transaction, error) {
		rec.Holdings = make(map[string]models.Holding)
		rec.CashBalance = startingCash
		rec.TotalDeposited = startingCash
		rec.TotalWithdrawn = 0
		rec.TotalDividendsReceived = 0
		rec.LastDividendCheck = time.Time{}
		if startingCash > 0 {
			return s.newTransaction(userID, models.TxDeposit, startingCash, "initial balance"), nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	bought := 0
	for _, pos := range s.plan.Allocation {
		ticker := strings.ToUpper(strings.TrimSpace(pos.Ticker))
		if ticker == "" || pos.Amount <= 0 {
			continue
		}

		quote, err := s.market.GetQuote(ctx, ticker)
		if err != nil || quote.Price <= 0 {
			s.logger.Warn().Err(err).Str("user_id", userID).Str("ticker", ticker).
				Msg("Skipping planned position, quote lookup failed")
			continue
		}
		perShareBase, _, err := s.market.ToBase(ctx, quote.Price, quote.Currency)
		if err != nil || perShareBase <= 0 {
			s.logger.Warn().Err(err).Str("user_id", userID).Str("ticker", ticker).
				Msg("Skipping planned position, currency conversion failed")
			continue
		}

		// Whole shares only; a target too small for one share is skipped.
		shares := math.Floor(pos.Amount / perShareBase)
		if shares < 1 {
			s.logger.Warn().Str("user_id", userID).Str("ticker", ticker).
				Float64("amount", pos.Amount).Msg("Skipping planned position, below one share")
			continue
		}

		if _, err := s.buy(ctx, ticker, shares, quote.Price, quote.Currency, quote.Name, pos.Category); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Str("ticker", ticker).
				Msg("Skipping planned position, buy failed")
			continue
		}
		bought++
	}

	s.logger.Info().Str("user_id", userID).Float64("starting_cash", startingCash).
		Int("planned", len(s.plan.Allocation)).Int("bought", bought).
		Msg("Portfolio initialized")
	return s.GetRecord(ctx)
}

// Reset wipes the portfolio, its transactions, and its dividend records.
func (s *Service) Reset(ctx context.Context) error {
	userID := common.ResolveUserID(ctx)

	if err := s.storage.PortfolioStore().Delete(ctx, userID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	txCount, err := s.storage.TransactionStore().DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}
	divCount, err := s.storage.DividendStore().DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete dividend records: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Int("transactions", txCount).
		Int("dividends", divCount).Msg("Portfolio reset")
	return nil
}

// ListTransactions returns the transaction history, newest first.
func (s *Service) ListTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	userID := common.ResolveUserID(ctx)
	return s.storage.TransactionStore().List(ctx, userID, interfaces.QueryOptions{
		Limit:   limit,
		OrderBy: "date_desc",
	})
}

// GetPortfolio returns the portfolio priced at current market levels.
// Tickers whose quote lookup failed are valued at their average cost and
// flagged stale rather than dropped.
func (s *Service) GetPortfolio(ctx context.Context) (*models.PortfolioValuation, error) {
	rec, err := s.GetRecord(ctx)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(rec.Holdings))
	for ticker := range rec.Holdings {
		tickers = append(tickers, ticker)
	}
	quotes := s.market.GetQuotes(ctx, tickers)

	valuation := &models.PortfolioValuation{
		UserID:                 rec.UserID,
		BaseCurrency:           s.baseCurrency,
		Holdings:               make([]models.HoldingValuation, 0, len(rec.Holdings)),
		CashBalance:            rec.CashBalance,
		TotalDeposited:         rec.TotalDeposited,
		TotalWithdrawn:         rec.TotalWithdrawn,
		TotalDividendsReceived: rec.TotalDividendsReceived,
		AsOf:                   s.now().UTC(),
	}

	for _, ticker := range tickers {
		holding := rec.Holdings[ticker]

		price := holding.AvgPrice
		stale := true
		if quote, ok := quotes[ticker]; ok && quote.Price > 0 {
			price = quote.Price
			stale = false
		}

		// Cost basis and market value convert at the same rate so the
		// gain/loss reflects price movement, not FX noise.
		_, fxRate, err := s.market.ToBase(ctx, 1, holding.Currency)
		if err != nil {
			fxRate = 1.0
		}

		hv := models.HoldingValuation{
			Ticker:       ticker,
			Name:         holding.Name,
			Shares:       holding.Shares,
			AvgPrice:     holding.AvgPrice,
			Currency:     holding.Currency,
			CurrentPrice: price,
			FXRate:       fxRate,
			CostBasis:    holding.CostBasis() * fxRate,
			MarketValue:  holding.Shares * price * fxRate,
			PriceStale:   stale,
		}
		hv.GainLoss = hv.MarketValue - hv.CostBasis
		if hv.CostBasis > 0 {
			hv.GainLossPct = hv.GainLoss / hv.CostBasis * 100
		}

		valuation.Holdings = append(valuation.Holdings, hv)
		valuation.EquityValue += hv.MarketValue
		valuation.TotalCostBasis += hv.CostBasis
	}

	// Largest positions first, ties broken by ticker for stable output.
	sortHoldingValuations(valuation.Holdings)

	for i := range valuation.Holdings {
		if valuation.EquityValue > 0 {
			valuation.Holdings[i].WeightPct = valuation.Holdings[i].MarketValue / valuation.EquityValue * 100
		}
	}

	valuation.TotalValue = valuation.EquityValue + valuation.CashBalance
	valuation.TotalGainLoss = valuation.EquityValue - valuation.TotalCostBasis
	if valuation.TotalCostBasis > 0 {
		valuation.TotalGainLossPct = valuation.TotalGainLoss / valuation.TotalCostBasis * 100
	}

	return valuation, nil
}

func sortHoldingValuations(holdings []models.HoldingValuation) {
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].MarketValue != holdings[j].MarketValue {
			return holdings[i].MarketValue > holdings[j].MarketValue
		}
		return holdings[i].Ticker < holdings[j].Ticker
	})
}

func (s *Service) newTransaction(userID string, txType models.TransactionType, amount float64, note string) *models.Transaction {
	now := s.now().UTC()
	return &models.Transaction{
		ID:        generateTransactionID(),
		UserID:    userID,
		Type:      txType,
		Amount:    amount,
		Note:      note,
		Date:      now,
		CreatedAt: now,
	}
}
