package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// holdingEstimate is one held position's projected annual dividend income.
type holdingEstimate struct {
	Ticker          string                `json:"ticker"`
	Name            string                `json:"name"`
	Shares          float64               `json:"shares"`
	AnnualPerShare  float64               `json:"annual_per_share"` // native currency
	Currency        string                `json:"currency"`
	PaymentsPerYear int                   `json:"payments_per_year"`
	Method          models.DividendMethod `json:"method"`
	AnnualIncome    float64               `json:"annual_income"` // base currency
}

// handleDividendEstimates handles GET /api/dividends — a per-holding annual
// income estimate for everything currently held. Tickers that cannot be
// estimated are skipped so one bad instrument does not empty the response.
func (s *Server) handleDividendEstimates(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	rec, err := s.app.PortfolioService.GetRecord(ctx)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	estimates := make([]holdingEstimate, 0, len(rec.Holdings))
	total := 0.0
	for ticker, holding := range rec.Holdings {
		est, err := s.app.DividendService.EstimateAnnual(ctx, ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", ticker).
				Msg("Skipping dividend estimate for holding")
			continue
		}

		annualBase, _, err := s.app.MarketService.ToBase(ctx, holding.Shares*est.AnnualPerShare, est.Currency)
		if err != nil {
			annualBase = holding.Shares * est.AnnualPerShare
		}

		estimates = append(estimates, holdingEstimate{
			Ticker:          ticker,
			Name:            holding.Name,
			Shares:          holding.Shares,
			AnnualPerShare:  est.AnnualPerShare,
			Currency:        est.Currency,
			PaymentsPerYear: est.PaymentsPerYear,
			Method:          est.Method,
			AnnualIncome:    annualBase,
		})
		total += annualBase
	}

	sort.Slice(estimates, func(i, j int) bool {
		if estimates[i].AnnualIncome != estimates[j].AnnualIncome {
			return estimates[i].AnnualIncome > estimates[j].AnnualIncome
		}
		return estimates[i].Ticker < estimates[j].Ticker
	})

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"base_currency":       s.app.Config.BaseCurrency,
		"estimates":           estimates,
		"total_annual_income": total,
		"count":               len(estimates),
	})
}

// handleDividendCalendar handles GET /api/dividends/calendar.
func (s *Server) handleDividendCalendar(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	calendar, err := s.app.DividendService.GetCalendar(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, calendar)
}

// handleDividendsReceived handles GET /api/dividends/received.
func (s *Server) handleDividendsReceived(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	records, err := s.app.DividendService.ListReceived(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"dividends": records,
		"count":     len(records),
	})
}

// handleDividendCheck handles POST /api/dividends/check — credit any
// payments that went ex since the last check.
func (s *Server) handleDividendCheck(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	credited, err := s.app.DividendService.CheckNewPayments(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"credited": credited,
		"count":    len(credited),
	})
}

// handleDividendEstimate handles GET /api/dividends/estimate/{ticker}.
func (s *Server) handleDividendEstimate(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required in path")
		return
	}

	estimate, err := s.app.DividendService.EstimateAnnual(r.Context(), strings.ToUpper(ticker))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, estimate)
}
