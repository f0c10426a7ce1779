package server

import (
	"net/http"
	"strconv"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
)

// handlePortfolioGet handles GET /api/portfolio — the priced valuation.
// Estimated annual dividend income is filled in from the dividend calendar;
// a calendar failure degrades to a valuation without the estimate.
func (s *Server) handlePortfolioGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	valuation, err := s.app.PortfolioService.GetPortfolio(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	if calendar, err := s.app.DividendService.GetCalendar(r.Context()); err == nil {
		valuation.EstimatedAnnualIncome = calendar.AnnualTotal
	} else {
		s.logger.Warn().Err(err).Msg("Dividend calendar unavailable for valuation")
	}

	WriteJSON(w, http.StatusOK, valuation)
}

// handleHoldings handles GET /api/portfolio/holdings — the raw document.
func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	record, err := s.app.PortfolioService.GetRecord(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// handleAllocationChart handles GET /api/portfolio/chart — a PNG donut.
func (s *Server) handleAllocationChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	png, err := s.app.PortfolioService.RenderAllocationChart(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleDeposit handles POST /api/portfolio/deposit.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Amount float64 `json:"amount"`
		Note   string  `json:"note"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	tx, err := s.app.PortfolioService.Deposit(r.Context(), req.Amount, req.Note)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

// handleWithdraw handles POST /api/portfolio/withdraw.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Amount float64 `json:"amount"`
		Note   string  `json:"note"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	tx, err := s.app.PortfolioService.Withdraw(r.Context(), req.Amount, req.Note)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

// handleBuy handles POST /api/portfolio/buy.
// When price > 0 the purchase is recorded at the supplied price instead of
// the live market price, for entering positions acquired elsewhere.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Ticker   string  `json:"ticker"`
		Shares   float64 `json:"shares"`
		Price    float64 `json:"price,omitempty"`
		Currency string  `json:"currency,omitempty"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	var tx interface{}
	var err error
	if req.Price > 0 {
		tx, err = s.app.PortfolioService.BuyManual(r.Context(), req.Ticker, req.Shares, req.Price, req.Currency)
	} else {
		tx, err = s.app.PortfolioService.Buy(r.Context(), req.Ticker, req.Shares)
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

// handleSell handles POST /api/portfolio/sell.
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Ticker string  `json:"ticker"`
		Shares float64 `json:"shares"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	tx, err := s.app.PortfolioService.Sell(r.Context(), req.Ticker, req.Shares)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tx)
}

// handleSetup handles POST /api/portfolio/setup. An empty body (or a zero
// starting_cash) starts from the configured bankroll and buys the planned
// allocation.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		StartingCash float64 `json:"starting_cash"`
	}
	if r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}

	record, err := s.app.PortfolioService.Setup(r.Context(), req.StartingCash)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// handleReset handles POST /api/portfolio/reset. The wipe is destructive,
// so only authenticated admins may trigger it.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	uc := common.UserContextFromContext(r.Context())
	if uc == nil || uc.Role != "admin" {
		WriteError(w, http.StatusForbidden, "Admin role required")
		return
	}

	if err := s.app.PortfolioService.Reset(r.Context()); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleTransactions handles GET /api/portfolio/transactions?limit=n.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = v
	}

	txs, err := s.app.PortfolioService.ListTransactions(r.Context(), limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}
