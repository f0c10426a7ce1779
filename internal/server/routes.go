package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Auth
	mux.HandleFunc("/api/auth/register", s.handleAuthRegister)
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/api/auth/validate", s.handleAuthValidate)

	// Portfolio
	mux.HandleFunc("/api/portfolio/", s.routePortfolio)
	mux.HandleFunc("/api/portfolio", s.handlePortfolioGet)

	// Dividends
	mux.HandleFunc("/api/dividends", s.handleDividendEstimates)
	mux.HandleFunc("/api/dividends/", s.routeDividends)

	// Market data
	mux.HandleFunc("/api/market/quote/", s.handleMarketQuote)
}

// routePortfolio dispatches /api/portfolio/{action} to the appropriate handler.
func (s *Server) routePortfolio(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/portfolio/")
	switch action {
	case "":
		s.handlePortfolioGet(w, r)
	case "holdings":
		s.handleHoldings(w, r)
	case "chart":
		s.handleAllocationChart(w, r)
	case "deposit":
		s.handleDeposit(w, r)
	case "withdraw":
		s.handleWithdraw(w, r)
	case "buy":
		s.handleBuy(w, r)
	case "sell":
		s.handleSell(w, r)
	case "setup":
		s.handleSetup(w, r)
	case "reset":
		s.handleReset(w, r)
	case "transactions":
		s.handleTransactions(w, r)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeDividends dispatches /api/dividends/{action} to the appropriate handler.
func (s *Server) routeDividends(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/dividends/")
	switch {
	case action == "":
		s.handleDividendEstimates(w, r)
	case action == "calendar":
		s.handleDividendCalendar(w, r)
	case action == "received":
		s.handleDividendsReceived(w, r)
	case action == "check":
		s.handleDividendCheck(w, r)
	case strings.HasPrefix(action, "estimate/"):
		ticker := strings.TrimPrefix(action, "estimate/")
		s.handleDividendEstimate(w, r, ticker)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":       s.app.Config.Environment,
		"base_currency":     s.app.Config.BaseCurrency,
		"storage_address":   s.app.Config.Storage.Address,
		"storage_namespace": s.app.Config.Storage.Namespace,
		"storage_database":  s.app.Config.Storage.Database,
		"storage_data_path": s.app.Config.Storage.DataPath,
		"logging_level":     s.app.Config.Logging.Level,
		"eodhd_configured":  s.app.EODHDClient != nil,
		"uptime":            time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// handleMarketQuote handles GET /api/market/quote/{ticker}.
func (s *Server) handleMarketQuote(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ticker := strings.TrimPrefix(r.URL.Path, "/api/market/quote/")
	if ticker == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required in path")
		return
	}

	quote, err := s.app.MarketService.GetQuote(r.Context(), strings.ToUpper(ticker))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quote)
}
