package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleDividendEstimates_SkipsFailedTickers(t *testing.T) {
	portfolioSvc := &mockPortfolioService{
		getRecord: func(ctx context.Context) (*models.PortfolioRecord, error) {
			return &models.PortfolioRecord{
				UserID: "default",
				Holdings: map[string]models.Holding{
					"NOVO-B.CO": {Ticker: "NOVO-B.CO", Name: "Novo Nordisk B", Shares: 42, Currency: "DKK"},
					"BROKEN.CO": {Ticker: "BROKEN.CO", Shares: 10, Currency: "DKK"},
				},
			}, nil
		},
	}
	dividendSvc := &mockDividendService{
		estimateAnnual: func(ctx context.Context, ticker string) (*models.DividendEstimate, error) {
			if ticker == "BROKEN.CO" {
				return nil, context.DeadlineExceeded
			}
			return &models.DividendEstimate{
				Ticker:          ticker,
				AnnualPerShare:  11.40,
				PaymentsPerYear: 2,
				Method:          models.DividendMethodHistoryIQR,
				Currency:        "DKK",
			}, nil
		},
	}

	srv := newTestServer(portfolioSvc, dividendSvc)
	req := httptest.NewRequest(http.MethodGet, "/api/dividends", nil)
	rec := httptest.NewRecorder()

	srv.handleDividendEstimates(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		BaseCurrency string `json:"base_currency"`
		Estimates    []struct {
			Ticker       string  `json:"ticker"`
			Shares       float64 `json:"shares"`
			AnnualIncome float64 `json:"annual_income"`
		} `json:"estimates"`
		TotalAnnualIncome float64 `json:"total_annual_income"`
		Count             int     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "DKK", resp.BaseCurrency)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "NOVO-B.CO", resp.Estimates[0].Ticker)
	assert.InDelta(t, 42*11.40, resp.Estimates[0].AnnualIncome, 1e-9)
	assert.InDelta(t, 42*11.40, resp.TotalAnnualIncome, 1e-9)
}

func TestHandleDividendEstimates_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/dividends", nil)
	rec := httptest.NewRecorder()

	srv.handleDividendEstimates(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleDividendCalendar_Success(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	dividendSvc := &mockDividendService{
		getCalendar: func(ctx context.Context) (*models.DividendCalendar, error) {
			return &models.DividendCalendar{
				UserID:       "default",
				BaseCurrency: "DKK",
				Entries: []models.CalendarEntry{
					{Ticker: "NOVO-B.CO", ExDate: now.AddDate(0, 1, 0), Total: 250},
				},
				MonthlyTotals: map[string]float64{"2026-10": 250},
				AnnualTotal:   250,
				GeneratedAt:   now,
			}, nil
		},
	}

	srv := newTestServer(nil, dividendSvc)
	req := httptest.NewRequest(http.MethodGet, "/api/dividends/calendar", nil)
	rec := httptest.NewRecorder()

	srv.handleDividendCalendar(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.DividendCalendar
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "DKK", resp.BaseCurrency)
	assert.Len(t, resp.Entries, 1)
	assert.Equal(t, 250.0, resp.AnnualTotal)
}

func TestHandleDividendCheck_ReturnsCredited(t *testing.T) {
	dividendSvc := &mockDividendService{
		checkNewPayments: func(ctx context.Context) ([]*models.DividendRecord, error) {
			return []*models.DividendRecord{
				{Ticker: "NOVO-B.CO", Key: "NOVO-B.CO_2026-08-15", Total: 75},
			}, nil
		},
	}

	srv := newTestServer(nil, dividendSvc)
	req := httptest.NewRequest(http.MethodPost, "/api/dividends/check", nil)
	rec := httptest.NewRecorder()

	srv.handleDividendCheck(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(1), resp["count"])
}

func TestHandleDividendCheck_RequiresPost(t *testing.T) {
	srv := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/dividends/check", nil)
	rec := httptest.NewRecorder()

	srv.handleDividendCheck(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleDividendsReceived_Empty(t *testing.T) {
	srv := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/dividends/received", nil)
	rec := httptest.NewRecorder()

	srv.handleDividendsReceived(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(0), resp["count"])
}

func TestHandleDividendEstimate_UppercasesTicker(t *testing.T) {
	var gotTicker string
	dividendSvc := &mockDividendService{
		estimateAnnual: func(ctx context.Context, ticker string) (*models.DividendEstimate, error) {
			gotTicker = ticker
			return &models.DividendEstimate{
				Ticker:          ticker,
				AnnualPerShare:  11.40,
				PaymentsPerYear: 2,
				Method:          models.DividendMethodHistoryIQR,
			}, nil
		},
	}

	srv := newTestServer(nil, dividendSvc)
	req := httptest.NewRequest(http.MethodGet, "/api/dividends/estimate/novo-b.co", nil)
	rec := httptest.NewRecorder()

	srv.routeDividends(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "NOVO-B.CO", gotTicker)

	var resp models.DividendEstimate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 11.40, resp.AnnualPerShare)
}

func TestRouteDividends_UnknownAction(t *testing.T) {
	srv := newTestServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/dividends/nonsense", nil)
	rec := httptest.NewRecorder()

	srv.routeDividends(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
