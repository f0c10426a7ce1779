// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "NA" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the EODHDClient interface
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// Add API key
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetEOD retrieves end-of-day price data
func (c *Client) GetEOD(ctx context.Context, ticker string, opts ...interfaces.EODOption) (*models.EODResponse, error) {
	params := &interfaces.EODParams{
		Period: "d",
		Order:  "d", // descending (most recent first)
	}

	for _, opt := range opts {
		opt(params)
	}

	urlParams := url.Values{}
	urlParams.Set("period", params.Period)
	urlParams.Set("order", params.Order)

	if !params.From.IsZero() {
		urlParams.Set("from", params.From.Format("2006-01-02"))
	}
	if !params.To.IsZero() {
		urlParams.Set("to", params.To.Format("2006-01-02"))
	}

	path := fmt.Sprintf("/eod/%s", ticker)

	var bars []eodBarResponse
	if err := c.get(ctx, path, urlParams, &bars); err != nil {
		return nil, err
	}

	result := &models.EODResponse{
		Data: make([]models.EODBar, len(bars)),
	}

	for i, bar := range bars {
		date, _ := time.Parse("2006-01-02", bar.Date)
		result.Data[i] = models.EODBar{
			Date:     date,
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			AdjClose: bar.AdjustedClose,
			Volume:   bar.Volume,
		}
	}

	return result, nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

// GetRealTimeQuote retrieves a delayed real-time quote
func (c *Client) GetRealTimeQuote(ctx context.Context, ticker string) (*models.RealTimeQuote, error) {
	path := fmt.Sprintf("/real-time/%s", ticker)

	var resp realTimeResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	return &models.RealTimeQuote{
		Code:      resp.Code,
		Timestamp: time.Unix(resp.Timestamp, 0),
		Open:      float64(resp.Open),
		High:      float64(resp.High),
		Low:       float64(resp.Low),
		Close:     float64(resp.Close),
		Volume:    resp.Volume,
	}, nil
}

// realTimeResponse represents the API response for real-time quotes.
// Numeric fields arrive as "NA" strings outside trading hours.
type realTimeResponse struct {
	Code      string      `json:"code"`
	Timestamp int64       `json:"timestamp"`
	Open      flexFloat64 `json:"open"`
	High      flexFloat64 `json:"high"`
	Low       flexFloat64 `json:"low"`
	Close     flexFloat64 `json:"close"`
	Volume    int64       `json:"volume"`
}

// GetFundamentals retrieves fundamental data
func (c *Client) GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	path := fmt.Sprintf("/fundamentals/%s", ticker)

	var resp fundamentalsResponse
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	fundamentals := &models.Fundamentals{
		Ticker:        ticker,
		Name:          resp.General.Name,
		Currency:      resp.General.CurrencyCode,
		Type:          resp.General.Type,
		DividendYield: float64(resp.Highlights.DividendYield),
		LastUpdated:   time.Now(),
	}

	// Zero dividend figures mean "not a payer"; leave the pointers nil so
	// callers can tell absent from genuinely zero.
	if resp.SplitsDividends.ForwardAnnualDividendRate > 0 {
		rate := float64(resp.SplitsDividends.ForwardAnnualDividendRate)
		fundamentals.ForwardAnnualDividendRate = &rate
	}
	if resp.Highlights.DividendYield > 0 {
		yield := float64(resp.Highlights.DividendYield)
		fundamentals.TrailingAnnualDividendYield = &yield
	}

	return fundamentals, nil
}

// fundamentalsResponse represents the API response structure
type fundamentalsResponse struct {
	General struct {
		Code         string `json:"Code"`
		Name         string `json:"Name"`
		Type         string `json:"Type"` // "Common Stock", "ETF", etc.
		CurrencyCode string `json:"CurrencyCode"`
	} `json:"General"`
	Highlights struct {
		DividendShare flexFloat64 `json:"DividendShare"`
		DividendYield flexFloat64 `json:"DividendYield"`
	} `json:"Highlights"`
	SplitsDividends struct {
		ForwardAnnualDividendRate  flexFloat64 `json:"ForwardAnnualDividendRate"`
		ForwardAnnualDividendYield flexFloat64 `json:"ForwardAnnualDividendYield"`
		PayoutRatio                flexFloat64 `json:"PayoutRatio"`
	} `json:"SplitsDividends"`
}

// GetDividends retrieves historical dividend payments between from and to
func (c *Client) GetDividends(ctx context.Context, ticker string, from, to time.Time) ([]models.DividendPayment, error) {
	path := fmt.Sprintf("/div/%s", ticker)

	params := url.Values{}
	if !from.IsZero() {
		params.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		params.Set("to", to.Format("2006-01-02"))
	}

	var resp []dividendResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	payments := make([]models.DividendPayment, 0, len(resp))
	for _, d := range resp {
		exDate, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			continue
		}
		payment := models.DividendPayment{
			ExDate:   exDate,
			Amount:   float64(d.Value),
			Currency: d.Currency,
		}
		if d.PaymentDate != "" {
			if payDate, err := time.Parse("2006-01-02", d.PaymentDate); err == nil {
				payment.PaymentDate = payDate
			}
		}
		payments = append(payments, payment)
	}

	return payments, nil
}

// dividendResponse represents one entry from the dividends endpoint
type dividendResponse struct {
	Date        string      `json:"date"` // ex-dividend date
	PaymentDate string      `json:"paymentDate"`
	Value       flexFloat64 `json:"value"`
	Currency    string      `json:"currency"`
}

// GetFXRate retrieves the current rate for a currency pair (e.g. "USDDKK")
// via the forex real-time feed.
func (c *Client) GetFXRate(ctx context.Context, pair string) (float64, error) {
	quote, err := c.GetRealTimeQuote(ctx, pair+".FOREX")
	if err != nil {
		return 0, err
	}
	if quote.Close <= 0 {
		return 0, fmt.Errorf("no rate available for %s", pair)
	}
	return quote.Close, nil
}

// Ensure Client implements EODHDClient
var _ interfaces.EODHDClient = (*Client)(nil)
