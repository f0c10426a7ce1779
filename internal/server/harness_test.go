package server

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/app"
	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
	"github.com/Simon-Egedal/farmor-aktier/internal/services/user"
)

// --- in-memory internal store ---

type memInternalStore struct {
	users map[string]*models.InternalUser
	kv    map[string]string
}

func newMemInternalStore() *memInternalStore {
	return &memInternalStore{
		users: make(map[string]*models.InternalUser),
		kv:    make(map[string]string),
	}
}

func (m *memInternalStore) GetUser(ctx context.Context, userID string) (*models.InternalUser, error) {
	u, ok := m.users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return u, nil
}

func (m *memInternalStore) GetUserByUsername(ctx context.Context, username string) (*models.InternalUser, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memInternalStore) SaveUser(ctx context.Context, u *models.InternalUser) error {
	m.users[u.UserID] = u
	return nil
}

func (m *memInternalStore) DeleteUser(ctx context.Context, userID string) error {
	delete(m.users, userID)
	return nil
}

func (m *memInternalStore) ListUsers(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memInternalStore) GetUserKV(ctx context.Context, userID, key string) (*models.UserKeyValue, error) {
	v, ok := m.kv[userID+"_"+key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &models.UserKeyValue{UserID: userID, Key: key, Value: v}, nil
}

func (m *memInternalStore) SetUserKV(ctx context.Context, userID, key, value string) error {
	m.kv[userID+"_"+key] = value
	return nil
}

func (m *memInternalStore) DeleteUserKV(ctx context.Context, userID, key string) error {
	delete(m.kv, userID+"_"+key)
	return nil
}

func (m *memInternalStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	v, ok := m.kv["sys_"+key]
	if !ok {
		return "", models.ErrNotFound
	}
	return v, nil
}

func (m *memInternalStore) SetSystemKV(ctx context.Context, key, value string) error {
	m.kv["sys_"+key] = value
	return nil
}

func (m *memInternalStore) Close() error { return nil }

type mockStorage struct {
	internal *memInternalStore
}

func (m *mockStorage) InternalStore() interfaces.InternalStore       { return m.internal }
func (m *mockStorage) PortfolioStore() interfaces.PortfolioStore     { return nil }
func (m *mockStorage) TransactionStore() interfaces.TransactionStore { return nil }
func (m *mockStorage) DividendStore() interfaces.DividendStore       { return nil }
func (m *mockStorage) DataPath() string                              { return "" }
func (m *mockStorage) WriteRaw(subdir, key string, data []byte) error {
	return nil
}
func (m *mockStorage) Migrate(ctx context.Context) error { return nil }
func (m *mockStorage) Close() error                      { return nil }

// --- mock services with per-method hooks ---

type mockPortfolioService struct {
	getPortfolio     func(ctx context.Context) (*models.PortfolioValuation, error)
	getRecord        func(ctx context.Context) (*models.PortfolioRecord, error)
	deposit          func(ctx context.Context, amount float64, note string) (*models.Transaction, error)
	withdraw         func(ctx context.Context, amount float64, note string) (*models.Transaction, error)
	buy              func(ctx context.Context, ticker string, shares float64) (*models.Transaction, error)
	buyManual        func(ctx context.Context, ticker string, shares, price float64, currency string) (*models.Transaction, error)
	sell             func(ctx context.Context, ticker string, shares float64) (*models.Transaction, error)
	setup            func(ctx context.Context, startingCash float64) (*models.PortfolioRecord, error)
	reset            func(ctx context.Context) error
	listTransactions func(ctx context.Context, limit int) ([]*models.Transaction, error)
	renderChart      func(ctx context.Context) ([]byte, error)
}

func (m *mockPortfolioService) GetPortfolio(ctx context.Context) (*models.PortfolioValuation, error) {
	if m.getPortfolio != nil {
		return m.getPortfolio(ctx)
	}
	return &models.PortfolioValuation{}, nil
}

func (m *mockPortfolioService) GetRecord(ctx context.Context) (*models.PortfolioRecord, error) {
	if m.getRecord != nil {
		return m.getRecord(ctx)
	}
	return models.NewPortfolioRecord("default"), nil
}

func (m *mockPortfolioService) Deposit(ctx context.Context, amount float64, note string) (*models.Transaction, error) {
	if m.deposit != nil {
		return m.deposit(ctx, amount, note)
	}
	return &models.Transaction{}, nil
}

func (m *mockPortfolioService) Withdraw(ctx context.Context, amount float64, note string) (*models.Transaction, error) {
	if m.withdraw != nil {
		return m.withdraw(ctx, amount, note)
	}
	return &models.Transaction{}, nil
}

func (m *mockPortfolioService) Buy(ctx context.Context, ticker string, shares float64) (*models.Transaction, error) {
	if m.buy != nil {
		return m.buy(ctx, ticker, shares)
	}
	return &models.Transaction{}, nil
}

func (m *mockPortfolioService) BuyManual(ctx context.Context, ticker string, shares, price float64, currency string) (*models.Transaction, error) {
	if m.buyManual != nil {
		return m.buyManual(ctx, ticker, shares, price, currency)
	}
	return &models.Transaction{}, nil
}

func (m *mockPortfolioService) Sell(ctx context.Context, ticker string, shares float64) (*models.Transaction, error) {
	if m.sell != nil {
		return m.sell(ctx, ticker, shares)
	}
	return &models.Transaction{}, nil
}

func (m *mockPortfolioService) Setup(ctx context.Context, startingCash float64) (*models.PortfolioRecord, error) {
	if m.setup != nil {
		return m.setup(ctx, startingCash)
	}
	return models.NewPortfolioRecord("default"), nil
}

func (m *mockPortfolioService) Reset(ctx context.Context) error {
	if m.reset != nil {
		return m.reset(ctx)
	}
	return nil
}

func (m *mockPortfolioService) ListTransactions(ctx context.Context, limit int) ([]*models.Transaction, error) {
	if m.listTransactions != nil {
		return m.listTransactions(ctx, limit)
	}
	return nil, nil
}

func (m *mockPortfolioService) RenderAllocationChart(ctx context.Context) ([]byte, error) {
	if m.renderChart != nil {
		return m.renderChart(ctx)
	}
	return nil, nil
}

type mockDividendService struct {
	estimateAnnual   func(ctx context.Context, ticker string) (*models.DividendEstimate, error)
	getCalendar      func(ctx context.Context) (*models.DividendCalendar, error)
	checkNewPayments func(ctx context.Context) ([]*models.DividendRecord, error)
	listReceived     func(ctx context.Context) ([]*models.DividendRecord, error)
}

func (m *mockDividendService) EstimateAnnual(ctx context.Context, ticker string) (*models.DividendEstimate, error) {
	if m.estimateAnnual != nil {
		return m.estimateAnnual(ctx, ticker)
	}
	return &models.DividendEstimate{Ticker: ticker, Method: models.DividendMethodNone}, nil
}

func (m *mockDividendService) GetCalendar(ctx context.Context) (*models.DividendCalendar, error) {
	if m.getCalendar != nil {
		return m.getCalendar(ctx)
	}
	return &models.DividendCalendar{}, nil
}

func (m *mockDividendService) CheckNewPayments(ctx context.Context) ([]*models.DividendRecord, error) {
	if m.checkNewPayments != nil {
		return m.checkNewPayments(ctx)
	}
	return nil, nil
}

func (m *mockDividendService) ListReceived(ctx context.Context) ([]*models.DividendRecord, error) {
	if m.listReceived != nil {
		return m.listReceived(ctx)
	}
	return nil, nil
}

type mockMarketService struct {
	getQuote func(ctx context.Context, ticker string) (*models.Quote, error)
}

func (m *mockMarketService) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	if m.getQuote != nil {
		return m.getQuote(ctx, ticker)
	}
	return &models.Quote{Ticker: ticker}, nil
}

func (m *mockMarketService) GetQuotes(ctx context.Context, tickers []string) map[string]*models.Quote {
	return nil
}

func (m *mockMarketService) GetFundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	return &models.Fundamentals{Ticker: ticker}, nil
}

func (m *mockMarketService) GetDividendHistory(ctx context.Context, ticker string, from time.Time) ([]models.DividendPayment, error) {
	return nil, nil
}

func (m *mockMarketService) ToBase(ctx context.Context, amount float64, currency string) (float64, float64, error) {
	return amount, 1.0, nil
}

// --- server builders ---

func newTestServer(portfolioSvc interfaces.PortfolioService, dividendSvc interfaces.DividendService) *Server {
	logger := common.NewSilentLogger()
	cfg := common.NewDefaultConfig()
	if portfolioSvc == nil {
		portfolioSvc = &mockPortfolioService{}
	}
	if dividendSvc == nil {
		dividendSvc = &mockDividendService{}
	}
	a := &app.App{
		Config:           cfg,
		Logger:           logger,
		PortfolioService: portfolioSvc,
		DividendService:  dividendSvc,
		MarketService:    &mockMarketService{},
	}
	return &Server{app: a, logger: logger}
}

// newAuthTestServer wires a real user service over an in-memory store so the
// register/login/validate flow exercises real bcrypt hashes and JWTs.
func newAuthTestServer(t *testing.T) (*Server, *memInternalStore) {
	t.Helper()
	logger := common.NewSilentLogger()
	cfg := common.NewDefaultConfig()
	store := newMemInternalStore()
	storage := &mockStorage{internal: store}

	a := &app.App{
		Config:      cfg,
		Logger:      logger,
		Storage:     storage,
		UserService: user.NewService(storage, logger),
	}
	return &Server{app: a, logger: logger}, store
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return bytes.NewBuffer(data)
}
