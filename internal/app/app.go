package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/clients/eodhd"
	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/Simon-Egedal/farmor-aktier/internal/services/dividend"
	"github.com/Simon-Egedal/farmor-aktier/internal/services/market"
	"github.com/Simon-Egedal/farmor-aktier/internal/services/portfolio"
	"github.com/Simon-Egedal/farmor-aktier/internal/services/user"
	"github.com/Simon-Egedal/farmor-aktier/internal/storage/surrealdb"
)

// App holds all initialized services, clients, and storage.
// It is the shared core wired up once at startup and handed to the server.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	EODHDClient      interfaces.EODHDClient
	MarketService    interfaces.MarketService
	PortfolioService interfaces.PortfolioService
	DividendService  interfaces.DividendService
	UserService      interfaces.UserService
	StartupTime      time.Time

	dividendCheckCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, FARMOR_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("FARMOR_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "farmor.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/farmor.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative data path to binary directory
	if config.Storage.DataPath != "" && !filepath.IsAbs(config.Storage.DataPath) {
		config.Storage.DataPath = filepath.Join(binDir, config.Storage.DataPath)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()
	if err := storageManager.Migrate(ctx); err != nil {
		logger.Warn().Err(err).Msg("Storage migration failed")
	}

	eodhdKey, err := common.ResolveAPIKey(ctx, storageManager.InternalStore(), "eodhd_api_key", config.Clients.EODHD.APIKey)
	if err != nil {
		logger.Warn().Msg("EODHD API key not configured - market data will be unavailable")
	}

	eodhdClient := eodhd.NewClient(eodhdKey,
		eodhd.WithLogger(logger),
		eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
		eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
	)

	marketService := market.NewService(eodhdClient, logger, config.BaseCurrency, config.Clients.EODHD.GetCacheTTL())
	portfolioService := portfolio.NewService(storageManager, marketService, logger, config.BaseCurrency, config.Portfolio)
	dividendService := dividend.NewService(storageManager, marketService, logger, config.BaseCurrency)
	userService := user.NewService(storageManager, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		EODHDClient:      eodhdClient,
		MarketService:    marketService,
		PortfolioService: portfolioService,
		DividendService:  dividendService,
		UserService:      userService,
		StartupTime:      startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.dividendCheckCancel != nil {
		a.dividendCheckCancel()
		a.dividendCheckCancel = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
