// Package surrealdb implements the storage layer on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	"github.com/surrealdb/surrealdb.go"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db       *surrealdb.DB
	logger   *common.Logger
	dataPath string

	internalStore    *InternalStore
	portfolioStore   *PortfolioStore
	transactionStore *TransactionStore
	dividendStore    *DividendStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	// Connect to SurrealDB
	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	// Sign in
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	// Select namespace and database
	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	// Define tables to ensure they exist (SurrealDB v3 errors on querying non-existent tables)
	tables := []string{"user", "user_kv", "system_kv", "portfolio", "transactions", "dividends"}
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	// Ensure DataPath exists (for raw writes like rendered charts)
	dataPath := config.Storage.DataPath
	if dataPath == "" {
		dataPath = "data"
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}

	m := &Manager{
		db:       db,
		logger:   logger,
		dataPath: dataPath,
	}

	// Init stores
	m.internalStore = NewInternalStore(db, logger)
	m.portfolioStore = NewPortfolioStore(db, logger)
	m.transactionStore = NewTransactionStore(db, logger)
	m.dividendStore = NewDividendStore(db, logger)

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func (m *Manager) InternalStore() interfaces.InternalStore {
	return m.internalStore
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolioStore
}

func (m *Manager) TransactionStore() interfaces.TransactionStore {
	return m.transactionStore
}

func (m *Manager) DividendStore() interfaces.DividendStore {
	return m.dividendStore
}

func (m *Manager) DataPath() string {
	return m.dataPath
}

// WriteRaw writes binary data (e.g. rendered charts) under the data path
// atomically: write to a temp file, then rename into place.
func (m *Manager) WriteRaw(subdir, key string, data []byte) error {
	dir := filepath.Join(m.dataPath, sanitizeKey(subdir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	target := filepath.Join(dir, sanitizeKey(key))
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", tmp, err)
	}
	return nil
}

// sanitizeKey strips path separators and parent references from a key so it
// is always a plain filename.
func sanitizeKey(key string) string {
	key = strings.ReplaceAll(key, "..", "")
	key = strings.ReplaceAll(key, "/", "_")
	key = strings.ReplaceAll(key, "\\", "_")
	return key
}

// Migrate backfills legacy records missing a user_id scope. Early releases
// stored a single portfolio with no owner; those rows are assigned to the
// "default" user.
func (m *Manager) Migrate(ctx context.Context) error {
	for _, table := range []string{"portfolio", "transactions", "dividends"} {
		sql := fmt.Sprintf("UPDATE %s SET user_id = 'default' WHERE user_id = NONE OR user_id = ''", table)
		if _, err := surrealdb.Query[any](ctx, m.db, sql, nil); err != nil {
			return fmt.Errorf("failed to backfill user_id on %s: %w", table, err)
		}
	}
	m.logger.Debug().Msg("Storage migration complete")
	return nil
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
