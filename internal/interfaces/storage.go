// Package interfaces defines service contracts for farmor-aktier
package interfaces

import (
	"context"

	"github.com/Simon-Egedal/farmor-aktier/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	InternalStore() InternalStore
	PortfolioStore() PortfolioStore
	TransactionStore() TransactionStore
	DividendStore() DividendStore

	// DataPath returns the base data directory path for raw artifacts.
	DataPath() string

	// WriteRaw writes arbitrary binary data to a subdirectory atomically.
	// Key is sanitized for safe filenames (e.g. "allocation.png").
	WriteRaw(subdir, key string, data []byte) error

	// Migrate backfills legacy records missing a user_id scope.
	Migrate(ctx context.Context) error

	Close() error
}

// InternalStore manages user accounts, per-user config, and system-level KV.
type InternalStore interface {
	// User accounts
	GetUser(ctx context.Context, userID string) (*models.InternalUser, error)
	GetUserByUsername(ctx context.Context, username string) (*models.InternalUser, error)
	SaveUser(ctx context.Context, user *models.InternalUser) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) ([]string, error)

	// Per-user key-value config
	GetUserKV(ctx context.Context, userID, key string) (*models.UserKeyValue, error)
	SetUserKV(ctx context.Context, userID, key, value string) error
	DeleteUserKV(ctx context.Context, userID, key string) error

	// System key-value (non-user-scoped)
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error

	Close() error
}

// PortfolioStore persists the single versioned portfolio document per user.
type PortfolioStore interface {
	// Get loads a user's portfolio, or models.ErrNotFound if none exists.
	Get(ctx context.Context, userID string) (*models.PortfolioRecord, error)

	// Save persists the record if the stored version still matches
	// record.Version, then increments it. Returns models.ErrVersionConflict
	// when another writer got there first.
	Save(ctx context.Context, record *models.PortfolioRecord) error

	// Delete removes a user's portfolio document.
	Delete(ctx context.Context, userID string) error
}

// TransactionStore is the append-only transaction audit log.
type TransactionStore interface {
	Append(ctx context.Context, tx *models.Transaction) error
	List(ctx context.Context, userID string, opts QueryOptions) ([]*models.Transaction, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// QueryOptions configures list behavior for stores.
type QueryOptions struct {
	Limit   int
	OrderBy string // "date_desc" (default), "date_asc"
}

// DividendStore persists credited dividend payments, keyed for dedup.
type DividendStore interface {
	Exists(ctx context.Context, userID, key string) (bool, error)
	Save(ctx context.Context, record *models.DividendRecord) error
	List(ctx context.Context, userID string) ([]*models.DividendRecord, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}
