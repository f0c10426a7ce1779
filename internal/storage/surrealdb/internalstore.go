package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type InternalStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewInternalStore(db *surrealdb.DB, logger *common.Logger) *InternalStore {
	return &InternalStore{
		db:     db,
		logger: logger,
	}
}

func (s *InternalStore) GetUser(ctx context.Context, userID string) (*models.InternalUser, error) {
	user, err := surrealdb.Select[models.InternalUser](ctx, s.db, surrealmodels.NewRecordID("user", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	if user == nil || user.UserID == "" {
		return nil, models.ErrNotFound
	}
	return user, nil
}

func (s *InternalStore) GetUserByUsername(ctx context.Context, username string) (*models.InternalUser, error) {
	sql := "SELECT * FROM user WHERE username = $username LIMIT 1"
	vars := map[string]any{"username": username}

	results, err := surrealdb.Query[[]models.InternalUser](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query user by username: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, models.ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

func (s *InternalStore) SaveUser(ctx context.Context, user *models.InternalUser) error {
	user.ModifiedAt = time.Now().UTC()

	sql := "UPSERT type::record('user', $id) CONTENT $user"
	vars := map[string]any{"id": user.UserID, "user": user}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.InternalUser](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save user after retries: %w", err)
		}
	}
	return nil
}

func (s *InternalStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := surrealdb.Delete[models.InternalUser](ctx, s.db, surrealmodels.NewRecordID("user", userID))
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *InternalStore) ListUsers(ctx context.Context) ([]string, error) {
	list, err := surrealdb.Select[[]models.InternalUser](ctx, s.db, surrealmodels.Table("user"))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var userIDs []string
	if list != nil {
		for _, u := range *list {
			if u.UserID != "" {
				userIDs = append(userIDs, u.UserID)
			}
		}
	}
	return userIDs, nil
}

// UserKeyValue ID format: user_kv:<userID>_<key>
func kvID(userID, key string) string {
	return userID + "_" + key
}

func (s *InternalStore) GetUserKV(ctx context.Context, userID, key string) (*models.UserKeyValue, error) {
	kv, err := surrealdb.Select[models.UserKeyValue](ctx, s.db, surrealmodels.NewRecordID("user_kv", kvID(userID, key)))
	if err != nil {
		return nil, fmt.Errorf("failed to select user KV: %w", err)
	}
	if kv == nil || kv.Key == "" {
		return nil, models.ErrNotFound
	}
	return kv, nil
}

func (s *InternalStore) SetUserKV(ctx context.Context, userID, key, value string) error {
	kv := models.UserKeyValue{
		UserID:   userID,
		Key:      key,
		Value:    value,
		DateTime: time.Now().UTC(),
	}

	sql := "UPSERT type::record('user_kv', $id) CONTENT $kv"
	vars := map[string]any{"id": kvID(userID, key), "kv": kv}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.UserKeyValue](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to set user KV after retries: %w", err)
		}
	}
	return nil
}

func (s *InternalStore) DeleteUserKV(ctx context.Context, userID, key string) error {
	_, err := surrealdb.Delete[models.UserKeyValue](ctx, s.db, surrealmodels.NewRecordID("user_kv", kvID(userID, key)))
	if err != nil {
		return fmt.Errorf("failed to delete user KV: %w", err)
	}
	return nil
}

func (s *InternalStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	type SysKV struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}

	kv, err := surrealdb.Select[SysKV](ctx, s.db, surrealmodels.NewRecordID("system_kv", key))
	if err != nil || kv == nil || kv.Key == "" {
		return "", models.ErrNotFound
	}
	return kv.Value, nil
}

func (s *InternalStore) SetSystemKV(ctx context.Context, key, value string) error {
	type SysKV struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	kv := SysKV{Key: key, Value: value}

	sql := "UPSERT type::record('system_kv', $id) CONTENT $kv"
	vars := map[string]any{"id": key, "kv": kv}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]SysKV](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to set system KV after retries: %w", err)
		}
	}
	return nil
}

func (s *InternalStore) Close() error {
	return nil
}
