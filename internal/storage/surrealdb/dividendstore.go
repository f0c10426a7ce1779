package surrealdb

import (
	"context"
	"fmt"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DividendStore persists credited dividend payments. Record ids embed the
// dedup key so a payment can only ever be credited once per user.
type DividendStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewDividendStore(db *surrealdb.DB, logger *common.Logger) *DividendStore {
	return &DividendStore{
		db:     db,
		logger: logger,
	}
}

func dividendID(userID, key string) string {
	return userID + "_" + key
}

func (s *DividendStore) Exists(ctx context.Context, userID, key string) (bool, error) {
	rec, err := surrealdb.Select[models.DividendRecord](ctx, s.db, surrealmodels.NewRecordID("dividends", dividendID(userID, key)))
	if err != nil {
		return false, fmt.Errorf("failed to check dividend: %w", err)
	}
	return rec != nil && rec.Key != "", nil
}

func (s *DividendStore) Save(ctx context.Context, record *models.DividendRecord) error {
	sql := "UPSERT type::record('dividends', $id) CONTENT $record"
	vars := map[string]any{"id": dividendID(record.UserID, record.Key), "record": record}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if _, err := surrealdb.Query[[]models.DividendRecord](ctx, s.db, sql, vars); err != nil {
			lastErr = err
			s.logger.Warn().Err(err).Int("attempt", attempt).Str("key", record.Key).Msg("Dividend save failed, retrying")
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to save dividend after 3 attempts: %w", lastErr)
}

func (s *DividendStore) List(ctx context.Context, userID string) ([]*models.DividendRecord, error) {
	sql := "SELECT * FROM dividends WHERE user_id = $user_id ORDER BY ex_date DESC"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.DividendRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list dividends: %w", err)
	}

	recs := make([]*models.DividendRecord, 0)
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			rec := (*results)[0].Result[i]
			recs = append(recs, &rec)
		}
	}
	return recs, nil
}

func (s *DividendStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	sql := "DELETE dividends WHERE user_id = $user_id RETURN BEFORE"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.DividendRecord](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to delete dividends: %w", err)
	}

	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	return count, nil
}
