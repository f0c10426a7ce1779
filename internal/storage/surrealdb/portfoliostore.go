package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// PortfolioStore persists one versioned portfolio document per user.
// Saves are conditional on the stored version so concurrent writers cannot
// silently overwrite each other.
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{
		db:     db,
		logger: logger,
	}
}

func (s *PortfolioStore) Get(ctx context.Context, userID string) (*models.PortfolioRecord, error) {
	rec, err := surrealdb.Select[models.PortfolioRecord](ctx, s.db, surrealmodels.NewRecordID("portfolio", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to select portfolio: %w", err)
	}
	if rec == nil || rec.UserID == "" {
		return nil, models.ErrNotFound
	}
	if rec.Holdings == nil {
		rec.Holdings = make(map[string]models.Holding)
	}
	return rec, nil
}

// Save persists the record if the stored version still matches
// record.Version, then increments it. A record at version 0 has never been
// saved, so it is created instead; creation of an already-existing document
// also reports a conflict.
func (s *PortfolioStore) Save(ctx context.Context, record *models.PortfolioRecord) error {
	expected := record.Version
	record.Version = expected + 1

	if expected == 0 {
		sql := "CREATE type::record('portfolio', $id) CONTENT $record"
		vars := map[string]any{"id": record.UserID, "record": record}
		if _, err := surrealdb.Query[[]models.PortfolioRecord](ctx, s.db, sql, vars); err != nil {
			record.Version = expected
			// Only a duplicate record id is a lost race; anything else
			// (connection loss, bad query) is a real storage failure.
			if strings.Contains(err.Error(), "already exists") {
				s.logger.Debug().Err(err).Str("user_id", record.UserID).Msg("Portfolio create raced an existing record")
				return models.ErrVersionConflict
			}
			return fmt.Errorf("failed to create portfolio: %w", err)
		}
		return nil
	}

	sql := "UPDATE type::record('portfolio', $id) CONTENT $record WHERE version = $expected RETURN AFTER"
	vars := map[string]any{"id": record.UserID, "record": record, "expected": expected}

	results, err := surrealdb.Query[[]models.PortfolioRecord](ctx, s.db, sql, vars)
	if err != nil {
		record.Version = expected
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		record.Version = expected
		return models.ErrVersionConflict
	}
	return nil
}

func (s *PortfolioStore) Delete(ctx context.Context, userID string) error {
	_, err := surrealdb.Delete[models.PortfolioRecord](ctx, s.db, surrealmodels.NewRecordID("portfolio", userID))
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return nil
}
