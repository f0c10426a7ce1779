package surrealdb

import (
	"context"
	"testing"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecord(userID string) *models.PortfolioRecord {
	rec := models.NewPortfolioRecord(userID)
	rec.CashBalance = 12500.50
	rec.TotalDeposited = 50000
	rec.TotalWithdrawn = 2500
	rec.TotalDividendsReceived = 812.25
	rec.Holdings = map[string]models.Holding{
		"NOVO-B.CO": {
			Ticker:   "NOVO-B.CO",
			Name:     "Novo Nordisk A/S",
			Shares:   42.5,
			AvgPrice: 412.75,
			Currency: "DKK",
			Category: "medicinal",
			BuyDate:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		"AAPL.US": {
			Ticker:   "AAPL.US",
			Name:     "Apple Inc",
			Shares:   10,
			AvgPrice: 189.30,
			Currency: "USD",
			BuyDate:  time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		},
	}
	return rec
}

func TestPortfolioStore_SaveAndReload(t *testing.T) {
	store := NewPortfolioStore(testDB(t), testLogger())
	ctx := context.Background()

	rec := seedRecord("alice")
	require.NoError(t, store.Save(ctx, rec))
	assert.Equal(t, 1, rec.Version, "save must bump the in-memory version")

	loaded, err := store.Get(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, rec.UserID, loaded.UserID)
	assert.Equal(t, rec.Version, loaded.Version)
	assert.Equal(t, rec.CashBalance, loaded.CashBalance)
	assert.Equal(t, rec.TotalDeposited, loaded.TotalDeposited)
	assert.Equal(t, rec.TotalWithdrawn, loaded.TotalWithdrawn)
	assert.Equal(t, rec.TotalDividendsReceived, loaded.TotalDividendsReceived)

	require.Len(t, loaded.Holdings, len(rec.Holdings))
	for ticker, want := range rec.Holdings {
		got, ok := loaded.Holdings[ticker]
		require.True(t, ok, "missing holding %s", ticker)
		assert.Equal(t, want.Ticker, got.Ticker)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Shares, got.Shares)
		assert.Equal(t, want.AvgPrice, got.AvgPrice)
		assert.Equal(t, want.Currency, got.Currency)
		assert.Equal(t, want.Category, got.Category)
		assert.True(t, want.BuyDate.Equal(got.BuyDate), "buy date drifted: %v != %v", want.BuyDate, got.BuyDate)
	}
}

func TestPortfolioStore_GetMissing(t *testing.T) {
	store := NewPortfolioStore(testDB(t), testLogger())

	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPortfolioStore_StaleVersionConflicts(t *testing.T) {
	store := NewPortfolioStore(testDB(t), testLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, seedRecord("alice")))

	// Two readers load version 1; the first write wins, the second must
	// conflict and leave its version untouched for the retry loop.
	first, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	second, err := store.Get(ctx, "alice")
	require.NoError(t, err)

	first.CashBalance = 999
	require.NoError(t, store.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.CashBalance = 111
	err = store.Save(ctx, second)
	assert.ErrorIs(t, err, models.ErrVersionConflict)
	assert.Equal(t, 1, second.Version, "failed save must roll the version back")

	loaded, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 999.0, loaded.CashBalance, "losing write must not land")
}

func TestPortfolioStore_CreateRaceConflicts(t *testing.T) {
	store := NewPortfolioStore(testDB(t), testLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, seedRecord("alice")))

	// A second version-0 record for the same user is a lost creation race,
	// not a storage failure.
	err := store.Save(ctx, seedRecord("alice"))
	assert.ErrorIs(t, err, models.ErrVersionConflict)
}

func TestPortfolioStore_Delete(t *testing.T) {
	store := NewPortfolioStore(testDB(t), testLogger())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, seedRecord("alice")))
	require.NoError(t, store.Delete(ctx, "alice"))

	_, err := store.Get(ctx, "alice")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
