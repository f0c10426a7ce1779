package surrealdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/interfaces"
	tcommon "github.com/Simon-Egedal/farmor-aktier/tests/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surreal "github.com/surrealdb/surrealdb.go"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	sc := tcommon.StartSurrealDB(t)

	cfg := common.NewDefaultConfig()
	cfg.Environment = "test"
	cfg.Storage = common.StorageConfig{
		Address:   sc.Address(),
		Username:  "root",
		Password:  "root",
		Namespace: "farmor_test",
		Database:  testDBName(t, "mgr"),
		DataPath:  t.TempDir(),
	}
	return cfg
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(testLogger(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func TestNewManager(t *testing.T) {
	mgr := testManager(t)

	assert.NotNil(t, mgr.InternalStore())
	assert.NotNil(t, mgr.PortfolioStore())
	assert.NotNil(t, mgr.TransactionStore())
	assert.NotNil(t, mgr.DividendStore())
	assert.NotEmpty(t, mgr.DataPath())
}

func TestWriteRaw(t *testing.T) {
	mgr := testManager(t)

	data := []byte("chart image data")
	require.NoError(t, mgr.WriteRaw("charts", "alice_allocation.png", data))

	written, err := os.ReadFile(filepath.Join(mgr.DataPath(), "charts", "alice_allocation.png"))
	require.NoError(t, err)
	assert.Equal(t, data, written)
}

func TestWriteRawSanitizesKeys(t *testing.T) {
	mgr := testManager(t)

	require.NoError(t, mgr.WriteRaw("charts", "../../etc/passwd", []byte("x")))

	// The key collapses to a plain filename inside the data path.
	entries, err := os.ReadDir(filepath.Join(mgr.DataPath(), "charts"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
	assert.NotContains(t, entries[0].Name(), "..")
}

func TestMigrate_BackfillsDefaultUserScope(t *testing.T) {
	mgr := testManager(t)
	ctx := context.Background()

	// A legacy row written before transactions carried an owner.
	sql := "CREATE transactions:legacy SET tx_id = 'tx_legacy', type = 'deposit', amount = 100, date = $date"
	_, err := surreal.Query[any](ctx, mgr.db, sql, map[string]any{"date": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	require.NoError(t, mgr.Migrate(ctx))

	txs, err := mgr.TransactionStore().List(ctx, "default", interfaces.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "default", txs[0].UserID)
}
