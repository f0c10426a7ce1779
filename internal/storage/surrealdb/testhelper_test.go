package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	tcommon "github.com/Simon-Egedal/farmor-aktier/tests/common"
	surreal "github.com/surrealdb/surrealdb.go"
)

// testDBName builds a database name unique to the calling test so tests can
// share one container without seeing each other's rows. Subtest names carry
// "/" and spaces, which SurrealDB rejects in identifiers.
func testDBName(t *testing.T, prefix string) string {
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("%s_%s_%d", prefix, sanitized, time.Now().UnixNano()%100000)
}

// testDB starts the shared SurrealDB container and returns a connected
// *surreal.DB on an isolated database with the application tables defined.
func testDB(t *testing.T) *surreal.DB {
	t.Helper()

	sc := tcommon.StartSurrealDB(t)
	ctx := context.Background()

	db, err := surreal.New(sc.Address())
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": "root",
		"pass": "root",
	}); err != nil {
		t.Fatalf("sign in to SurrealDB: %v", err)
	}

	if err := db.Use(ctx, "farmor_test", testDBName(t, "t")); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}

	// SurrealDB v3 errors on querying tables that were never defined.
	for _, table := range []string{"user", "user_kv", "system_kv", "portfolio", "transactions", "dividends"} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surreal.Query[any](ctx, db, sql, nil); err != nil {
			t.Fatalf("define table %s: %v", table, err)
		}
	}

	t.Cleanup(func() {
		db.Close(context.Background())
	})

	return db
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
