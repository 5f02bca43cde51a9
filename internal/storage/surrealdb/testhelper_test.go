package surrealdb

import (
	"context"
	"testing"
	"time"

	"github.com/bobmcallan/playasset/internal/common"
	tcommon "github.com/bobmcallan/playasset/tests/common"
	"github.com/shopspring/decimal"
	surreal "github.com/surrealdb/surrealdb.go"
)

// testManager starts the shared SurrealDB container and returns a manager
// bound to a unique database per test.
func testManager(t *testing.T) *Manager {
	t.Helper()

	cfg := tcommon.StartSurrealDB(t).StorageConfig(t, "playasset_test")
	ctx := context.Background()

	db, err := surreal.New(cfg.Address)
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		t.Fatalf("sign in to SurrealDB: %v", err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		t.Fatalf("select namespace/database: %v", err)
	}

	if err := defineTables(ctx, db); err != nil {
		t.Fatalf("define tables: %v", err)
	}

	t.Cleanup(func() {
		db.Close(context.Background())
	})

	return newManager(db, testLogger())
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
