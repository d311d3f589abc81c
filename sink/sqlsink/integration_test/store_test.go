//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "github.com/lib/pq"

	"github.com/pipewright/fitting"
	"github.com/pipewright/fitting/sink/sqlsink"
)

// getTestDB returns a database connection for integration tests.
// It reads the DATABASE_URL environment variable and skips the test if not set.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return db
}

// setupTable creates the results table and registers cleanup.
func setupTable(t *testing.T, db *sql.DB) {
	t.Helper()

	config := sqlsink.DefaultTableConfig()
	if _, err := db.Exec(sqlsink.MigrationUp(sqlsink.DialectPostgres, config)); err != nil {
		t.Fatalf("failed to create results table: %v", err)
	}

	t.Cleanup(func() {
		if _, err := db.Exec(sqlsink.MigrationDown(config)); err != nil {
			t.Logf("warning: failed to drop results table: %v", err)
		}
	})
}

func TestStore_DeliverAndReadBack(t *testing.T) {
	db := getTestDB(t)
	defer func() { _ = db.Close() }()
	setupTable(t, db)

	store := sqlsink.New(db, sqlsink.DialectPostgres)
	h := fitting.NewHandle("double", nil, fitting.Follow())

	require.NoError(t, store.Deliver("double", h, 42))
	require.NoError(t, store.Deliver("double", h, map[string]int{"count": 3}))

	results, err := store.Results(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "double", results[0].Stage)
	assert.Equal(t, "42", results[0].Output)
	assert.False(t, results[0].EOI)
	assert.JSONEq(t, `{"count": 3}`, results[1].Output)
}

func TestStore_EOIRecordsMarkerRow(t *testing.T) {
	db := getTestDB(t)
	defer func() { _ = db.Close() }()
	setupTable(t, db)

	store := sqlsink.New(db, sqlsink.DialectPostgres)
	h := fitting.NewHandle("double", nil, fitting.Follow())

	require.NoError(t, store.Deliver("double", h, 1))
	store.EOI(h)
	require.NoError(t, store.Err())

	results, err := store.Results(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].EOI)
	assert.True(t, results[1].EOI)
	assert.Equal(t, "double", results[1].Stage)
}
