// Package sqlsink provides a durable fitting.Sink backed by database/sql.
// Supported dialects: PostgreSQL (lib/pq), MySQL (go-sql-driver/mysql) and
// SQLite (mattn/go-sqlite3); the driver is the caller's choice, the store
// only adapts placeholders and DDL.
package sqlsink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pipewright/fitting"
)

// Dialect selects placeholder style and DDL types.
type Dialect string

const (
	// DialectPostgres uses $n placeholders and native UUID/TIMESTAMPTZ.
	DialectPostgres Dialect = "postgres"

	// DialectMySQL uses ? placeholders.
	DialectMySQL Dialect = "mysql"

	// DialectSQLite uses ? placeholders.
	DialectSQLite Dialect = "sqlite"
)

// Config configures a SQL sink store.
type Config struct {
	// Table is the results table name (default: pipeline_results).
	Table string

	// Dialect selects the SQL dialect (default: postgres).
	Dialect Dialect
}

// Store is a SQL implementation of fitting.Sink. Delivered outputs are
// JSON-encoded into the results table; end-of-inputs arrival is recorded
// as a marker row per stage.
type Store struct {
	db      *sql.DB
	table   string
	dialect Dialect

	mu      sync.Mutex
	lastErr error
}

// Compile-time check that Store implements fitting.Sink.
var _ fitting.Sink = (*Store)(nil)

// New creates a SQL sink with default configuration for the given dialect.
func New(db *sql.DB, dialect Dialect) *Store {
	s, _ := NewWithConfig(db, Config{Dialect: dialect})
	return s
}

// NewWithConfig creates a SQL sink with custom configuration.
func NewWithConfig(db *sql.DB, cfg Config) (*Store, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTableConfig().ResultsTable
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectPostgres
	}
	switch cfg.Dialect {
	case DialectPostgres, DialectMySQL, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}

	return &Store{
		db:      db,
		table:   cfg.Table,
		dialect: cfg.Dialect,
	}, nil
}

// Dialect returns the configured dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Table returns the configured results table name.
func (s *Store) Table() string {
	return s.table
}

// insertQuery renders the insert statement with dialect placeholders.
func (s *Store) insertQuery() string {
	ph := func(i int) string {
		if s.dialect == DialectPostgres {
			return fmt.Sprintf("$%d", i)
		}
		return "?"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (id, stage, fitting_id, output, is_eoi, created_at) VALUES (%s, %s, %s, %s, %s, %s)",
		s.table, ph(1), ph(2), ph(3), ph(4), ph(5), ph(6),
	)
}

// Deliver implements fitting.Sink.
func (s *Store) Deliver(stage string, h *fitting.Handle, output any) error {
	payload, err := json.Marshal(output)
	if err != nil {
		// Non-serializable outputs are stored by their printable form.
		payload = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", output)))
	}

	_, err = s.db.Exec(s.insertQuery(),
		uuid.New().String(), stage, h.UniqueID, string(payload), false, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deliver output: %w", err)
	}
	return nil
}

// EOI implements fitting.Sink. The sink notification API has no error
// path; a failed insert is retained and reported by Err.
func (s *Store) EOI(h *fitting.Handle) {
	_, err := s.db.Exec(s.insertQuery(),
		uuid.New().String(), h.Name, h.UniqueID, nil, true, time.Now().UTC())
	if err != nil {
		s.mu.Lock()
		s.lastErr = fmt.Errorf("failed to record end of inputs: %w", err)
		s.mu.Unlock()
	}
}

// Err returns the most recent end-of-inputs recording failure, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Result is one row read back from the results table.
type Result struct {
	// Stage is the emitting stage's name.
	Stage string

	// Output is the JSON-encoded delivered value. Empty for marker rows.
	Output string

	// EOI marks an end-of-inputs marker row.
	EOI bool
}

// Results reads back all rows in delivery order.
func (s *Store) Results(ctx context.Context) ([]Result, error) {
	query := fmt.Sprintf("SELECT stage, output, is_eoi FROM %s ORDER BY created_at, id", s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Result
	for rows.Next() {
		var r Result
		var output sql.NullString
		if err := rows.Scan(&r.Stage, &output, &r.EOI); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Output = output.String
		out = append(out, r)
	}
	return out, rows.Err()
}
