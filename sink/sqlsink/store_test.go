package sqlsink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithConfig_AppliesDefaults(t *testing.T) {
	s, err := NewWithConfig(nil, Config{})
	require.NoError(t, err)

	assert.Equal(t, "pipeline_results", s.Table())
	assert.Equal(t, DialectPostgres, s.Dialect())
}

func TestNewWithConfig_RejectsUnknownDialect(t *testing.T) {
	_, err := NewWithConfig(nil, Config{Dialect: "oracle"})
	assert.Error(t, err)
}

func TestInsertQuery_PostgresPlaceholders(t *testing.T) {
	s := New(nil, DialectPostgres)

	query := s.insertQuery()

	assert.Contains(t, query, "INSERT INTO pipeline_results")
	assert.Contains(t, query, "$1")
	assert.Contains(t, query, "$6")
	assert.NotContains(t, query, "?")
}

func TestInsertQuery_QuestionMarkPlaceholders(t *testing.T) {
	for _, dialect := range []Dialect{DialectMySQL, DialectSQLite} {
		s := New(nil, dialect)

		query := s.insertQuery()

		assert.Equal(t, 6, strings.Count(query, "?"), "dialect %s", dialect)
		assert.NotContains(t, query, "$1")
	}
}

func TestInsertQuery_CustomTable(t *testing.T) {
	s, err := NewWithConfig(nil, Config{Table: "custom_results", Dialect: DialectSQLite})
	require.NoError(t, err)

	assert.Contains(t, s.insertQuery(), "INSERT INTO custom_results")
}

func TestMigrationUp_PerDialectTypes(t *testing.T) {
	config := DefaultTableConfig()

	pg := MigrationUp(DialectPostgres, config)
	assert.Contains(t, pg, "CREATE TABLE pipeline_results")
	assert.Contains(t, pg, "UUID PRIMARY KEY")
	assert.Contains(t, pg, "TIMESTAMPTZ")

	my := MigrationUp(DialectMySQL, config)
	assert.Contains(t, my, "VARCHAR(36) PRIMARY KEY")
	assert.Contains(t, my, "TINYINT(1)")

	lite := MigrationUp(DialectSQLite, config)
	assert.Contains(t, lite, "TEXT PRIMARY KEY")
	assert.Contains(t, lite, "BOOLEAN")
}

func TestMigrationUp_CustomTableName(t *testing.T) {
	sql := MigrationUp(DialectPostgres, TableConfig{ResultsTable: "my_results"})

	assert.Contains(t, sql, "CREATE TABLE my_results")
	assert.Contains(t, sql, "ON my_results(stage, created_at)")
}

func TestMigrationDown_DropsTable(t *testing.T) {
	sql := MigrationDown(DefaultTableConfig())

	assert.Contains(t, sql, "DROP TABLE IF EXISTS pipeline_results")
}
