package sqlsink

import "fmt"

// TableConfig configures the table name used by the SQL sink.
type TableConfig struct {
	// ResultsTable is the name of the table storing delivered outputs.
	ResultsTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		ResultsTable: "pipeline_results",
	}
}

// MigrationUp returns the SQL to create the results table for the given
// dialect. The is_eoi marker rows record end-of-inputs arrival per stage.
func MigrationUp(dialect Dialect, config TableConfig) string {
	idType := "TEXT"
	stageType := "TEXT"
	tsType := "TIMESTAMP"
	boolType := "BOOLEAN"
	switch dialect {
	case DialectPostgres:
		idType = "UUID"
		tsType = "TIMESTAMPTZ"
	case DialectMySQL:
		idType = "VARCHAR(36)"
		stageType = "VARCHAR(255)"
		boolType = "TINYINT(1)"
	}

	return fmt.Sprintf(`-- Create pipeline results table
CREATE TABLE %s (
    id %s PRIMARY KEY,
    stage %s NOT NULL,
    fitting_id %s NOT NULL,
    output TEXT,
    is_eoi %s NOT NULL,
    created_at %s NOT NULL
);

-- Index for reading results by stage in delivery order
CREATE INDEX idx_results_stage ON %s(stage, created_at);
`, config.ResultsTable, idType, stageType, stageType, boolType, tsType, config.ResultsTable)
}

// MigrationDown returns the SQL to drop the results table.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf(`-- Drop pipeline results table
DROP TABLE IF EXISTS %s;
`, config.ResultsTable)
}
