// Command migrate-gen generates the SQL migration for the pipeline
// results sink.
//
// Usage:
//
//	go run github.com/pipewright/fitting/cmd/migrate-gen -dialect postgres -output migrations
//
// Generate migrations for different dialects:
//
//	go run github.com/pipewright/fitting/cmd/migrate-gen -dialect postgres
//	go run github.com/pipewright/fitting/cmd/migrate-gen -dialect mysql
//	go run github.com/pipewright/fitting/cmd/migrate-gen -dialect sqlite
//
// Customize the table name:
//
//	go run github.com/pipewright/fitting/cmd/migrate-gen -table my_results
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pipewright/fitting/sink/sqlsink"
)

func main() {
	var (
		dialect  = flag.String("dialect", "postgres", "SQL dialect: postgres, mysql, or sqlite")
		output   = flag.String("output", "migrations", "Output folder for migration files")
		filename = flag.String("filename", "", "Output filename (default: timestamp-based)")
		table    = flag.String("table", "", "Results table name (default: pipeline_results)")
	)

	flag.Parse()

	switch sqlsink.Dialect(*dialect) {
	case sqlsink.DialectPostgres, sqlsink.DialectMySQL, sqlsink.DialectSQLite:
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported dialect '%s'. Supported dialects are: postgres, mysql, sqlite\n", *dialect)
		os.Exit(1)
	}

	config := sqlsink.DefaultTableConfig()
	if *table != "" {
		config.ResultsTable = *table
	}

	name := *filename
	if name == "" {
		name = fmt.Sprintf("%s_pipeline_results.sql", time.Now().UTC().Format("20060102150405"))
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output folder: %v\n", err)
		os.Exit(1)
	}

	path := filepath.Join(*output, name)
	sql := sqlsink.MigrationUp(sqlsink.Dialect(*dialect), config)
	if err := os.WriteFile(path, []byte(sql), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s\n", *dialect, path)
}
