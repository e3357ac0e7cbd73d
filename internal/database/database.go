package database

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"exportappraiser/internal/models"
)

type Database struct {
	db *sql.DB
}

// NewDatabase creates a new database connection
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database connection with SQLite optimizations
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_cache_size=10000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	database := &Database{db: db}

	// Initialize schema
	if err := database.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// initializeSchema creates the batch run tables
func (d *Database) initializeSchema() error {
	// Read schema file
	schemaPath := filepath.Join("internal", "database", "schema.sql")
	schemaFile, err := os.Open(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to open schema file: %w", err)
	}
	defer schemaFile.Close()

	schema, err := io.ReadAll(schemaFile)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	// Execute schema
	if _, err := d.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Batch run methods

// CreateRun opens a new batch run row and returns its ID
func (d *Database) CreateRun(total int) (int64, error) {
	query := `
		INSERT INTO batch_runs (total_vehicles, status)
		VALUES (?, ?)
	`

	result, err := d.db.Exec(query, total, string(models.RunRunning))
	if err != nil {
		return 0, fmt.Errorf("failed to create batch run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	return id, nil
}

// RecordResult stores one appraisal outcome against a batch run
func (d *Database) RecordResult(runID int64, r models.AppraisalResult) error {
	query := `
		INSERT INTO run_results
		(run_id, vin, odometer, trim, list_price, listing_url, carfax_url, make, model, export_value, profit, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	// The site-reported trim wins over the inventory trim when both exist
	trim := r.SignalTrim
	if trim == "" {
		trim = r.Trim
	}

	var exportValue any
	if value, ok := r.ExportValue(); ok {
		exportValue = int64(value)
	}

	var profit any
	if r.Profit != nil {
		profit = *r.Profit
	}

	_, err := d.db.Exec(query, runID, r.VIN, r.Odometer, trim, r.ListPrice,
		r.ListingURL, r.CarfaxURL, r.Make, r.Model, exportValue, profit,
		string(r.Status), r.Error)
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}

	return nil
}

// FinishRun closes a batch run with its final status and tallies
func (d *Database) FinishRun(runID int64, status models.RunStatus, tally models.RunTally) error {
	query := `
		UPDATE batch_runs
		SET finished_at = ?, processed = ?, profitable = ?, losses = ?, no_data = ?, errors = ?, status = ?
		WHERE id = ?
	`

	_, err := d.db.Exec(query, time.Now(), tally.Processed, tally.Profitable,
		tally.Losses, tally.NoData, tally.Errors, string(status), runID)
	if err != nil {
		return fmt.Errorf("failed to finish batch run: %w", err)
	}

	return nil
}
