package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"
)

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         []string
}

func main() {
	fmt.Println("🗃️  Export Appraiser Database Tool")
	fmt.Println("==================================")

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/main.go <command> [args]")
		fmt.Println("Commands:")
		fmt.Println("  init          - Initialize database with current schema")
		fmt.Println("  migrate       - Run pending migrations")
		fmt.Println("  import-json   - Import appraisal results from a JSON dump")
		fmt.Println("  status        - Show migration status")
		fmt.Println("  prune [days]  - Delete runs finished more than N days ago (default 90)")
		fmt.Println("  backup        - Copy the database and inventory snapshot aside")
		os.Exit(1)
	}

	command := os.Args[1]

	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded configuration from .env")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/appraiser.db"
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatal("Failed to create data directory:", err)
	}

	// Connect to database
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Enable foreign keys and WAL mode
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		log.Fatal("Failed to enable foreign keys:", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Fatal("Failed to enable WAL mode:", err)
	}

	switch command {
	case "init":
		initializeDatabase(db)
	case "migrate":
		runMigrations(db)
	case "import-json":
		jsonPath := "./data/results_export.json"
		if len(os.Args) >= 3 {
			jsonPath = os.Args[2]
		}
		importResultsFromJSON(db, jsonPath)
	case "status":
		showMigrationStatus(db, dbPath)
	case "prune":
		days := 90
		if len(os.Args) >= 3 {
			parsed, err := strconv.Atoi(os.Args[2])
			if err != nil || parsed < 1 {
				log.Fatal("Prune expects a positive number of days, got:", os.Args[2])
			}
			days = parsed
		}
		pruneOldRuns(db, days)
	case "backup":
		backupData(db, dbPath)
	default:
		log.Fatal("Unknown command:", command)
	}
}

func initializeDatabase(db *sql.DB) {
	fmt.Println("Initializing database with current schema...")

	schemaPath := filepath.Join("internal", "database", "schema.sql")
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		log.Fatalf("Failed to read schema file %s: %v", schemaPath, err)
	}

	if _, err := db.Exec(string(schema)); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	fmt.Println("✅ Database initialized successfully!")
}

func runMigrations(db *sql.DB) {
	fmt.Println("Running database migrations...")

	// Ensure metadata table exists
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS database_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		log.Fatal("Failed to create metadata table:", err)
	}

	// Check current schema version
	var currentVersion string
	err = db.QueryRow("SELECT value FROM database_metadata WHERE key = 'schema_version'").Scan(&currentVersion)
	if err != nil {
		if err == sql.ErrNoRows {
			currentVersion = "0.0" // No version found, treat as new database
			_, err = db.Exec("INSERT INTO database_metadata (key, value) VALUES ('schema_version', '0.0')")
			if err != nil {
				log.Fatal("Failed to set initial version:", err)
			}
		} else {
			log.Fatal("Failed to check current schema version:", err)
		}
	}

	fmt.Printf("Current schema version: %s\n", currentVersion)

	migrations := getMigrations()
	applied := 0

	for _, migration := range migrations {
		if shouldApplyMigration(currentVersion, migration.Version) {
			fmt.Printf("Applying migration %s: %s\n", migration.Version, migration.Description)

			if err := applyMigration(db, migration); err != nil {
				log.Fatalf("Failed to apply migration %s: %v", migration.Version, err)
			}

			// Update schema version
			_, err := db.Exec("UPDATE database_metadata SET value = ?, updated_at = datetime('now') WHERE key = 'schema_version'", migration.Version)
			if err != nil {
				log.Fatal("Failed to update schema version:", err)
			}

			applied++
			currentVersion = migration.Version
		}
	}

	if applied == 0 {
		fmt.Println("✅ No migrations needed - database is up to date!")
	} else {
		fmt.Printf("✅ Applied %d migrations successfully!\n", applied)
	}
}

func importResultsFromJSON(db *sql.DB, jsonPath string) {
	fmt.Printf("Importing appraisal results from %s...\n", jsonPath)

	// Check if file exists
	if _, err := os.Stat(jsonPath); os.IsNotExist(err) {
		fmt.Printf("❌ File not found: %s\n", jsonPath)
		return
	}

	// Check if already imported
	var existingRun string
	err := db.QueryRow("SELECT value FROM database_metadata WHERE key = 'legacy_import_run'").Scan(&existingRun)
	if err == nil {
		fmt.Printf("Legacy results already imported as run %s. Skipping import to avoid duplicates.\n", existingRun)
		fmt.Println("Use 'migrate status' to see current state.")
		return
	}
	if err != sql.ErrNoRows {
		log.Fatal("Failed to check existing data:", err)
	}

	// Read JSON file
	file, err := os.Open(jsonPath)
	if err != nil {
		log.Fatal("Failed to open JSON file:", err)
	}
	defer file.Close()

	var dump struct {
		Results []struct {
			VIN            string   `json:"vin"`
			Odometer       string   `json:"odometer"`
			Trim           string   `json:"trim"`
			SignalTrim     string   `json:"signal_trim"`
			ListPrice      float64  `json:"list_price"`
			ListingURL     string   `json:"listing_url"`
			CarfaxURL      string   `json:"carfax_url"`
			Make           string   `json:"make"`
			Model          string   `json:"model"`
			ExportValueCAD string   `json:"export_value_cad"`
			Profit         *float64 `json:"profit"`
			Status         string   `json:"status"`
			Error          string   `json:"error"`
		} `json:"results"`
	}

	if err := json.NewDecoder(file).Decode(&dump); err != nil {
		log.Fatal("Failed to decode JSON:", err)
	}

	if len(dump.Results) == 0 {
		fmt.Println("❌ No results found in dump file")
		return
	}

	// Begin transaction
	tx, err := db.Begin()
	if err != nil {
		log.Fatal("Failed to begin transaction:", err)
	}
	defer tx.Rollback()

	// Synthetic run holding the imported rows; counts are filled in below.
	runRes, err := tx.Exec(
		"INSERT INTO batch_runs (total_vehicles, status, finished_at) VALUES (?, 'completed', datetime('now'))",
		len(dump.Results),
	)
	if err != nil {
		log.Fatal("Failed to create import run:", err)
	}
	runID, err := runRes.LastInsertId()
	if err != nil {
		log.Fatal("Failed to read import run ID:", err)
	}

	// Prepare statement
	stmt, err := tx.Prepare(`
		INSERT INTO run_results
		(run_id, vin, odometer, trim, list_price, listing_url, carfax_url, make, model, export_value, profit, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		log.Fatal("Failed to prepare statement:", err)
	}
	defer stmt.Close()

	imported := 0
	var profitable, losses, noData, errored int
	for i, entry := range dump.Results {
		if entry.VIN == "" {
			log.Printf("Warning: entry %d has no VIN, skipping", i)
			continue
		}

		trim := entry.SignalTrim
		if trim == "" {
			trim = entry.Trim
		}

		var exportValue any
		if parsed, err := strconv.ParseInt(entry.ExportValueCAD, 10, 64); err == nil {
			exportValue = parsed
		}

		var profit any
		if entry.Profit != nil {
			profit = *entry.Profit
		}

		_, err = stmt.Exec(
			runID,
			entry.VIN,
			entry.Odometer,
			trim,
			entry.ListPrice,
			entry.ListingURL,
			entry.CarfaxURL,
			entry.Make,
			entry.Model,
			exportValue,
			profit,
			entry.Status,
			entry.Error,
		)
		if err != nil {
			log.Printf("Warning: Failed to insert entry %d (%s): %v", i, entry.VIN, err)
			continue
		}

		imported++
		switch entry.Status {
		case "PROFIT":
			profitable++
		case "LOSS":
			losses++
		case "NO DATA":
			noData++
		case "ERROR", "SESSION_EXPIRED":
			errored++
		}
	}

	_, err = tx.Exec(
		"UPDATE batch_runs SET processed = ?, profitable = ?, losses = ?, no_data = ?, errors = ? WHERE id = ?",
		imported, profitable, losses, noData, errored, runID,
	)
	if err != nil {
		log.Fatal("Failed to update import run counts:", err)
	}

	_, err = tx.Exec("INSERT INTO database_metadata (key, value) VALUES ('legacy_import_run', ?)", strconv.FormatInt(runID, 10))
	if err != nil {
		log.Fatal("Failed to record import marker:", err)
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		log.Fatal("Failed to commit transaction:", err)
	}

	fmt.Printf("✅ Successfully imported %d appraisal results as run %d!\n", imported, runID)
}

func showMigrationStatus(db *sql.DB, dbPath string) {
	fmt.Println("Migration Status Report")
	fmt.Println("=====================")

	// Schema version
	var version string
	err := db.QueryRow("SELECT value FROM database_metadata WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		if err == sql.ErrNoRows {
			fmt.Println("❌ No schema version found - database needs initialization")
		} else {
			fmt.Printf("❌ Error checking schema version: %v\n", err)
		}
		return
	}

	fmt.Printf("📊 Current Schema Version: %s\n", version)

	// Table counts
	tables := []string{"batch_runs", "run_results"}

	for _, table := range tables {
		var count int
		err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			fmt.Printf("❌ Error counting %s: %v\n", table, err)
		} else {
			fmt.Printf("📋 %s: %d records\n", table, count)
		}
	}

	// Most recent run
	var lastID int64
	var lastStarted, lastStatus string
	err = db.QueryRow("SELECT id, started_at, status FROM batch_runs ORDER BY id DESC LIMIT 1").Scan(&lastID, &lastStarted, &lastStatus)
	if err == nil {
		fmt.Printf("🕐 Last run: #%d (%s) started %s\n", lastID, lastStatus, lastStarted)
	}

	// Legacy data check
	var legacyRun string
	err = db.QueryRow("SELECT value FROM database_metadata WHERE key = 'legacy_import_run'").Scan(&legacyRun)
	if err == nil {
		fmt.Printf("📥 Legacy JSON results imported as run %s\n", legacyRun)
	}

	// Database file size
	if stat, err := os.Stat(dbPath); err == nil {
		fmt.Printf("💾 Database size: %.2f KB\n", float64(stat.Size())/1024)
	}

	fmt.Println("✅ Migration status check complete!")
}

func pruneOldRuns(db *sql.DB, days int) {
	fmt.Printf("Pruning runs finished more than %d days ago...\n", days)

	res, err := db.Exec(
		"DELETE FROM batch_runs WHERE finished_at IS NOT NULL AND finished_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		log.Fatal("Failed to prune runs:", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		log.Fatal("Failed to count pruned runs:", err)
	}

	// run_results rows follow their run via ON DELETE CASCADE
	fmt.Printf("✅ Removed %d runs and their recorded results\n", deleted)
}

func backupData(db *sql.DB, dbPath string) {
	cachePath := os.Getenv("CACHE_PATH")
	if cachePath == "" {
		cachePath = "./data/inventory_cache.json"
	}

	backupDir := filepath.Join(filepath.Dir(dbPath), fmt.Sprintf("backup_%d", time.Now().Unix()))
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		log.Fatal("Failed to create backup directory:", err)
	}

	// Fold WAL pages into the main file so the copy is self-contained
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		log.Printf("Warning: WAL checkpoint failed: %v", err)
	}

	copied := 0
	for _, src := range []string{dbPath, cachePath} {
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		dst := filepath.Join(backupDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			log.Printf("Warning: failed to back up %s: %v", src, err)
			continue
		}
		fmt.Printf("📦 Copied %s\n", filepath.Base(src))
		copied++
	}

	fmt.Printf("✅ Backed up %d files to %s\n", copied, backupDir)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     "1.0",
			Description: "Initial run history schema",
			SQL: []string{
				`CREATE TABLE IF NOT EXISTS batch_runs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					finished_at DATETIME,
					total_vehicles INTEGER NOT NULL DEFAULT 0,
					processed INTEGER NOT NULL DEFAULT 0,
					profitable INTEGER NOT NULL DEFAULT 0,
					losses INTEGER NOT NULL DEFAULT 0,
					no_data INTEGER NOT NULL DEFAULT 0,
					errors INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running', 'completed', 'stopped', 'failed'))
				)`,
				"CREATE INDEX IF NOT EXISTS idx_batch_runs_started_at ON batch_runs(started_at)",
				"CREATE INDEX IF NOT EXISTS idx_batch_runs_status ON batch_runs(status)",

				// run_results as it shipped before the vehicle detail columns
				`CREATE TABLE IF NOT EXISTS run_results (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id INTEGER NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
					vin TEXT NOT NULL,
					odometer TEXT,
					trim TEXT,
					list_price REAL DEFAULT 0,
					export_value INTEGER,
					profit REAL,
					status TEXT NOT NULL,
					error TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				"CREATE INDEX IF NOT EXISTS idx_run_results_run_id ON run_results(run_id)",
				"CREATE INDEX IF NOT EXISTS idx_run_results_vin ON run_results(vin)",
				"CREATE INDEX IF NOT EXISTS idx_run_results_status ON run_results(status)",
			},
		},
		{
			Version:     "1.1",
			Description: "Add make and model columns to run_results",
			SQL: []string{
				"ALTER TABLE run_results ADD COLUMN make TEXT",
				"ALTER TABLE run_results ADD COLUMN model TEXT",
			},
		},
		{
			Version:     "1.2",
			Description: "Add listing and Carfax URL columns to run_results",
			SQL: []string{
				"ALTER TABLE run_results ADD COLUMN listing_url TEXT",
				"ALTER TABLE run_results ADD COLUMN carfax_url TEXT",
			},
		},
	}
}

func shouldApplyMigration(currentVersion, migrationVersion string) bool {
	// Simple version comparison for semantic versioning
	return migrationVersion > currentVersion
}

func applyMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range migration.SQL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute: %s\nError: %w", stmt, err)
		}
	}

	return tx.Commit()
}
