package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"exportappraiser/internal/models"
)

const timestampFormat = "2006-01-02 15:04:05"

// RecentRuns retrieves batch runs, newest first
func (d *Database) RecentRuns(limit int) ([]models.BatchRun, error) {
	query := `
		SELECT id, started_at, finished_at, total_vehicles, processed, profitable, losses, no_data, errors, status
		FROM batch_runs
		ORDER BY id DESC
	`
	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch runs: %w", err)
	}
	defer rows.Close()

	var runs []models.BatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, nil
}

// GetRun retrieves a single batch run by ID
func (d *Database) GetRun(runID int64) (*models.BatchRun, error) {
	query := `
		SELECT id, started_at, finished_at, total_vehicles, processed, profitable, losses, no_data, errors, status
		FROM batch_runs
		WHERE id = ?
	`

	run, err := scanRun(d.db.QueryRow(query, runID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Run not found
		}
		return nil, err
	}

	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.BatchRun, error) {
	var run models.BatchRun
	var startedAt time.Time
	var finishedAt sql.NullTime

	err := row.Scan(&run.ID, &startedAt, &finishedAt, &run.Total,
		&run.Processed, &run.Profitable, &run.Losses, &run.NoData,
		&run.Errors, &run.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan batch run: %w", err)
	}

	run.StartedAt = startedAt.Format(timestampFormat)
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time.Format(timestampFormat)
	}

	return &run, nil
}

// RunResults retrieves all stored results for a batch run in processing order
func (d *Database) RunResults(runID int64) ([]models.AppraisalResult, error) {
	query := `
		SELECT vin, odometer, trim, list_price, listing_url, carfax_url, make, model, export_value, profit, status, error
		FROM run_results
		WHERE run_id = ?
		ORDER BY id
	`

	rows, err := d.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer rows.Close()

	var results []models.AppraisalResult
	for rows.Next() {
		var result models.AppraisalResult
		var trim, listingURL, carfaxURL, vehicleMake, vehicleModel, errText sql.NullString
		var exportValue sql.NullInt64
		var profit sql.NullFloat64

		err := rows.Scan(&result.VIN, &result.Odometer, &trim, &result.ListPrice,
			&listingURL, &carfaxURL, &vehicleMake, &vehicleModel, &exportValue,
			&profit, &result.Status, &errText)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run result: %w", err)
		}

		// Handle nullable fields
		if trim.Valid {
			result.Trim = trim.String
		}
		if listingURL.Valid {
			result.ListingURL = listingURL.String
		}
		if carfaxURL.Valid {
			result.CarfaxURL = carfaxURL.String
		}
		if vehicleMake.Valid {
			result.Make = vehicleMake.String
		}
		if vehicleModel.Valid {
			result.Model = vehicleModel.String
		}
		if exportValue.Valid {
			result.ExportValueCAD = strconv.FormatInt(exportValue.Int64, 10)
		}
		if profit.Valid {
			value := profit.Float64
			result.Profit = &value
		}
		if errText.Valid {
			result.Error = errText.String
		}

		results = append(results, result)
	}

	return results, nil
}
