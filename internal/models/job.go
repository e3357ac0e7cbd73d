package models

// JobSnapshot is a point-in-time view of the active (or last) batch job,
// served by the status endpoint. Logs holds at most the last 20 lines.
type JobSnapshot struct {
	IsProcessing bool     `json:"is_processing"`
	CurrentVIN   string   `json:"current_vin"`
	Progress     int      `json:"progress"`
	Total        int      `json:"total"`
	ResultsCount int      `json:"results_count"`
	Logs         []string `json:"logs"`
}

// ResultsSummary partitions the results ledger for the results endpoint.
// Profitable holds results with profit > 0, Losses those with profit <= 0,
// Errors everything that ended in ERROR or NO DATA. SESSION_EXPIRED results
// live in All only.
type ResultsSummary struct {
	All         []AppraisalResult `json:"all"`
	Profitable  []AppraisalResult `json:"profitable"`
	Losses      []AppraisalResult `json:"losses"`
	Errors      []AppraisalResult `json:"errors"`
	TotalProfit float64           `json:"total_profit"`
	Summary     SummaryCounts     `json:"summary"`
}

// SummaryCounts holds the headline numbers of a ResultsSummary.
type SummaryCounts struct {
	Total      int `json:"total"`
	Profitable int `json:"profitable"`
	Losses     int `json:"losses"`
	Errors     int `json:"errors"`
}

// StartProcessingRequest is the body of the start-processing endpoint.
type StartProcessingRequest struct {
	Vehicles []VehicleRequest `json:"vehicles" binding:"required"`
}

// InventoryResponse reports an inventory fetch: Total rows seen, Valid rows
// that passed VIN validation and became vehicle requests.
type InventoryResponse struct {
	Total    int              `json:"total"`
	Valid    int              `json:"valid"`
	Vehicles []VehicleRequest `json:"vehicles"`
}

// RunStatus is the lifecycle state of a recorded batch run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// RunTally accumulates outcome counts while a batch runs.
type RunTally struct {
	Processed  int
	Profitable int
	Losses     int
	NoData     int
	Errors     int
}

// Count records one result's outcome. SUCCESS results (valuation without a
// list price) only advance the processed counter.
func (t *RunTally) Count(status AppraisalStatus) {
	t.Processed++
	switch status {
	case StatusProfit:
		t.Profitable++
	case StatusLoss:
		t.Losses++
	case StatusNoData:
		t.NoData++
	case StatusError, StatusSessionExpired:
		t.Errors++
	}
}

// BatchRun is one historical batch job as recorded in the local database.
type BatchRun struct {
	ID         int64     `json:"id"`
	StartedAt  string    `json:"started_at"`
	FinishedAt string    `json:"finished_at,omitempty"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Profitable int       `json:"profitable"`
	Losses     int       `json:"losses"`
	NoData     int       `json:"no_data"`
	Errors     int       `json:"errors"`
	Status     RunStatus `json:"status"`
}
