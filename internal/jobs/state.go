package jobs

import (
	"fmt"
	"log"
	"sync"
	"time"

	"exportappraiser/internal/models"
)

// logTail is how many ledger lines the status endpoint returns.
const logTail = 20

// JobState is the shared record of the batch job. The batch worker is its
// only writer; status and results queries read concurrently through
// snapshot accessors. One JobState outlives individual jobs: Begin resets
// it when a new job claims the slot, so the last job's results stay
// queryable until the next one starts.
type JobState struct {
	mu            sync.RWMutex
	processing    bool
	stopRequested bool
	currentVIN    string
	progress      int
	total         int
	logs          []string
	results       []models.AppraisalResult
}

// NewJobState returns an idle job state.
func NewJobState() *JobState {
	return &JobState{}
}

// Begin atomically claims the single job slot and resets the state for a new
// batch. Returns false, leaving the active job untouched, when a job is
// already processing.
func (j *JobState) Begin(total int) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.processing {
		return false
	}
	j.processing = true
	j.stopRequested = false
	j.currentVIN = ""
	j.progress = 0
	j.total = total
	j.logs = nil
	j.results = nil
	return true
}

// Finish releases the job slot at the end of a batch, on success or failure.
func (j *JobState) Finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processing = false
	j.currentVIN = ""
}

// Processing reports whether a batch job is active.
func (j *JobState) Processing() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.processing
}

// RequestStop asks the batch loop to end at the next vehicle boundary; the
// in-flight vehicle always runs to completion. Returns false when no job is
// active.
func (j *JobState) RequestStop() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.processing {
		return false
	}
	j.stopRequested = true
	return true
}

// StopRequested reports whether a cooperative stop is pending.
func (j *JobState) StopRequested() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stopRequested
}

// SetCurrent records the vehicle about to be appraised and its position.
func (j *JobState) SetCurrent(vin string, progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.currentVIN = vin
	j.progress = progress
}

// AppendResult adds one finished appraisal to the ledger.
func (j *JobState) AppendResult(r models.AppraisalResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results = append(j.results, r)
}

// Log appends a timestamped line to the ledger and mirrors it to the
// process log.
func (j *JobState) Log(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)

	j.mu.Lock()
	j.logs = append(j.logs, line)
	j.mu.Unlock()

	log.Print(msg)
}

// Snapshot returns the status view of the job with the last lines of the
// log ledger, oldest first.
func (j *JobState) Snapshot() models.JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	logs := j.logs
	if len(logs) > logTail {
		logs = logs[len(logs)-logTail:]
	}
	out := make([]string, len(logs))
	copy(out, logs)

	return models.JobSnapshot{
		IsProcessing: j.processing,
		CurrentVIN:   j.currentVIN,
		Progress:     j.progress,
		Total:        j.total,
		ResultsCount: len(j.results),
		Logs:         out,
	}
}

// Results returns a copy of the results ledger in appraisal order.
func (j *JobState) Results() []models.AppraisalResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]models.AppraisalResult, len(j.results))
	copy(out, j.results)
	return out
}

// Summarize partitions the ledger for the results endpoint: profitable
// (profit > 0), losses (profit present but <= 0), and ERROR/NO DATA
// failures, with total profit summed over the profitable subset. A
// SESSION_EXPIRED result appears in the full ledger only; expiry is a
// session condition, not a per-vehicle failure.
func (j *JobState) Summarize() models.ResultsSummary {
	results := j.Results()

	summary := models.ResultsSummary{
		All:        results,
		Profitable: []models.AppraisalResult{},
		Losses:     []models.AppraisalResult{},
		Errors:     []models.AppraisalResult{},
	}

	for _, r := range results {
		if r.Profit != nil {
			if *r.Profit > 0 {
				summary.Profitable = append(summary.Profitable, r)
				summary.TotalProfit += *r.Profit
			} else {
				summary.Losses = append(summary.Losses, r)
			}
		}
		switch r.Status {
		case models.StatusError, models.StatusNoData:
			summary.Errors = append(summary.Errors, r)
		}
	}

	summary.Summary = models.SummaryCounts{
		Total:      len(results),
		Profitable: len(summary.Profitable),
		Losses:     len(summary.Losses),
		Errors:     len(summary.Errors),
	}
	return summary
}
