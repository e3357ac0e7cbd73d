package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"exportappraiser/internal/appraiser"
	"exportappraiser/internal/config"
	"exportappraiser/internal/metrics"
	"exportappraiser/internal/models"
	"exportappraiser/internal/store"
	"exportappraiser/internal/validation"
)

// vehiclePause is the courtesy delay between vehicles so the appraisal site
// never sees back-to-back navigations.
const vehiclePause = time.Second

var (
	// ErrJobActive is returned when a start request arrives while a batch
	// is already processing.
	ErrJobActive = errors.New("a processing job is already active")

	// ErrNoVehicles is returned for a start request with an empty list.
	ErrNoVehicles = errors.New("no vehicles to process")
)

// Appraiser drives one authenticated browser session through appraisals.
type Appraiser interface {
	Start() error
	Stop()
	Login(email, password string) error
	AppraiseVehicle(v models.VehicleRequest) *models.AppraisalResult
}

// Persister stores qualifying appraisal results.
type Persister interface {
	SaveResult(ctx context.Context, r models.AppraisalResult) error
}

// Recorder keeps the durable history of batch runs.
type Recorder interface {
	CreateRun(total int) (int64, error)
	RecordResult(runID int64, r models.AppraisalResult) error
	FinishRun(runID int64, status models.RunStatus, tally models.RunTally) error
}

// SessionFactory builds a fresh browser session for one batch.
type SessionFactory func(cfg config.Config) Appraiser

// PersisterFactory builds the result store for one batch, nil when the
// store is not configured.
type PersisterFactory func(cfg config.Config) Persister

// Controller sequences batches of vehicles through one browser session. A
// single background worker runs per job; the JobState enforces that only
// one job is in flight process-wide.
type Controller struct {
	state      *JobState
	cfg        *config.Manager
	recorder   Recorder
	metrics    *metrics.Metrics
	sessions   SessionFactory
	persisters PersisterFactory
	pause      time.Duration
}

// NewController wires a controller with its production collaborators. The
// recorder may be nil; runs are then not recorded.
func NewController(state *JobState, cfg *config.Manager, recorder Recorder, m *metrics.Metrics) *Controller {
	return &Controller{
		state:    state,
		cfg:      cfg,
		recorder: recorder,
		metrics:  m,
		sessions: func(cfg config.Config) Appraiser {
			return appraiser.NewSession(appraiser.Options{
				Headless:  cfg.Headless,
				ChromeBin: cfg.ChromeBin,
				Metrics:   m,
			})
		},
		persisters: func(cfg config.Config) Persister {
			if cfg.ValidateForStore() != nil {
				return nil
			}
			return store.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable)
		},
		pause: vehiclePause,
	}
}

// State exposes the shared job state for read-only queries.
func (c *Controller) State() *JobState {
	return c.state
}

// Start validates a batch request, claims the job slot and spawns the
// background worker. The configuration is snapshotted here: runtime config
// changes never affect a batch already in flight.
func (c *Controller) Start(vehicles []models.VehicleRequest) error {
	if len(vehicles) == 0 {
		return ErrNoVehicles
	}

	cfg := c.cfg.Snapshot()
	if err := cfg.ValidateForBatch(); err != nil {
		return err
	}

	if !c.state.Begin(len(vehicles)) {
		return ErrJobActive
	}

	go c.run(vehicles, cfg)
	return nil
}

// Stop requests a cooperative stop at the next vehicle boundary.
func (c *Controller) Stop() bool {
	stopped := c.state.RequestStop()
	if stopped {
		c.state.Log("🛑 Stop requested - finishing current vehicle")
	}
	return stopped
}

// run is the batch worker. The deferred block is the single exit path:
// it releases the browser, finalizes the run record and clears the job
// slot no matter how the vehicle loop ended.
func (c *Controller) run(vehicles []models.VehicleRequest, cfg config.Config) {
	c.metrics.IncBatch()

	var tally models.RunTally
	status := models.RunCompleted

	runID := c.openRun(len(vehicles))
	session := c.sessions(cfg)
	started := false

	defer func() {
		if r := recover(); r != nil {
			c.state.Log("❌ Batch worker fault: %v", r)
			status = models.RunFailed
		}
		if started {
			session.Stop()
		}
		c.closeRun(runID, status, tally)
		c.state.Finish()
		c.state.Log("🏁 Batch finished: %d/%d vehicles processed", tally.Processed, len(vehicles))
	}()

	c.state.Log("🚀 Starting batch of %d vehicles", len(vehicles))

	if err := session.Start(); err != nil {
		c.state.Log("❌ Browser start failed: %v", err)
		status = models.RunFailed
		return
	}
	started = true

	if err := session.Login(cfg.SignalEmail, cfg.SignalPassword); err != nil {
		c.state.Log("❌ Login failed, aborting batch: %v", err)
		status = models.RunFailed
		return
	}

	persister := c.persisters(cfg)
	if persister == nil {
		c.state.Log("⚠️ Result store not configured - results stay in memory only")
	}

	for i, vehicle := range vehicles {
		if c.state.StopRequested() {
			c.state.Log("🛑 Batch stopped after %d/%d vehicles", i, len(vehicles))
			status = models.RunStopped
			return
		}

		vin := strings.TrimSpace(vehicle.VIN)
		c.state.SetCurrent(vin, i+1)
		c.state.Log("🔄 Appraising %s (%d/%d)", vin, i+1, len(vehicles))

		begin := time.Now()
		result := c.appraise(session, vehicle)
		c.metrics.ObserveAppraisal(time.Since(begin))
		c.metrics.IncAppraisal(string(result.Status))

		c.state.AppendResult(*result)
		tally.Count(result.Status)
		c.recordResult(runID, result)
		c.logOutcome(result)

		if result.HasExportValue() && persister != nil {
			if err := persister.SaveResult(context.Background(), *result); err != nil {
				c.metrics.IncPersistenceError()
				c.state.Log("⚠️ Failed to save %s: %v", result.VIN, err)
			} else {
				c.state.Log("💾 Saved %s to appraisal results", result.VIN)
			}
		}

		if i < len(vehicles)-1 {
			time.Sleep(c.pause)
		}
	}
}

// appraise invokes the orchestrator for one vehicle, converting any escaped
// fault into an ERROR result so the batch keeps moving.
func (c *Controller) appraise(session Appraiser, v models.VehicleRequest) (result *models.AppraisalResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &models.AppraisalResult{
				VIN:        v.VIN,
				Odometer:   validation.NormalizeOdometer(v.Odometer),
				Trim:       v.Trim,
				ListPrice:  v.ListPrice,
				ListingURL: v.ListingURL,
				CarfaxURL:  v.CarfaxURL,
				Make:       v.Make,
				Model:      v.Model,
				Status:     models.StatusError,
				Error:      fmt.Sprintf("appraisal fault: %v", r),
			}
		}
	}()
	return session.AppraiseVehicle(v)
}

// logOutcome writes one ledger line per finished vehicle.
func (c *Controller) logOutcome(r *models.AppraisalResult) {
	switch r.Status {
	case models.StatusProfit:
		c.state.Log("✅ %s: export $%s CAD, profit $%.0f", r.VIN, r.ExportValueCAD, *r.Profit)
	case models.StatusLoss:
		c.state.Log("📉 %s: export $%s CAD, loss $%.0f", r.VIN, r.ExportValueCAD, -*r.Profit)
	case models.StatusSuccess:
		c.state.Log("✅ %s: export $%s CAD (no list price for profit)", r.VIN, r.ExportValueCAD)
	case models.StatusSessionExpired:
		c.state.Log("⚠️ %s: session expired", r.VIN)
	case models.StatusNoData:
		c.state.Log("⚠️ %s: no valuation data", r.VIN)
	default:
		c.state.Log("❌ %s: %s", r.VIN, r.Error)
	}
}

func (c *Controller) openRun(total int) int64 {
	if c.recorder == nil {
		return 0
	}
	id, err := c.recorder.CreateRun(total)
	if err != nil {
		c.state.Log("⚠️ Could not record batch run: %v", err)
		return 0
	}
	return id
}

func (c *Controller) recordResult(runID int64, r *models.AppraisalResult) {
	if c.recorder == nil || runID == 0 {
		return
	}
	if err := c.recorder.RecordResult(runID, *r); err != nil {
		log.Printf("record result %s: %v", r.VIN, err)
	}
}

func (c *Controller) closeRun(runID int64, status models.RunStatus, tally models.RunTally) {
	if c.recorder == nil || runID == 0 {
		return
	}
	if err := c.recorder.FinishRun(runID, status, tally); err != nil {
		log.Printf("finish run %d: %v", runID, err)
	}
}
