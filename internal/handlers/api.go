package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"exportappraiser/internal/cache"
	"exportappraiser/internal/config"
	"exportappraiser/internal/database"
	"exportappraiser/internal/jobs"
	"exportappraiser/internal/models"
	"exportappraiser/internal/store"
	"exportappraiser/internal/util"
)

// BatchController drives batch jobs for the API.
type BatchController interface {
	Start(vehicles []models.VehicleRequest) error
	Stop() bool
	State() *jobs.JobState
}

// InventoryClient fetches the remote vehicle inventory.
type InventoryClient interface {
	FetchInventory(ctx context.Context) ([]models.VehicleRequest, int, error)
}

// InventoryFactory builds an inventory client from the active configuration.
type InventoryFactory func(cfg config.Config) InventoryClient

// Handler serves the operator API: batch control, inventory fetching,
// runtime configuration and run history.
type Handler struct {
	controller BatchController
	cfg        *config.Manager
	db         *database.Database
	inventory  InventoryFactory
}

// NewHandler creates the API handler with its production collaborators.
func NewHandler(controller BatchController, cfg *config.Manager, db *database.Database) *Handler {
	return &Handler{
		controller: controller,
		cfg:        cfg,
		db:         db,
		inventory: func(cfg config.Config) InventoryClient {
			return store.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable)
		},
	}
}

// StartProcessing godoc
// @Summary Start a batch appraisal job
// @Description Queues the posted vehicles and spawns the background batch worker. Only one job can run at a time; the whole batch shares a single browser session.
// @Tags batch
// @Security OperatorKey
// @Accept json
// @Produce json
// @Param request body models.StartProcessingRequest true "Vehicles to appraise"
// @Success 202 {object} map[string]string "status: success, message: Started processing N vehicles"
// @Failure 400 {object} map[string]string "status: error - no vehicles or missing credentials"
// @Failure 409 {object} map[string]string "status: error - a processing job is already active"
// @Router /api/start-processing [post]
func (h *Handler) StartProcessing(c *gin.Context) {
	var req models.StartProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "No vehicles provided",
		})
		return
	}

	if err := h.controller.Start(req.Vehicles); err != nil {
		switch {
		case errors.Is(err, jobs.ErrNoVehicles):
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": "No vehicles provided",
			})
		case errors.Is(err, jobs.ErrJobActive):
			c.JSON(http.StatusConflict, gin.H{
				"status":  "error",
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Started processing %d vehicles", len(req.Vehicles)),
	})
}

// GetStatus godoc
// @Summary Get the live job status
// @Description Returns the current batch state: whether a job is processing, the VIN on the bench, progress counters and the last 20 log lines.
// @Tags batch
// @Produce json
// @Success 200 {object} models.JobSnapshot
// @Router /api/status [get]
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.State().Snapshot())
}

// GetResults godoc
// @Summary Get partitioned batch results
// @Description Returns every result of the current or last batch, partitioned into profitable, losses and errors, with the aggregate profit.
// @Tags batch
// @Produce json
// @Success 200 {object} models.ResultsSummary
// @Router /api/results [get]
func (h *Handler) GetResults(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.State().Summarize())
}

// StopProcessing godoc
// @Summary Stop the active batch job
// @Description Requests a cooperative stop. The vehicle currently on the bench finishes; the rest of the batch is skipped. Always returns 200, with a no-op message when nothing is running.
// @Tags batch
// @Security OperatorKey
// @Produce json
// @Success 200 {object} map[string]string "status: success with confirmation or no-op message"
// @Router /api/stop-processing [post]
func (h *Handler) StopProcessing(c *gin.Context) {
	if h.controller.Stop() {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Stop requested - finishing current vehicle",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "No processing job is running",
	})
}

// FetchInventory godoc
// @Summary Fetch the vehicle inventory
// @Description Returns the inventory from the remote store, filtered down to rows with a valid 17-character VIN. Served from the local snapshot cache when it is under an hour old; pass refresh=1 to force a remote fetch. Forced refreshes are throttled per IP.
// @Tags inventory
// @Produce json
// @Param refresh query string false "Set to any non-empty value to bypass the snapshot cache"
// @Success 200 {object} models.InventoryResponse
// @Failure 400 {object} map[string]string "status: error - store credentials not configured"
// @Failure 429 {object} map[string]string "status: error - refresh cooldown active"
// @Failure 500 {object} map[string]string "status: error - remote fetch failed"
// @Router /api/fetch-inventory [get]
func (h *Handler) FetchInventory(c *gin.Context) {
	cfg := h.cfg.Snapshot()

	if c.Query("refresh") == "" {
		if snap, ok := cache.LoadSnapshot(cfg.CachePath); ok {
			c.JSON(http.StatusOK, models.InventoryResponse{
				Total:    snap.Total,
				Valid:    len(snap.Vehicles),
				Vehicles: snap.Vehicles,
			})
			return
		}
	}

	if err := cfg.ValidateForStore(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	vehicles, total, err := h.inventory(cfg).FetchInventory(c.Request.Context())
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to fetch inventory", err)
		return
	}

	if err := cache.SaveSnapshot(cfg.CachePath, vehicles, total); err != nil {
		// Not fatal: the fetch succeeded, only the local snapshot is stale.
		fmt.Printf("⚠️ Failed to save inventory snapshot: %v\n", err)
	}

	c.JSON(http.StatusOK, models.InventoryResponse{
		Total:    total,
		Valid:    len(vehicles),
		Vehicles: vehicles,
	})
}

// GetConfig godoc
// @Summary Get the effective configuration
// @Description Returns the live configuration with secrets reduced to presence flags.
// @Tags config
// @Produce json
// @Success 200 {object} config.Public
// @Router /api/config [get]
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Public())
}

// UpdateConfig godoc
// @Summary Update the runtime configuration
// @Description Merges the posted fields into the live configuration. Omitted fields keep their current value. A batch already in flight keeps the configuration it started with.
// @Tags config
// @Security OperatorKey
// @Accept json
// @Produce json
// @Param request body config.Overrides true "Fields to override"
// @Success 200 {object} config.Public
// @Failure 400 {object} map[string]string "status: error - malformed payload"
// @Router /api/config [post]
func (h *Handler) UpdateConfig(c *gin.Context) {
	var overrides config.Overrides
	if err := c.ShouldBindJSON(&overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid configuration payload",
		})
		return
	}

	h.cfg.Apply(overrides)
	c.JSON(http.StatusOK, h.cfg.Public())
}

// GetHistory godoc
// @Summary List recent batch runs
// @Description Returns the most recent batch runs with their per-status counts, newest first.
// @Tags history
// @Produce json
// @Param limit query int false "Maximum runs to return" default(20)
// @Success 200 {object} map[string]interface{} "runs array and count"
// @Failure 400 {object} map[string]string "status: error - invalid limit"
// @Router /api/history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Limit must be between 1 and 500",
		})
		return
	}

	runs, err := h.db.RecentRuns(limit)
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load run history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetHistoryRun godoc
// @Summary Get one batch run with its results
// @Description Returns a single historical run and every per-vehicle result recorded for it.
// @Tags history
// @Produce json
// @Param id path int true "Run ID"
// @Success 200 {object} map[string]interface{} "run record and results array"
// @Failure 400 {object} map[string]string "status: error - invalid run ID"
// @Failure 404 {object} map[string]string "status: error - run not found"
// @Router /api/history/{id} [get]
func (h *Handler) GetHistoryRun(c *gin.Context) {
	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || runID < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid run ID",
		})
		return
	}

	run, err := h.db.GetRun(runID)
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load run", err)
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Run not found",
		})
		return
	}

	results, err := h.db.RunResults(runID)
	if err != nil {
		util.SafeErrorResponse(c, http.StatusInternalServerError, "Failed to load run results", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":     run,
		"results": results,
	})
}

// HealthCheck godoc
// @Summary Health check
// @Description Liveness probe. Reports whether a batch job is currently processing.
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{} "status: ok and processing flag"
// @Router /api/health [get]
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"processing": h.controller.State().Processing(),
	})
}
