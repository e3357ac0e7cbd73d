package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"exportappraiser/internal/cache"
	"exportappraiser/internal/config"
	"exportappraiser/internal/database"
	"exportappraiser/internal/jobs"
	"exportappraiser/internal/models"
)

func TestMain(m *testing.M) {
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	root := filepath.Join(cwd, "..", "..")
	if err := os.Chdir(root); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeController struct {
	state    *jobs.JobState
	startErr error
	started  [][]models.VehicleRequest
	stopping bool
	stops    int
}

func (f *fakeController) Start(vehicles []models.VehicleRequest) error {
	f.started = append(f.started, vehicles)
	return f.startErr
}

func (f *fakeController) Stop() bool {
	f.stops++
	return f.stopping
}

func (f *fakeController) State() *jobs.JobState { return f.state }

type fakeInventory struct {
	vehicles []models.VehicleRequest
	total    int
	err      error
	calls    int
}

func (f *fakeInventory) FetchInventory(_ context.Context) ([]models.VehicleRequest, int, error) {
	f.calls++
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.vehicles, f.total, nil
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func setupHandler(t *testing.T, cfg *config.Config) (*Handler, *fakeController, *database.Database) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{CachePath: filepath.Join(t.TempDir(), "inventory.json")}
	}
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctrl := &fakeController{state: jobs.NewJobState()}
	return NewHandler(ctrl, config.NewManager(cfg), db), ctrl, db
}

func performJSONRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestStartProcessingAccepted(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)

	r := gin.New()
	r.POST("/api/start-processing", h.StartProcessing)

	body := models.StartProcessingRequest{Vehicles: []models.VehicleRequest{
		{VIN: "1HGBH41JXMN109186", Odometer: "120000"},
		{VIN: "5YJSA1E26HF000337", Odometer: "30000", ListPrice: 41000},
	}}
	rec := performJSONRequest(r, http.MethodPost, "/api/start-processing", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Status != "success" {
		t.Fatalf("expected success status, got %q", env.Status)
	}
	if env.Message != "Started processing 2 vehicles" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
	if len(ctrl.started) != 1 || len(ctrl.started[0]) != 2 {
		t.Fatalf("expected controller to receive 2 vehicles, got %+v", ctrl.started)
	}
}

func TestStartProcessingMalformedBody(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)

	r := gin.New()
	r.POST("/api/start-processing", h.StartProcessing)

	req := httptest.NewRequest(http.MethodPost, "/api/start-processing", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "No vehicles provided" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
	if len(ctrl.started) != 0 {
		t.Fatalf("controller should not be called for malformed body")
	}
}

func TestStartProcessingEmptyBatch(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)
	ctrl.startErr = jobs.ErrNoVehicles

	r := gin.New()
	r.POST("/api/start-processing", h.StartProcessing)

	rec := performJSONRequest(r, http.MethodPost, "/api/start-processing", gin.H{"vehicles": []models.VehicleRequest{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "No vehicles provided" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestStartProcessingConflict(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)
	ctrl.startErr = jobs.ErrJobActive

	r := gin.New()
	r.POST("/api/start-processing", h.StartProcessing)

	body := models.StartProcessingRequest{Vehicles: []models.VehicleRequest{{VIN: "1HGBH41JXMN109186"}}}
	rec := performJSONRequest(r, http.MethodPost, "/api/start-processing", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a job is active, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Status != "error" || !strings.Contains(env.Message, "already active") {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestStartProcessingMissingCredentials(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)
	ctrl.startErr = errors.New("appraisal site credentials are not configured")

	r := gin.New()
	r.POST("/api/start-processing", h.StartProcessing)

	body := models.StartProcessingRequest{Vehicles: []models.VehicleRequest{{VIN: "1HGBH41JXMN109186"}}}
	rec := performJSONRequest(r, http.MethodPost, "/api/start-processing", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without credentials, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(env.Message, "credentials") {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestGetStatusReflectsJobState(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)

	if !ctrl.state.Begin(3) {
		t.Fatalf("expected to claim the job slot")
	}
	ctrl.state.SetCurrent("1HGBH41JXMN109186", 1)
	ctrl.state.Log("Processing vehicle 1/3")

	r := gin.New()
	r.GET("/api/status", h.GetStatus)

	rec := performJSONRequest(r, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap models.JobSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if !snap.IsProcessing || snap.Total != 3 || snap.Progress != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.CurrentVIN != "1HGBH41JXMN109186" {
		t.Fatalf("unexpected current VIN: %q", snap.CurrentVIN)
	}
	if len(snap.Logs) != 1 || !strings.Contains(snap.Logs[0], "Processing vehicle 1/3") {
		t.Fatalf("unexpected logs: %v", snap.Logs)
	}
}

func TestGetResultsPartitions(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)

	profit := 2339.0
	loss := -661.0
	ctrl.state.Begin(3)
	ctrl.state.AppendResult(models.AppraisalResult{VIN: "VIN1", Status: models.StatusProfit, Profit: &profit})
	ctrl.state.AppendResult(models.AppraisalResult{VIN: "VIN2", Status: models.StatusLoss, Profit: &loss})
	ctrl.state.AppendResult(models.AppraisalResult{VIN: "VIN3", Status: models.StatusNoData})

	r := gin.New()
	r.GET("/api/results", h.GetResults)

	rec := performJSONRequest(r, http.MethodGet, "/api/results", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var summary models.ResultsSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	if summary.Summary.Total != 3 || summary.Summary.Profitable != 1 || summary.Summary.Losses != 1 || summary.Summary.Errors != 1 {
		t.Fatalf("unexpected counts: %+v", summary.Summary)
	}
	if summary.TotalProfit != 2339.0 {
		t.Fatalf("expected total profit 2339, got %v", summary.TotalProfit)
	}
}

func TestStopProcessing(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)
	ctrl.stopping = true

	r := gin.New()
	r.POST("/api/stop-processing", h.StopProcessing)

	rec := performJSONRequest(r, http.MethodPost, "/api/stop-processing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(env.Message, "finishing current vehicle") {
		t.Fatalf("unexpected message: %q", env.Message)
	}

	ctrl.stopping = false
	rec = performJSONRequest(r, http.MethodPost, "/api/stop-processing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when idle, got %d", rec.Code)
	}
	env = decodeEnvelope(t, rec)
	if env.Message != "No processing job is running" {
		t.Fatalf("unexpected idle message: %q", env.Message)
	}
	if ctrl.stops != 2 {
		t.Fatalf("expected 2 stop calls, got %d", ctrl.stops)
	}
}

func TestFetchInventoryFromStore(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "inventory.json")
	h, _, _ := setupHandler(t, &config.Config{
		SupabaseURL:   "https://project.supabase.co",
		SupabaseKey:   "service-key",
		SupabaseTable: "inventory",
		CachePath:     cachePath,
	})

	inv := &fakeInventory{
		vehicles: []models.VehicleRequest{
			{VIN: "1HGBH41JXMN109186", Odometer: "120000"},
			{VIN: "5YJSA1E26HF000337", Odometer: "30000"},
		},
		total: 5,
	}
	h.inventory = func(config.Config) InventoryClient { return inv }

	r := gin.New()
	r.GET("/api/fetch-inventory", h.FetchInventory)

	rec := performJSONRequest(r, http.MethodGet, "/api/fetch-inventory", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.InventoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 5 || resp.Valid != 2 || len(resp.Vehicles) != 2 {
		t.Fatalf("unexpected response: total=%d valid=%d vehicles=%d", resp.Total, resp.Valid, len(resp.Vehicles))
	}

	// A successful fetch must leave a fresh snapshot behind.
	snap, ok := cache.LoadSnapshot(cachePath)
	if !ok {
		t.Fatalf("expected snapshot to be written after fetch")
	}
	if snap.Total != 5 || len(snap.Vehicles) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestFetchInventoryServedFromCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "inventory.json")
	if err := cache.SaveSnapshot(cachePath, []models.VehicleRequest{{VIN: "1HGBH41JXMN109186"}}, 7); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	h, _, _ := setupHandler(t, &config.Config{
		SupabaseURL: "https://project.supabase.co",
		SupabaseKey: "service-key",
		CachePath:   cachePath,
	})
	inv := &fakeInventory{total: 99}
	h.inventory = func(config.Config) InventoryClient { return inv }

	r := gin.New()
	r.GET("/api/fetch-inventory", h.FetchInventory)

	rec := performJSONRequest(r, http.MethodGet, "/api/fetch-inventory", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp models.InventoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 7 || resp.Valid != 1 {
		t.Fatalf("expected snapshot data, got total=%d valid=%d", resp.Total, resp.Valid)
	}
	if inv.calls != 0 {
		t.Fatalf("store should not be queried when the snapshot is fresh")
	}
}

func TestFetchInventoryRefreshBypassesCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "inventory.json")
	if err := cache.SaveSnapshot(cachePath, []models.VehicleRequest{{VIN: "1HGBH41JXMN109186"}}, 7); err != nil {
		t.Fatalf("failed to seed snapshot: %v", err)
	}

	h, _, _ := setupHandler(t, &config.Config{
		SupabaseURL: "https://project.supabase.co",
		SupabaseKey: "service-key",
		CachePath:   cachePath,
	})
	inv := &fakeInventory{
		vehicles: []models.VehicleRequest{
			{VIN: "4T1BF1FK5HU301234"},
			{VIN: "5YJSA1E26HF000337"},
		},
		total: 12,
	}
	h.inventory = func(config.Config) InventoryClient { return inv }

	r := gin.New()
	r.GET("/api/fetch-inventory", h.FetchInventory)

	rec := performJSONRequest(r, http.MethodGet, "/api/fetch-inventory?refresh=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if inv.calls != 1 {
		t.Fatalf("expected forced refresh to hit the store, calls=%d", inv.calls)
	}

	var resp models.InventoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 12 || resp.Valid != 2 {
		t.Fatalf("expected fresh data, got total=%d valid=%d", resp.Total, resp.Valid)
	}
}

func TestFetchInventoryUnconfigured(t *testing.T) {
	h, _, _ := setupHandler(t, nil)

	r := gin.New()
	r.GET("/api/fetch-inventory", h.FetchInventory)

	rec := performJSONRequest(r, http.MethodGet, "/api/fetch-inventory", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without store credentials, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(env.Message, "not configured") {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestFetchInventoryStoreError(t *testing.T) {
	h, _, _ := setupHandler(t, &config.Config{
		SupabaseURL: "https://project.supabase.co",
		SupabaseKey: "service-key",
		CachePath:   filepath.Join(t.TempDir(), "inventory.json"),
	})
	inv := &fakeInventory{err: errors.New("inventory fetch failed: 500 Internal Server Error")}
	h.inventory = func(config.Config) InventoryClient { return inv }

	r := gin.New()
	r.GET("/api/fetch-inventory", h.FetchInventory)

	rec := performJSONRequest(r, http.MethodGet, "/api/fetch-inventory", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "Failed to fetch inventory" {
		t.Fatalf("unexpected message: %q", env.Message)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	h, _, _ := setupHandler(t, &config.Config{
		SupabaseTable: "inventory",
		Headless:      true,
		CachePath:     filepath.Join(t.TempDir(), "inventory.json"),
	})

	r := gin.New()
	r.GET("/api/config", h.GetConfig)
	r.POST("/api/config", h.UpdateConfig)

	rec := performJSONRequest(r, http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var pub config.Public
	if err := json.Unmarshal(rec.Body.Bytes(), &pub); err != nil {
		t.Fatalf("failed to decode config: %v", err)
	}
	if pub.PasswordSet || pub.SignalEmail != "" || pub.SupabaseTable != "inventory" {
		t.Fatalf("unexpected initial config: %+v", pub)
	}

	rec = performJSONRequest(r, http.MethodPost, "/api/config", gin.H{
		"signal_email":    "ops@example.com",
		"signal_password": "hunter2",
		"headless":        false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pub); err != nil {
		t.Fatalf("failed to decode config: %v", err)
	}
	if pub.SignalEmail != "ops@example.com" || !pub.PasswordSet || pub.Headless {
		t.Fatalf("overrides not applied: %+v", pub)
	}
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Fatalf("response must not leak the password")
	}

	// Omitted fields keep their values.
	rec = performJSONRequest(r, http.MethodPost, "/api/config", gin.H{"supabase_table": "staging_inventory"})
	if err := json.Unmarshal(rec.Body.Bytes(), &pub); err != nil {
		t.Fatalf("failed to decode config: %v", err)
	}
	if pub.SignalEmail != "ops@example.com" || pub.SupabaseTable != "staging_inventory" {
		t.Fatalf("partial update clobbered fields: %+v", pub)
	}
}

func TestUpdateConfigMalformed(t *testing.T) {
	h, _, _ := setupHandler(t, nil)

	r := gin.New()
	r.POST("/api/config", h.UpdateConfig)

	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	h, _, db := setupHandler(t, nil)

	runID, err := db.CreateRun(2)
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	profit := 2339.0
	if err := db.RecordResult(runID, models.AppraisalResult{
		VIN:            "1HGBH41JXMN109186",
		Odometer:       "120000",
		ListPrice:      22000,
		ExportValueCAD: "24339",
		Profit:         &profit,
		Status:         models.StatusProfit,
	}); err != nil {
		t.Fatalf("failed to record result: %v", err)
	}
	if err := db.FinishRun(runID, models.RunCompleted, models.RunTally{Processed: 2, Profitable: 1, NoData: 1}); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	r := gin.New()
	r.GET("/api/history", h.GetHistory)
	r.GET("/api/history/:id", h.GetHistoryRun)

	rec := performJSONRequest(r, http.MethodGet, "/api/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list struct {
		Runs  []models.BatchRun `json:"runs"`
		Count int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if list.Count != 1 || len(list.Runs) != 1 {
		t.Fatalf("expected one run, got %+v", list)
	}
	if list.Runs[0].Status != models.RunCompleted || list.Runs[0].Profitable != 1 {
		t.Fatalf("unexpected run record: %+v", list.Runs[0])
	}

	rec = performJSONRequest(r, http.MethodGet, "/api/history/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for run detail, got %d", rec.Code)
	}
	var detail struct {
		Run     models.BatchRun          `json:"run"`
		Results []models.AppraisalResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("failed to decode run detail: %v", err)
	}
	if detail.Run.ID != runID || len(detail.Results) != 1 {
		t.Fatalf("unexpected detail: %+v", detail)
	}
	if detail.Results[0].ExportValueCAD != "24339" || detail.Results[0].Status != models.StatusProfit {
		t.Fatalf("unexpected result row: %+v", detail.Results[0])
	}

	rec = performJSONRequest(r, http.MethodGet, "/api/history/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing run, got %d", rec.Code)
	}

	rec = performJSONRequest(r, http.MethodGet, "/api/history/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad run ID, got %d", rec.Code)
	}

	rec = performJSONRequest(r, http.MethodGet, "/api/history?limit=0", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h, ctrl, _ := setupHandler(t, nil)

	r := gin.New()
	r.GET("/api/health", h.HealthCheck)

	rec := performJSONRequest(r, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status     string `json:"status"`
		Processing bool   `json:"processing"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if body.Status != "ok" || body.Processing {
		t.Fatalf("unexpected health body: %+v", body)
	}

	ctrl.state.Begin(1)
	rec = performJSONRequest(r, http.MethodGet, "/api/health", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if !body.Processing {
		t.Fatalf("expected processing=true while a job is active")
	}
}
