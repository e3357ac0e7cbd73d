package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"exportappraiser/internal/config"
	"exportappraiser/internal/models"
)

type fakeSession struct {
	startErr  error
	loginErr  error
	appraise  func(models.VehicleRequest) *models.AppraisalResult
	started   bool
	stopped   bool
	loggedIn  string
	appraised []string
}

func (f *fakeSession) Start() error {
	f.started = true
	return f.startErr
}

func (f *fakeSession) Stop() { f.stopped = true }

func (f *fakeSession) Login(email, _ string) error {
	f.loggedIn = email
	return f.loginErr
}

func (f *fakeSession) AppraiseVehicle(v models.VehicleRequest) *models.AppraisalResult {
	f.appraised = append(f.appraised, v.VIN)
	if f.appraise != nil {
		return f.appraise(v)
	}
	return &models.AppraisalResult{VIN: v.VIN, Status: models.StatusSuccess, ExportValueCAD: "20000"}
}

type fakePersister struct {
	err   error
	saved []string
}

func (f *fakePersister) SaveResult(_ context.Context, r models.AppraisalResult) error {
	f.saved = append(f.saved, r.VIN)
	return f.err
}

type fakeRecorder struct {
	createErr    error
	createdTotal int
	recorded     []string
	finished     models.RunStatus
	tally        models.RunTally
}

func (f *fakeRecorder) CreateRun(total int) (int64, error) {
	f.createdTotal = total
	if f.createErr != nil {
		return 0, f.createErr
	}
	return 7, nil
}

func (f *fakeRecorder) RecordResult(_ int64, r models.AppraisalResult) error {
	f.recorded = append(f.recorded, r.VIN)
	return nil
}

func (f *fakeRecorder) FinishRun(_ int64, status models.RunStatus, tally models.RunTally) error {
	f.finished = status
	f.tally = tally
	return nil
}

func testManager() *config.Manager {
	return config.NewManager(&config.Config{
		SignalEmail:    "ops@example.com",
		SignalPassword: "secret",
	})
}

func newTestController(session *fakeSession, persister *fakePersister, recorder Recorder) *Controller {
	c := NewController(NewJobState(), testManager(), recorder, nil)
	c.pause = 0
	c.sessions = func(config.Config) Appraiser { return session }
	c.persisters = func(config.Config) Persister {
		if persister == nil {
			return nil
		}
		return persister
	}
	return c
}

func vehicle(vin string) models.VehicleRequest {
	return models.VehicleRequest{VIN: vin, Odometer: "100000", ListPrice: 22000}
}

func waitIdle(t *testing.T, state *JobState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !state.Processing() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("batch did not finish in time")
}

func TestStartRejectsEmptyBatch(t *testing.T) {
	c := newTestController(&fakeSession{}, nil, &fakeRecorder{})

	if err := c.Start(nil); !errors.Is(err, ErrNoVehicles) {
		t.Errorf("Start(nil) = %v, want ErrNoVehicles", err)
	}
	if err := c.Start([]models.VehicleRequest{}); !errors.Is(err, ErrNoVehicles) {
		t.Errorf("Start(empty) = %v, want ErrNoVehicles", err)
	}
}

func TestStartRequiresCredentials(t *testing.T) {
	session := &fakeSession{}
	c := NewController(NewJobState(), config.NewManager(&config.Config{SignalEmail: "ops@example.com"}), &fakeRecorder{}, nil)
	c.sessions = func(config.Config) Appraiser { return session }

	err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186")})
	if err == nil {
		t.Fatal("Start should fail without a password")
	}
	if errors.Is(err, ErrJobActive) || errors.Is(err, ErrNoVehicles) {
		t.Errorf("unexpected sentinel: %v", err)
	}
	if c.State().Processing() {
		t.Error("a rejected batch must not claim the job")
	}
	if session.started {
		t.Error("no browser should launch for a rejected batch")
	}
}

func TestStartRejectsConcurrentBatch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	session := &fakeSession{
		appraise: func(v models.VehicleRequest) *models.AppraisalResult {
			close(entered)
			<-release
			return &models.AppraisalResult{VIN: v.VIN, Status: models.StatusSuccess}
		},
	}
	c := newTestController(session, nil, &fakeRecorder{})

	if err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186")}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	<-entered

	if err := c.Start([]models.VehicleRequest{vehicle("4T1BF1FK5CU123456")}); !errors.Is(err, ErrJobActive) {
		t.Errorf("second Start = %v, want ErrJobActive", err)
	}

	close(release)
	waitIdle(t, c.State())
}

func TestBatchCompletesAndRecords(t *testing.T) {
	profit := 2339.0
	session := &fakeSession{
		appraise: func(v models.VehicleRequest) *models.AppraisalResult {
			if v.VIN == "1HGBH41JXMN109186" {
				return &models.AppraisalResult{VIN: v.VIN, Status: models.StatusProfit, ExportValueCAD: "24339", Profit: &profit}
			}
			return &models.AppraisalResult{VIN: v.VIN, Status: models.StatusNoData}
		},
	}
	persister := &fakePersister{}
	recorder := &fakeRecorder{}
	c := newTestController(session, persister, recorder)

	err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186"), vehicle("4T1BF1FK5CU123456")})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c.State())

	if !session.started || !session.stopped {
		t.Error("the browser session must be started and released")
	}
	if session.loggedIn != "ops@example.com" {
		t.Errorf("logged in as %q", session.loggedIn)
	}
	if len(session.appraised) != 2 {
		t.Errorf("appraised %v, want both vehicles", session.appraised)
	}

	results := c.State().Results()
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Status != models.StatusProfit || results[1].Status != models.StatusNoData {
		t.Errorf("statuses = %s, %s", results[0].Status, results[1].Status)
	}

	if len(persister.saved) != 1 || persister.saved[0] != "1HGBH41JXMN109186" {
		t.Errorf("saved %v, want only the vehicle with an export value", persister.saved)
	}

	if recorder.createdTotal != 2 {
		t.Errorf("run created with total %d, want 2", recorder.createdTotal)
	}
	if len(recorder.recorded) != 2 {
		t.Errorf("recorded %v, want both results", recorder.recorded)
	}
	if recorder.finished != models.RunCompleted {
		t.Errorf("run status = %s, want completed", recorder.finished)
	}
	want := models.RunTally{Processed: 2, Profitable: 1, NoData: 1}
	if recorder.tally != want {
		t.Errorf("tally = %+v, want %+v", recorder.tally, want)
	}
}

func TestBrowserStartFailureFailsRun(t *testing.T) {
	session := &fakeSession{startErr: errors.New("chrome not found")}
	recorder := &fakeRecorder{}
	c := newTestController(session, nil, recorder)

	if err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186")}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c.State())

	if len(session.appraised) != 0 {
		t.Errorf("appraised %v, want none", session.appraised)
	}
	if session.stopped {
		t.Error("Stop must not run for a session that never connected")
	}
	if recorder.finished != models.RunFailed {
		t.Errorf("run status = %s, want failed", recorder.finished)
	}
}

func TestLoginFailureAbortsBatch(t *testing.T) {
	session := &fakeSession{loginErr: errors.New("login did not reach an authenticated page after 20 seconds")}
	recorder := &fakeRecorder{}
	c := newTestController(session, nil, recorder)

	if err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186"), vehicle("4T1BF1FK5CU123456")}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c.State())

	if len(session.appraised) != 0 {
		t.Errorf("appraised %v, want none after a failed login", session.appraised)
	}
	if !session.stopped {
		t.Error("a connected session must be released even when login fails")
	}
	if recorder.finished != models.RunFailed {
		t.Errorf("run status = %s, want failed", recorder.finished)
	}
}

func TestStopFinishesCurrentVehicleOnly(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	session := &fakeSession{
		appraise: func(v models.VehicleRequest) *models.AppraisalResult {
			if v.VIN == "1HGBH41JXMN109186" {
				close(entered)
				<-release
			}
			return &models.AppraisalResult{VIN: v.VIN, Status: models.StatusSuccess, ExportValueCAD: "20000"}
		},
	}
	recorder := &fakeRecorder{}
	c := newTestController(session, nil, recorder)

	vehicles := []models.VehicleRequest{
		vehicle("1HGBH41JXMN109186"),
		vehicle("4T1BF1FK5CU123456"),
		vehicle("5YJSA1E26MF123456"),
	}
	if err := c.Start(vehicles); err != nil {
		t.Fatalf("Start: %v", err)
	}

	<-entered
	if !c.Stop() {
		t.Fatal("Stop should acknowledge an active batch")
	}
	close(release)
	waitIdle(t, c.State())

	if len(session.appraised) != 1 {
		t.Errorf("appraised %v, want only the in-flight vehicle", session.appraised)
	}
	if recorder.finished != models.RunStopped {
		t.Errorf("run status = %s, want stopped", recorder.finished)
	}
	if results := c.State().Results(); len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
	if !session.stopped {
		t.Error("the browser session must be released after a stop")
	}
}

func TestStopWithoutActiveBatch(t *testing.T) {
	c := newTestController(&fakeSession{}, nil, &fakeRecorder{})

	if c.Stop() {
		t.Error("Stop should report false when nothing is running")
	}
}

func TestVehiclePanicProducesErrorResult(t *testing.T) {
	session := &fakeSession{
		appraise: func(v models.VehicleRequest) *models.AppraisalResult {
			if v.VIN == "1HGBH41JXMN109186" {
				panic("browser detached")
			}
			return &models.AppraisalResult{VIN: v.VIN, Status: models.StatusSuccess, ExportValueCAD: "20000"}
		},
	}
	recorder := &fakeRecorder{}
	c := newTestController(session, nil, recorder)

	if err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186"), vehicle("4T1BF1FK5CU123456")}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c.State())

	results := c.State().Results()
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (the batch must survive a vehicle fault)", len(results))
	}
	if results[0].Status != models.StatusError {
		t.Errorf("first status = %s, want ERROR", results[0].Status)
	}
	if !strings.Contains(results[0].Error, "appraisal fault") {
		t.Errorf("first error = %q", results[0].Error)
	}
	if results[1].Status != models.StatusSuccess {
		t.Errorf("second status = %s, want SUCCESS", results[1].Status)
	}
	if recorder.finished != models.RunCompleted {
		t.Errorf("run status = %s, want completed", recorder.finished)
	}
	if recorder.tally.Errors != 1 || recorder.tally.Processed != 2 {
		t.Errorf("tally = %+v", recorder.tally)
	}
}

func TestPersistFailureDoesNotAbort(t *testing.T) {
	persister := &fakePersister{err: errors.New("duplicate key")}
	recorder := &fakeRecorder{}
	c := newTestController(&fakeSession{}, persister, recorder)

	if err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186"), vehicle("4T1BF1FK5CU123456")}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c.State())

	if len(persister.saved) != 2 {
		t.Errorf("save attempts = %d, want 2", len(persister.saved))
	}
	if recorder.finished != models.RunCompleted {
		t.Errorf("run status = %s, want completed despite save failures", recorder.finished)
	}
}

func TestNilPersisterSkipsSaves(t *testing.T) {
	recorder := &fakeRecorder{}
	c := newTestController(&fakeSession{}, nil, recorder)

	if err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186")}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c.State())

	if recorder.finished != models.RunCompleted {
		t.Errorf("run status = %s, want completed", recorder.finished)
	}
	logs := strings.Join(c.State().Snapshot().Logs, "\n")
	if !strings.Contains(logs, "Result store not configured") {
		t.Errorf("logs should warn about the missing store:\n%s", logs)
	}
}

func TestRecorderFailureIsTolerated(t *testing.T) {
	recorder := &fakeRecorder{createErr: errors.New("database is locked")}
	c := newTestController(&fakeSession{}, nil, recorder)

	if err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186")}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c.State())

	if len(recorder.recorded) != 0 {
		t.Errorf("recorded %v, want none when the run row was never created", recorder.recorded)
	}
	if recorder.finished != "" {
		t.Errorf("finished = %s, want untouched", recorder.finished)
	}
	if results := c.State().Results(); len(results) != 1 {
		t.Errorf("results = %d, the batch itself must still run", len(results))
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	c := newTestController(&fakeSession{}, nil, nil)

	if err := c.Start([]models.VehicleRequest{vehicle("1HGBH41JXMN109186")}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, c.State())

	if results := c.State().Results(); len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
}
