package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/assets"
	"github.com/odyssey-erp/ifrs-ledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/ifrs-ledger/internal/jobs"
	"github.com/odyssey-erp/ifrs-ledger/internal/platform/cache"
	"github.com/odyssey-erp/ifrs-ledger/internal/prepaid"
	"github.com/odyssey-erp/ifrs-ledger/internal/shared"
)

type stubRunner struct {
	mu      sync.Mutex
	calls   []string
	results map[int64]assets.RunSummary
	errs    map[int64]error
}

func (s *stubRunner) RunPeriod(ctx context.Context, companyID int64, period string) (assets.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("%d:%s", companyID, period))
	if err := s.errs[companyID]; err != nil {
		return assets.RunSummary{}, err
	}
	return s.results[companyID], nil
}

type stubLedger struct {
	companies  []int64
	listErr    error
	imbalanced map[int64]bool
	failing    map[int64]error
}

func (s stubLedger) ListCompanies(ctx context.Context) ([]int64, error) {
	return s.companies, s.listErr
}

func (s stubLedger) CheckIntegrity(ctx context.Context, companyID int64) (accounting.TrialBalance, error) {
	if err := s.failing[companyID]; err != nil {
		return accounting.TrialBalance{}, err
	}
	if s.imbalanced[companyID] {
		return accounting.TrialBalance{CompanyID: companyID, UnbalancedEntries: 1},
			fmt.Errorf("%w: company %d", accounting.ErrLedgerOutOfBalance, companyID)
	}
	return accounting.TrialBalance{CompanyID: companyID}, nil
}

func task(t *testing.T, build func() (*asynq.Task, error)) *asynq.Task {
	t.Helper()
	tk, err := build()
	require.NoError(t, err)
	return tk
}

func jobCount(t *testing.T, reg *prometheus.Registry, job, status string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "ledger_jobs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["job"] == job && labels["status"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestDepreciationRunSingleCompany(t *testing.T) {
	runner := &stubRunner{results: map[int64]assets.RunSummary{
		1: {CompanyID: 1, Period: "2025-06", Processed: 2, Total: 1250.5},
	}}
	reg := prometheus.NewRegistry()
	job := NewDepreciationRunJob(runner, nil, nil, jobmetrics.NewMetrics(reg))

	err := job.Handle(context.Background(), task(t, func() (*asynq.Task, error) { return NewDepreciationRunTask(1, "2025-06") }))
	require.NoError(t, err)
	require.Equal(t, []string{"1:2025-06"}, runner.calls)
	require.Equal(t, 1.0, jobCount(t, reg, TaskDepreciationRun, "success"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var charged float64
	for _, mf := range families {
		if mf.GetName() == "ledger_depreciation_charged_total" {
			charged = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.Equal(t, 1250.5, charged)
}

func TestDepreciationRunAllCompaniesDefaultsToPreviousMonth(t *testing.T) {
	runner := &stubRunner{
		errs: map[int64]error{
			2: assets.ErrRunInProgress,
			3: errors.New("db down"),
		},
	}
	job := NewDepreciationRunJob(runner, stubLedger{companies: []int64{1, 2, 3}}, nil, nil)
	job.clock = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }

	err := job.Handle(context.Background(), task(t, func() (*asynq.Task, error) { return NewDepreciationRunTask(0, "") }))
	require.Error(t, err)
	require.Contains(t, err.Error(), "company 3")
	require.NotContains(t, err.Error(), "company 2")
	require.Equal(t, []string{"1:2024-12", "2:2024-12", "3:2024-12"}, runner.calls)
}

func TestDepreciationRunRejectsBadPayload(t *testing.T) {
	job := NewDepreciationRunJob(&stubRunner{}, nil, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskDepreciationRun, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), task(t, func() (*asynq.Task, error) { return NewDepreciationRunTask(1, "June") }))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, assets.ErrInvalidPeriod)
}

type stubAmortizer struct {
	calls   []string
	results map[int64]prepaid.RunSummary
	errs    map[int64]error
}

func (s *stubAmortizer) RunPeriod(ctx context.Context, companyID int64, period string) (prepaid.RunSummary, error) {
	s.calls = append(s.calls, fmt.Sprintf("%d:%s", companyID, period))
	if err := s.errs[companyID]; err != nil {
		return prepaid.RunSummary{}, err
	}
	return s.results[companyID], nil
}

func TestAmortizationRunAllCompanies(t *testing.T) {
	runner := &stubAmortizer{
		results: map[int64]prepaid.RunSummary{1: {CompanyID: 1, Entries: 1, Total: 1000}},
		errs: map[int64]error{
			2: prepaid.ErrRunInProgress,
			3: errors.New("db down"),
		},
	}
	reg := prometheus.NewRegistry()
	job := NewAmortizationRunJob(runner, stubLedger{companies: []int64{1, 2, 3}}, nil, jobmetrics.NewMetrics(reg))
	job.clock = func() time.Time { return time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC) }

	err := job.Handle(context.Background(), task(t, func() (*asynq.Task, error) { return NewAmortizationRunTask(0, "") }))
	require.Error(t, err)
	require.Contains(t, err.Error(), "company 3")
	require.NotContains(t, err.Error(), "company 2")
	require.Equal(t, []string{"1:2025-02", "2:2025-02", "3:2025-02"}, runner.calls)
	require.Equal(t, 1.0, jobCount(t, reg, TaskAmortizationRun, "failure"))
}

func TestAmortizationRunRejectsBadPayload(t *testing.T) {
	job := NewAmortizationRunJob(&stubAmortizer{}, nil, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskAmortizationRun, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), task(t, func() (*asynq.Task, error) { return NewAmortizationRunTask(1, "June") }))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, prepaid.ErrInvalidPeriod)

	err = job.Handle(context.Background(), task(t, func() (*asynq.Task, error) { return NewAmortizationRunTask(0, "2025-01") }))
	require.ErrorContains(t, err, "company lister not configured")
}

func TestPreviousPeriod(t *testing.T) {
	require.Equal(t, "2025-02", previousPeriod(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)))
	require.Equal(t, "2024-12", previousPeriod(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestGLIntegritySweepCountsImbalances(t *testing.T) {
	ledger := stubLedger{
		companies:  []int64{1, 2, 3, 4},
		imbalanced: map[int64]bool{2: true, 4: true},
	}
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := NewGLIntegrityJob(ledger, nil, 2, nil, metrics)

	err := job.Handle(context.Background(), task(t, func() (*asynq.Task, error) { return NewLedgerIntegrityTask(0) }))
	require.ErrorIs(t, err, ErrLedgerImbalanced)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, 1.0, jobCount(t, reg, TaskLedgerIntegrity, "failure"))

	families, err := reg.Gather()
	require.NoError(t, err)
	companies := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "ledger_integrity_imbalances_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			companies[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	require.Equal(t, map[string]float64{"2": 1, "4": 1}, companies)
}

func TestGLIntegritySweepBalanced(t *testing.T) {
	job := NewGLIntegrityJob(stubLedger{companies: []int64{1, 2}}, nil, 4, nil, nil)
	n, err := job.Sweep(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = job.Sweep(context.Background(), 7)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestGLIntegritySweepPropagatesErrors(t *testing.T) {
	job := NewGLIntegrityJob(stubLedger{
		companies: []int64{1, 2},
		failing:   map[int64]error{2: errors.New("timeout")},
	}, nil, 1, nil, nil)
	_, err := job.Sweep(context.Background(), 0)
	require.ErrorContains(t, err, "company 2: timeout")

	job = NewGLIntegrityJob(stubLedger{listErr: errors.New("no db")}, nil, 1, nil, nil)
	_, err = job.Sweep(context.Background(), 0)
	require.ErrorContains(t, err, "list companies")
}

func TestGLIntegritySkipsWhileLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := cache.NewLocker(client)

	release, ok, err := locker.TryLock(context.Background(), shared.IntegrityLockKey(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ledger := stubLedger{companies: []int64{1}, imbalanced: map[int64]bool{1: true}}
	job := NewGLIntegrityJob(ledger, locker, 1, nil, nil)
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil)))

	require.NoError(t, release(context.Background()))
	err = job.Handle(context.Background(), asynq.NewTask(TaskLedgerIntegrity, nil))
	require.ErrorIs(t, err, ErrLedgerImbalanced)
	require.False(t, mr.Exists(shared.IntegrityLockKey()))
}

type recordingHooks struct {
	cogs       []inventory.CostOfSalesEvent
	writeDowns []inventory.WriteDownEvent
}

func (r *recordingHooks) HandleCostOfSales(ctx context.Context, evt inventory.CostOfSalesEvent) error {
	r.cogs = append(r.cogs, evt)
	return nil
}

func (r *recordingHooks) HandleWriteDown(ctx context.Context, evt inventory.WriteDownEvent) error {
	r.writeDowns = append(r.writeDowns, evt)
	return nil
}

func TestInventoryCloseJobPostsThroughService(t *testing.T) {
	hooks := &recordingHooks{}
	job := NewInventoryCloseJob(inventory.NewService(hooks, nil), nil, nil)
	price := 350.0
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	err := job.Handle(context.Background(), task(t, func() (*asynq.Task, error) {
		return NewInventoryCloseTask(InventoryClosePayload{
			CompanyID: 1,
			ItemRef:   "SKU-1",
			Period:    "2025-03",
			Method:    string(inventory.MethodFIFO),
			Movements: []MovementPayload{
				{Date: day, Type: "IN", Quantity: 100, UnitCost: 10},
				{Date: day.AddDate(0, 0, 1), Type: "OUT", Quantity: 60},
			},
			EstimatedSellingPrice: &price,
		})
	}))
	require.NoError(t, err)
	require.Len(t, hooks.cogs, 1)
	require.Equal(t, 600.0, hooks.cogs[0].COGS)
	require.Len(t, hooks.writeDowns, 1)
	require.Equal(t, 50.0, hooks.writeDowns[0].WriteDown)
}

func TestInventoryCloseJobSkipsRetryOnBadHistory(t *testing.T) {
	job := NewInventoryCloseJob(inventory.NewService(nil, nil), nil, nil)
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	err := job.Handle(context.Background(), task(t, func() (*asynq.Task, error) {
		return NewInventoryCloseTask(InventoryClosePayload{
			CompanyID: 1,
			ItemRef:   "SKU-1",
			Period:    "2025-03",
			Method:    string(inventory.MethodFIFO),
			Movements: []MovementPayload{{Date: day, Type: "OUT", Quantity: 5}},
		})
	}))
	require.ErrorIs(t, err, inventory.ErrInsufficientInventory)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body.Queue)
}

func TestNewWorkerRegistersCron(t *testing.T) {
	mr := miniredis.RunT(t)
	runTask := task(t, func() (*asynq.Task, error) { return NewDepreciationRunTask(0, "") })
	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Handlers:  []TaskHandler{{Type: TaskDepreciationRun, Handler: NewDepreciationRunJob(&stubRunner{}, nil, nil, nil).Handle}},
		Cron:      []CronRegistration{{Spec: "0 2 1 * *", Task: runTask}},
	})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: runTask}},
	})
	require.Error(t, err)
}
