package assets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubStore struct {
	assets  []FixedAsset
	usage   map[int64]float64
	saved   map[int64]FixedAsset
	applied map[int64]bool
}

func (s *stubStore) ListDepreciable(ctx context.Context, companyID int64, period string) ([]FixedAsset, error) {
	return s.assets, nil
}

func (s *stubStore) UsageForPeriod(ctx context.Context, companyID int64, period string) (map[int64]float64, error) {
	return s.usage, nil
}

func (s *stubStore) SaveDepreciation(ctx context.Context, asset FixedAsset, period string) error {
	if s.applied[asset.ID] {
		return ErrAlreadyApplied
	}
	if s.saved == nil {
		s.saved = map[int64]FixedAsset{}
	}
	asset.LastDepreciatedPeriod = period
	s.saved[asset.ID] = asset
	return nil
}

type recordingHandler struct {
	depreciation []DepreciationComputedEvent
	impairments  []ImpairmentRecognisedEvent
	err          error
}

func (h *recordingHandler) HandleDepreciationComputed(ctx context.Context, evt DepreciationComputedEvent) error {
	if h.err != nil {
		return h.err
	}
	h.depreciation = append(h.depreciation, evt)
	return nil
}

func (h *recordingHandler) HandleImpairmentRecognised(ctx context.Context, evt ImpairmentRecognisedEvent) error {
	h.impairments = append(h.impairments, evt)
	return nil
}

type stubLocker struct {
	held     bool
	keys     []string
	released int
}

func (l *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.keys = append(l.keys, key)
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error { l.released++; return nil }, true, nil
}

func fleet() []FixedAsset {
	truck := FixedAsset{
		ID:              2,
		CompanyID:       1,
		Name:            "Truck",
		AcquisitionCost: 50000,
		ResidualValue:   5000,
		UsefulLifeUnits: 100000,
		Method:          MethodUnitsOfProduction,
	}
	press := FixedAsset{
		ID:              3,
		CompanyID:       1,
		Name:            "Press",
		AcquisitionCost: 10000,
		ResidualValue:   1000,
		Method:          MethodDecliningBalance,
	}
	return []FixedAsset{machine(), truck, press}
}

func TestRunPeriodPostsAndSaves(t *testing.T) {
	store := &stubStore{assets: fleet(), usage: map[int64]float64{2: 2000}}
	handler := &recordingHandler{}
	locker := &stubLocker{}
	svc := NewService(store, handler, locker, ServiceConfig{DefaultDecliningRate: 0.25}, nil)
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	summary, err := svc.RunPeriod(context.Background(), 1, "2025-01")
	require.NoError(t, err)
	require.Equal(t, 3, summary.Processed)
	require.Empty(t, summary.Failed)
	require.Equal(t, 2775.0, summary.Total)

	require.Len(t, handler.depreciation, 3)
	require.Equal(t, 1666.67, handler.depreciation[0].Amount)
	require.Equal(t, 900.0, handler.depreciation[1].Amount)
	require.Equal(t, 208.33, handler.depreciation[2].Amount, "configured default rate spread monthly")
	require.Equal(t, now, handler.depreciation[0].PostedAt)

	require.Equal(t, 1666.67, store.saved[1].AccumulatedDepreciation)
	require.Equal(t, 2000.0, store.saved[2].UnitsProducedToDate)
	require.Equal(t, "2025-01", store.saved[3].LastDepreciatedPeriod)

	require.Equal(t, []string{"ledger:company:1:depreciation:2025-01:lock"}, locker.keys)
	require.Equal(t, 1, locker.released)
}

func TestRunPeriodSpreadsAnnualChargeOverMonths(t *testing.T) {
	store := &stubStore{assets: []FixedAsset{machine()}}
	handler := &recordingHandler{}
	svc := NewService(store, handler, nil, ServiceConfig{}, nil)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 36; i++ {
		period := start.AddDate(0, i, 0).Format("2006-01")
		_, err := svc.RunPeriod(context.Background(), 1, period)
		require.NoError(t, err, period)
		store.assets = []FixedAsset{store.saved[1]}
		if i == 11 {
			require.Equal(t, 20000.0, store.saved[1].AccumulatedDepreciation, "one year")
		}
	}
	require.Equal(t, 60000.0, store.saved[1].AccumulatedDepreciation, "three years")
	require.Equal(t, 60000.0, store.saved[1].CarryingAmount())
	require.Len(t, handler.depreciation, 36)
	require.Equal(t, "2026-12", store.saved[1].LastDepreciatedPeriod)
}

func TestRunPeriodAnnualPeriods(t *testing.T) {
	store := &stubStore{assets: []FixedAsset{machine()}}
	handler := &recordingHandler{}
	svc := NewService(store, handler, nil, ServiceConfig{PeriodsPerYear: 1, Currency: "EUR"}, nil)

	summary, err := svc.RunPeriod(context.Background(), 1, "2024-12")
	require.NoError(t, err)
	require.Equal(t, 20000.0, summary.Total)
	require.Equal(t, "EUR", svc.cfg.Currency)
}

func TestRunPeriodContinuesPastMissingParameters(t *testing.T) {
	store := &stubStore{assets: fleet()}
	handler := &recordingHandler{}
	svc := NewService(store, handler, nil, ServiceConfig{}, nil)

	summary, err := svc.RunPeriod(context.Background(), 1, "2025-01")
	require.NoError(t, err)
	require.Equal(t, 2, summary.Processed)
	require.Len(t, summary.Failed, 1)
	require.Equal(t, int64(2), summary.Failed[0].AssetID)
	require.ErrorIs(t, summary.Failed[0].Err, ErrMissingUnitsParameter)
	require.Len(t, handler.depreciation, 2)
	require.NotContains(t, store.saved, int64(2))
}

func TestRunPeriodSkipsAlreadyApplied(t *testing.T) {
	store := &stubStore{assets: []FixedAsset{machine()}, applied: map[int64]bool{1: true}}
	svc := NewService(store, &recordingHandler{}, nil, ServiceConfig{}, nil)

	summary, err := svc.RunPeriod(context.Background(), 1, "2025-01")
	require.NoError(t, err)
	require.Zero(t, summary.Processed)
	require.Equal(t, 1, summary.Skipped)
	require.Zero(t, summary.Total)
}

func TestRunPeriodDoesNotPostZeroCharge(t *testing.T) {
	done := machine()
	done.AccumulatedDepreciation = 100000
	store := &stubStore{assets: []FixedAsset{done}}
	handler := &recordingHandler{}
	svc := NewService(store, handler, nil, ServiceConfig{}, nil)

	summary, err := svc.RunPeriod(context.Background(), 1, "2025-01")
	require.NoError(t, err)
	require.Empty(t, handler.depreciation)
	require.Equal(t, 1, summary.Processed)
}

func TestRunPeriodAbortsWhenPostingFails(t *testing.T) {
	store := &stubStore{assets: fleet()}
	boom := errors.New("ledger unavailable")
	svc := NewService(store, &recordingHandler{err: boom}, nil, ServiceConfig{}, nil)

	_, err := svc.RunPeriod(context.Background(), 1, "2025-01")
	require.ErrorIs(t, err, boom)
	require.Empty(t, store.saved)
}

func TestRunPeriodRejectsConcurrentRun(t *testing.T) {
	store := &stubStore{assets: fleet()}
	svc := NewService(store, &recordingHandler{}, &stubLocker{held: true}, ServiceConfig{}, nil)

	_, err := svc.RunPeriod(context.Background(), 1, "2025-01")
	require.ErrorIs(t, err, ErrRunInProgress)
	require.Empty(t, store.saved)
}

func TestRunPeriodValidatesInput(t *testing.T) {
	svc := NewService(&stubStore{}, nil, nil, ServiceConfig{}, nil)
	_, err := svc.RunPeriod(context.Background(), 0, "2025-01")
	require.Error(t, err)
	_, err = svc.RunPeriod(context.Background(), 1, "January")
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRecognizeImpairment(t *testing.T) {
	handler := &recordingHandler{}
	svc := NewService(&stubStore{}, handler, nil, ServiceConfig{}, nil)
	asset := machine()
	asset.AccumulatedDepreciation = 40000

	res, err := svc.RecognizeImpairment(context.Background(), asset, 65000)
	require.NoError(t, err)
	require.True(t, res.IsImpaired)
	require.Equal(t, 15000.0, res.ImpairmentLoss)
	require.Len(t, handler.impairments, 1)
	require.Equal(t, 15000.0, handler.impairments[0].Loss)

	res, err = svc.RecognizeImpairment(context.Background(), asset, 90000)
	require.NoError(t, err)
	require.False(t, res.IsImpaired)
	require.Len(t, handler.impairments, 1)
}
