package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
	"github.com/odyssey-erp/ifrs-ledger/internal/shared"
)

// Store abstracts fixed asset persistence used by the period run.
type Store interface {
	ListDepreciable(ctx context.Context, companyID int64, period string) ([]FixedAsset, error)
	UsageForPeriod(ctx context.Context, companyID int64, period string) (map[int64]float64, error)
	SaveDepreciation(ctx context.Context, asset FixedAsset, period string) error
}

// Locker guards a run against concurrent execution across workers.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// ServiceConfig groups optional settings. PeriodsPerYear defaults to 12,
// matching the monthly YYYY-MM run; Currency formats run totals in logs.
type ServiceConfig struct {
	DefaultDecliningRate float64
	LockTTL              time.Duration
	PeriodsPerYear       int
	Currency             string
}

// Service runs period depreciation and impairment recognition.
type Service struct {
	store       Store
	integration IntegrationHandler
	locker      Locker
	logger      *slog.Logger
	cfg         ServiceConfig
	now         func() time.Time
}

// NewService builds Service. locker may be nil for single-worker setups.
func NewService(store Store, integration IntegrationHandler, locker Locker, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.DefaultDecliningRate == 0 {
		cfg.DefaultDecliningRate = DefaultDecliningRate
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 12
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, integration: integration, locker: locker, logger: logger, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AssetFailure records an asset whose charge could not be computed.
type AssetFailure struct {
	AssetID int64
	Err     error
}

// RunSummary reports the outcome of a period run.
type RunSummary struct {
	CompanyID int64
	Period    string
	Processed int
	Skipped   int
	Failed    []AssetFailure
	Total     float64
}

// RunPeriod charges one period of depreciation for every depreciable asset of
// the company. Annual rates and lives are spread over PeriodsPerYear. A
// missing parameter on one asset does not stop the others.
// Each charge is posted before it is saved; posting is idempotent per asset
// and period, so a failed run can be retried.
func (s *Service) RunPeriod(ctx context.Context, companyID int64, period string) (RunSummary, error) {
	if companyID <= 0 {
		return RunSummary{}, errors.New("assets: company required")
	}
	if _, err := ParsePeriod(period); err != nil {
		return RunSummary{}, err
	}
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, shared.DepreciationLockKey(companyID, period), s.cfg.LockTTL)
		if err != nil {
			return RunSummary{}, fmt.Errorf("assets: acquire lock: %w", err)
		}
		if !ok {
			return RunSummary{}, ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "release depreciation lock", slog.Any("error", err))
			}
		}()
	}

	assets, err := s.store.ListDepreciable(ctx, companyID, period)
	if err != nil {
		return RunSummary{}, fmt.Errorf("assets: list depreciable: %w", err)
	}
	usage, err := s.store.UsageForPeriod(ctx, companyID, period)
	if err != nil {
		return RunSummary{}, fmt.Errorf("assets: load usage: %w", err)
	}

	summary := RunSummary{CompanyID: companyID, Period: period}
	for _, asset := range assets {
		var units *float64
		if u, ok := usage[asset.ID]; ok {
			units = &u
		}
		rate := s.cfg.DefaultDecliningRate
		if asset.DecliningRate != nil {
			rate = *asset.DecliningRate
		}
		res, err := Calculate(asset, Params{PeriodUnits: units, DecliningRate: &rate, PeriodsPerYear: s.cfg.PeriodsPerYear})
		if err != nil {
			s.logger.WarnContext(ctx, "depreciation skipped",
				slog.Int64("asset_id", asset.ID), slog.String("period", period), slog.Any("error", err))
			summary.Failed = append(summary.Failed, AssetFailure{AssetID: asset.ID, Err: err})
			continue
		}
		if res.PeriodDepreciation > 0 && s.integration != nil {
			if err := s.integration.HandleDepreciationComputed(ctx, DepreciationComputedEvent{
				CompanyID: companyID,
				AssetID:   asset.ID,
				AssetName: asset.Name,
				Period:    period,
				Amount:    res.PeriodDepreciation,
				PostedAt:  s.now(),
			}); err != nil {
				return summary, fmt.Errorf("assets: post depreciation for asset %d: %w", asset.ID, err)
			}
		}
		if err := s.store.SaveDepreciation(ctx, Apply(asset, res, units), period); err != nil {
			if errors.Is(err, ErrAlreadyApplied) {
				summary.Skipped++
				continue
			}
			return summary, fmt.Errorf("assets: save asset %d: %w", asset.ID, err)
		}
		summary.Processed++
		summary.Total = money.Round2(summary.Total + res.PeriodDepreciation)
	}

	s.logger.InfoContext(ctx, "depreciation run completed",
		slog.Int64("company_id", companyID),
		slog.String("period", period),
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", len(summary.Failed)),
		slog.String("total", money.Format(summary.Total, s.cfg.Currency)),
	)
	return summary, nil
}

// RecognizeImpairment tests the asset against its recoverable amount and
// posts any loss.
func (s *Service) RecognizeImpairment(ctx context.Context, asset FixedAsset, recoverableAmount float64) (ImpairmentResult, error) {
	res, err := CheckImpairment(asset.CarryingAmount(), recoverableAmount)
	if err != nil {
		return ImpairmentResult{}, err
	}
	if !res.IsImpaired || s.integration == nil {
		return res, nil
	}
	err = s.integration.HandleImpairmentRecognised(ctx, ImpairmentRecognisedEvent{
		CompanyID: asset.CompanyID,
		AssetID:   asset.ID,
		AssetName: asset.Name,
		Loss:      res.ImpairmentLoss,
		PostedAt:  s.now(),
	})
	if err != nil {
		return ImpairmentResult{}, fmt.Errorf("assets: post impairment for asset %d: %w", asset.ID, err)
	}
	return res, nil
}
