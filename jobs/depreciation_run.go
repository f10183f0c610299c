package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ifrs-ledger/internal/assets"
	jobmetrics "github.com/odyssey-erp/ifrs-ledger/internal/jobs"
)

// PeriodRunner charges depreciation for one company and period.
type PeriodRunner interface {
	RunPeriod(ctx context.Context, companyID int64, period string) (assets.RunSummary, error)
}

// CompanyLister lists companies that own a ledger.
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]int64, error)
}

// DepreciationRunJob runs period depreciation for one or all companies.
type DepreciationRunJob struct {
	Runner    PeriodRunner
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewDepreciationRunJob initialises the depreciation handler.
func NewDepreciationRunJob(runner PeriodRunner, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *DepreciationRunJob {
	return &DepreciationRunJob{
		Runner:    runner,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one depreciation run.
func (j *DepreciationRunJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Runner == nil {
		return errors.New("depreciation run: handler not configured")
	}
	var payload DepreciationRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Period == "" {
		payload.Period = previousPeriod(j.now())
	}
	if _, err := assets.ParsePeriod(payload.Period); err != nil {
		j.logger().Warn("depreciation run rejected", slog.Any("error", err))
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskDepreciationRun)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	companies := []int64{payload.CompanyID}
	if payload.CompanyID == 0 {
		if j.Companies == nil {
			return errors.New("depreciation run: company lister not configured")
		}
		ids, err := j.Companies.ListCompanies(ctx)
		if err != nil {
			return fmt.Errorf("depreciation run: list companies: %w", err)
		}
		companies = ids
	}

	logger := j.logger().With(slog.String("period", payload.Period))
	logger.Info("starting depreciation run", slog.Int("companies", len(companies)))

	var failed []error
	for _, companyID := range companies {
		summary, err := j.Runner.RunPeriod(ctx, companyID, payload.Period)
		switch {
		case errors.Is(err, assets.ErrRunInProgress):
			logger.Info("depreciation run already in progress", slog.Int64("company_id", companyID))
			continue
		case err != nil:
			logger.Error("depreciation run failed", slog.Int64("company_id", companyID), slog.Any("error", err))
			failed = append(failed, fmt.Errorf("company %d: %w", companyID, err))
			continue
		}
		for _, f := range summary.Failed {
			logger.Warn("asset not depreciated",
				slog.Int64("company_id", companyID),
				slog.Int64("asset_id", f.AssetID),
				slog.Any("error", f.Err),
			)
		}
		j.metrics().AddDepreciation(companyID, summary.Total)
	}
	return errors.Join(failed...)
}

// previousPeriod returns the YYYY-MM of the month before now.
func previousPeriod(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -1, 0).Format("2006-01")
}

func (j *DepreciationRunJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}

func (j *DepreciationRunJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *DepreciationRunJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
