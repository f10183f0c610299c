package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ifrs-ledger/internal/jobs"
	"github.com/odyssey-erp/ifrs-ledger/internal/prepaid"
)

// AmortizationRunner recognises prepaid expenses for one company and period.
type AmortizationRunner interface {
	RunPeriod(ctx context.Context, companyID int64, period string) (prepaid.RunSummary, error)
}

// AmortizationRunJob runs prepaid expense amortization for one or all
// companies.
type AmortizationRunJob struct {
	Runner    AmortizationRunner
	Companies CompanyLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAmortizationRunJob initialises the amortization handler.
func NewAmortizationRunJob(runner AmortizationRunner, companies CompanyLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *AmortizationRunJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AmortizationRunJob{
		Runner:    runner,
		Companies: companies,
		Logger:    logger,
		Metrics:   metrics,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes one amortization run.
func (j *AmortizationRunJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Runner == nil {
		return errors.New("amortization run: handler not configured")
	}
	var payload DepreciationRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Period == "" {
		payload.Period = previousPeriod(j.clock())
	}
	if _, err := time.Parse("2006-01", payload.Period); err != nil {
		j.Logger.Warn("amortization run rejected", slog.String("period", payload.Period))
		return fmt.Errorf("%w: %q: %w", prepaid.ErrInvalidPeriod, payload.Period, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskAmortizationRun)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	companies := []int64{payload.CompanyID}
	if payload.CompanyID == 0 {
		if j.Companies == nil {
			return errors.New("amortization run: company lister not configured")
		}
		ids, err := j.Companies.ListCompanies(ctx)
		if err != nil {
			return fmt.Errorf("amortization run: list companies: %w", err)
		}
		companies = ids
	}

	logger := j.Logger.With(slog.String("period", payload.Period))
	var failed []error
	for _, companyID := range companies {
		summary, err := j.Runner.RunPeriod(ctx, companyID, payload.Period)
		switch {
		case errors.Is(err, prepaid.ErrRunInProgress):
			logger.Info("amortization run already in progress", slog.Int64("company_id", companyID))
			continue
		case err != nil:
			logger.Error("amortization run failed", slog.Int64("company_id", companyID), slog.Any("error", err))
			failed = append(failed, fmt.Errorf("company %d: %w", companyID, err))
			continue
		}
		j.Metrics.AddAmortization(companyID, summary.Total)
	}
	return errors.Join(failed...)
}
