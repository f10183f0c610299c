package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	jobmetrics "github.com/odyssey-erp/ifrs-ledger/internal/jobs"
	"github.com/odyssey-erp/ifrs-ledger/internal/shared"
)

// IntegrityChecker verifies one company's trial balance.
type IntegrityChecker interface {
	CompanyLister
	CheckIntegrity(ctx context.Context, companyID int64) (accounting.TrialBalance, error)
}

// Locker serialises sweeps across workers.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// ErrLedgerImbalanced is returned when at least one company fails the sweep.
var ErrLedgerImbalanced = errors.New("ledger integrity: companies out of balance")

// GLIntegrityJob checks debits equal credits across every company.
type GLIntegrityJob struct {
	Ledger      IntegrityChecker
	Locker      Locker
	Parallelism int
	LockTTL     time.Duration
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewGLIntegrityJob initialises the integrity sweep. locker may be nil.
func NewGLIntegrityJob(ledger IntegrityChecker, locker Locker, parallelism int, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Ledger:      ledger,
		Locker:      locker,
		Parallelism: parallelism,
		LockTTL:     30 * time.Minute,
		Logger:      logger,
		Metrics:     metrics,
	}
}

// Handle runs the sweep. An imbalance fails the task without retry.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Locker != nil {
		release, ok, err := j.Locker.TryLock(ctx, shared.IntegrityLockKey(), j.LockTTL)
		if err != nil {
			return fmt.Errorf("ledger integrity: acquire lock: %w", err)
		}
		if !ok {
			j.logger().Info("ledger integrity sweep already running")
			return nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				j.logger().Warn("release integrity lock", slog.Any("error", err))
			}
		}()
	}

	imbalanced, err := j.Sweep(ctx, payload.CompanyID)
	if err != nil {
		return err
	}
	if imbalanced > 0 {
		return fmt.Errorf("%w: %d: %w", ErrLedgerImbalanced, imbalanced, asynq.SkipRetry)
	}
	return nil
}

// Sweep checks the given company, or all companies when companyID is zero,
// and returns how many are out of balance.
func (j *GLIntegrityJob) Sweep(ctx context.Context, companyID int64) (int, error) {
	start := time.Now()
	companies := []int64{companyID}
	if companyID == 0 {
		ids, err := j.Ledger.ListCompanies(ctx)
		if err != nil {
			return 0, fmt.Errorf("ledger integrity: list companies: %w", err)
		}
		companies = ids
	}

	var imbalanced atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	if j.Parallelism > 0 {
		g.SetLimit(j.Parallelism)
	}
	for _, id := range companies {
		g.Go(func() error {
			tb, err := j.Ledger.CheckIntegrity(gctx, id)
			if errors.Is(err, accounting.ErrLedgerOutOfBalance) {
				imbalanced.Add(1)
				j.Metrics.AddImbalance(id)
				j.logger().Error("ledger out of balance",
					slog.Int64("company_id", id),
					slog.Int64("unbalanced_entries", tb.UnbalancedEntries),
					slog.Any("error", err),
				)
				return nil
			}
			if err != nil {
				return fmt.Errorf("ledger integrity: company %d: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(imbalanced.Load()), err
	}

	j.logger().Info("ledger integrity sweep completed",
		slog.Int("companies", len(companies)),
		slog.Int64("imbalanced", imbalanced.Load()),
		slog.Duration("duration", time.Since(start)),
	)
	return int(imbalanced.Load()), nil
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
