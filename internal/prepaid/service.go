package prepaid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
	"github.com/odyssey-erp/ifrs-ledger/internal/shared"
)

// AmortizationEvent carries one month of a prepaid expense.
type AmortizationEvent struct {
	CompanyID      int64
	ExpenseID      int64
	Description    string
	ExpenseAccount string
	Period         string
	Amount         float64
	PostedAt       time.Time
}

// IntegrationHandler receives amortization events for financial integration.
type IntegrationHandler interface {
	HandleAmortization(ctx context.Context, evt AmortizationEvent) error
}

// Store abstracts prepaid expense persistence used by the period run.
type Store interface {
	ListActive(ctx context.Context, companyID int64) ([]Expense, error)
	SaveAmortization(ctx context.Context, expense Expense) error
}

// Locker guards a run against concurrent execution across workers.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Service runs the monthly amortization of prepaid expenses.
type Service struct {
	store       Store
	integration IntegrationHandler
	locker      Locker
	logger      *slog.Logger
	lockTTL     time.Duration
	currency    string
}

// NewService builds Service. locker may be nil for single-worker setups.
func NewService(store Store, integration IntegrationHandler, locker Locker, currency string, logger *slog.Logger) *Service {
	if currency == "" {
		currency = "USD"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, integration: integration, locker: locker, logger: logger, lockTTL: 10 * time.Minute, currency: currency}
}

// RunSummary reports the outcome of an amortization run.
type RunSummary struct {
	CompanyID int64
	Period    string
	Entries   int
	Expenses  int
	Skipped   int
	Total     float64
}

// RunPeriod recognises every unrecognised month up to and including period,
// so a skipped month is caught up by the next run. Each month is posted
// before the expense is saved; postings are idempotent per expense and
// month.
func (s *Service) RunPeriod(ctx context.Context, companyID int64, period string) (RunSummary, error) {
	if companyID <= 0 {
		return RunSummary{}, errors.New("prepaid: company required")
	}
	if _, err := time.Parse("2006-01", period); err != nil {
		return RunSummary{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, shared.AmortizationLockKey(companyID, period), s.lockTTL)
		if err != nil {
			return RunSummary{}, fmt.Errorf("prepaid: acquire lock: %w", err)
		}
		if !ok {
			return RunSummary{}, ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "release amortization lock", slog.Any("error", err))
			}
		}()
	}

	expenses, err := s.store.ListActive(ctx, companyID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("prepaid: list active: %w", err)
	}
	summary := RunSummary{CompanyID: companyID, Period: period}
	for _, expense := range expenses {
		due, next, err := Amortize(expense, period)
		if err != nil {
			return summary, err
		}
		if len(due) == 0 {
			continue
		}
		amounts := make([]float64, 0, len(due))
		for _, entry := range due {
			amounts = append(amounts, entry.Amount)
			if s.integration != nil {
				if err := s.integration.HandleAmortization(ctx, AmortizationEvent{
					CompanyID:      companyID,
					ExpenseID:      expense.ID,
					Description:    expense.Description,
					ExpenseAccount: expense.ExpenseAccount,
					Period:         entry.Period,
					Amount:         entry.Amount,
					PostedAt:       entry.Date,
				}); err != nil {
					return summary, fmt.Errorf("prepaid: post amortization for expense %d %s: %w", expense.ID, entry.Period, err)
				}
			}
		}
		if err := s.store.SaveAmortization(ctx, next); err != nil {
			if errors.Is(err, ErrAlreadyApplied) {
				summary.Skipped++
				continue
			}
			return summary, fmt.Errorf("prepaid: save expense %d: %w", expense.ID, err)
		}
		summary.Expenses++
		summary.Entries += len(due)
		summary.Total = money.Round2(summary.Total + money.Sum(amounts...))
	}

	s.logger.InfoContext(ctx, "amortization run completed",
		slog.Int64("company_id", companyID),
		slog.String("period", period),
		slog.Int("expenses", summary.Expenses),
		slog.Int("entries", summary.Entries),
		slog.Int("skipped", summary.Skipped),
		slog.String("total", money.Format(summary.Total, s.currency)),
	)
	return summary, nil
}
