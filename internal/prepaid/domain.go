// Package prepaid spreads expenses paid in advance evenly over the months
// they cover.
package prepaid

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

var (
	ErrInvalidExpense = errors.New("prepaid: invalid prepaid expense")
	ErrInvalidAmount  = errors.New("prepaid: amount must be a finite number")
	ErrInvalidPeriod  = errors.New("prepaid: period must be YYYY-MM")
	ErrRunInProgress  = errors.New("prepaid: amortization run already in progress")
)

// Expense is a payment made in advance, such as a multi-year hosting
// contract, recognised in ExpenseAccount month by month.
type Expense struct {
	ID                int64
	CompanyID         int64
	Description       string    `validate:"required,max=255"`
	Vendor            string    `validate:"max=255"`
	TotalAmount       float64   `validate:"gt=0"`
	StartDate         time.Time `validate:"required"`
	EndDate           time.Time `validate:"required"`
	ExpenseAccount    string    `validate:"required"`
	PeriodsRecognized int       `validate:"gte=0"`
	RecognizedAmount  float64   `validate:"gte=0"`
}

// Months is the number of calendar months the expense covers.
func (e Expense) Months() int {
	return MonthsBetween(e.StartDate, e.EndDate)
}

// RemainingAmount is what is still carried as a prepayment.
func (e Expense) RemainingAmount() float64 {
	return money.Round2(e.TotalAmount - e.RecognizedAmount)
}

// FullyAmortized reports whether every month has been recognised.
func (e Expense) FullyAmortized() bool {
	return e.PeriodsRecognized >= e.Months()
}

var validate = validator.New()

// NewExpense validates a prepaid expense.
func NewExpense(e Expense) (Expense, error) {
	if !money.Finite(e.TotalAmount, e.RecognizedAmount) {
		return Expense{}, fmt.Errorf("%w: %w", ErrInvalidExpense, ErrInvalidAmount)
	}
	if err := validate.Struct(e); err != nil {
		return Expense{}, fmt.Errorf("%w: %v", ErrInvalidExpense, err)
	}
	if e.EndDate.Before(e.StartDate) {
		return Expense{}, fmt.Errorf("%w: end date before start date", ErrInvalidExpense)
	}
	if e.RecognizedAmount > e.TotalAmount+money.Tolerance/2 {
		return Expense{}, fmt.Errorf("%w: recognised amount exceeds total", ErrInvalidExpense)
	}
	return e, nil
}

// Entry is one month of the amortization schedule.
type Entry struct {
	Number     int
	Period     string
	Date       time.Time
	Amount     float64
	Cumulative float64
	Remaining  float64
}

// MonthsBetween counts the calendar months from start to end inclusive,
// never less than one.
func MonthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	return max(1, months)
}

// Schedule splits the total into equal monthly amounts. The last month takes
// the rounding difference so the entries sum to the total. Each entry is
// dated at its month end.
func Schedule(e Expense) []Entry {
	n := e.Months()
	monthly := money.Round2(e.TotalAmount / float64(n))
	out := make([]Entry, n)
	cumulative := 0.0
	for i := range out {
		amount := monthly
		if i == n-1 {
			amount = money.Round2(e.TotalAmount - monthly*float64(n-1))
		}
		cumulative = money.Round2(cumulative + amount)
		first := time.Date(e.StartDate.Year(), e.StartDate.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		out[i] = Entry{
			Number:     i + 1,
			Period:     first.Format("2006-01"),
			Date:       first.AddDate(0, 1, -1),
			Amount:     amount,
			Cumulative: cumulative,
			Remaining:  money.Round2(e.TotalAmount - cumulative),
		}
	}
	return out
}

// Amortize returns the unrecognised entries falling in or before period and
// the expense advanced past them. Entries already recognised are never
// returned again.
func Amortize(e Expense, period string) ([]Entry, Expense, error) {
	if _, err := time.Parse("2006-01", period); err != nil {
		return nil, e, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	if !money.Finite(e.TotalAmount, e.RecognizedAmount) {
		return nil, e, fmt.Errorf("%w: expense %d", ErrInvalidAmount, e.ID)
	}
	schedule := Schedule(e)
	if e.PeriodsRecognized >= len(schedule) {
		return nil, e, nil
	}
	var due []Entry
	for _, entry := range schedule[e.PeriodsRecognized:] {
		if entry.Period > period {
			break
		}
		due = append(due, entry)
	}
	if len(due) == 0 {
		return nil, e, nil
	}
	last := due[len(due)-1]
	e.PeriodsRecognized = last.Number
	e.RecognizedAmount = last.Cumulative
	return due, e, nil
}
