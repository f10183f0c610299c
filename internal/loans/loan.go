// Package loans amortizes borrowings: level annuity payments, the split of
// each payment into interest and principal, and month-end interest accruals.
package loans

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// Frequency is how often an installment falls due.
type Frequency string

const (
	FrequencyMonthly      Frequency = "MONTHLY"
	FrequencyQuarterly    Frequency = "QUARTERLY"
	FrequencySemiAnnually Frequency = "SEMI_ANNUALLY"
	FrequencyAnnually     Frequency = "ANNUALLY"
)

// Months is the number of months between installments.
func (f Frequency) Months() int {
	switch f {
	case FrequencyQuarterly:
		return 3
	case FrequencySemiAnnually:
		return 6
	case FrequencyAnnually:
		return 12
	default:
		return 1
	}
}

// InterestType selects how TotalInterest is quoted.
type InterestType string

const (
	InterestSimple   InterestType = "SIMPLE"
	InterestCompound InterestType = "COMPOUND"
)

var (
	ErrInvalidLoan    = errors.New("loans: invalid loan")
	ErrInvalidAmount  = errors.New("loans: amount must be a finite number")
	ErrInvalidPayment = errors.New("loans: payment must be positive")
	ErrOverpayment    = errors.New("loans: payment exceeds balance and interest due")
	ErrLoanPaidOff    = errors.New("loans: loan already fully paid")
)

// Loan is a borrowing carried at amortized cost. AnnualRate is a decimal
// fraction, 0.12 for twelve percent.
type Loan struct {
	ID               int64
	CompanyID        int64
	Name             string       `validate:"required,max=255"`
	Lender           string       `validate:"max=255"`
	Principal        float64      `validate:"gt=0"`
	AnnualRate       float64      `validate:"gte=0,lte=1"`
	InterestType     InterestType `validate:"oneof=SIMPLE COMPOUND"`
	StartDate        time.Time    `validate:"required"`
	TermMonths       int          `validate:"gt=0"`
	Frequency        Frequency    `validate:"oneof=MONTHLY QUARTERLY SEMI_ANNUALLY ANNUALLY"`
	RemainingBalance float64      `validate:"gte=0"`
	PrincipalPaid    float64      `validate:"gte=0"`
	InterestPaid     float64      `validate:"gte=0"`
	PaymentsMade     int          `validate:"gte=0"`
}

// Active reports whether principal is still outstanding.
func (l Loan) Active() bool {
	return l.RemainingBalance > 0
}

// MaturityDate is the start date advanced by the term.
func (l Loan) MaturityDate() time.Time {
	return addMonths(l.StartDate, l.TermMonths)
}

var validate = validator.New()

// NewLoan applies defaults and validates the loan. A new loan with nothing
// repaid starts with its full principal outstanding.
func NewLoan(l Loan) (Loan, error) {
	if l.Frequency == "" {
		l.Frequency = FrequencyMonthly
	}
	if l.InterestType == "" {
		l.InterestType = InterestCompound
	}
	if !money.Finite(l.Principal, l.AnnualRate, l.RemainingBalance, l.PrincipalPaid, l.InterestPaid) {
		return Loan{}, fmt.Errorf("%w: %w", ErrInvalidLoan, ErrInvalidAmount)
	}
	if l.RemainingBalance == 0 && l.PrincipalPaid == 0 {
		l.RemainingBalance = l.Principal
	}
	if err := validate.Struct(l); err != nil {
		return Loan{}, fmt.Errorf("%w: %v", ErrInvalidLoan, err)
	}
	if l.RemainingBalance > l.Principal+money.Tolerance/2 {
		return Loan{}, fmt.Errorf("%w: balance exceeds principal", ErrInvalidLoan)
	}
	return l, nil
}

// addMonths moves t forward n calendar months, clamping to the last day of
// the target month.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(t.Day(), last), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
