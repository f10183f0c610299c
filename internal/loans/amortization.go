package loans

import (
	"fmt"
	"math"
	"time"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// Installment is one row of an amortization schedule.
type Installment struct {
	Number       int
	DueDate      time.Time
	Principal    float64
	Interest     float64
	Total        float64
	BalanceAfter float64
}

// Repayment is a recorded payment split between interest and principal.
type Repayment struct {
	LoanID       int64
	Number       int
	Date         time.Time
	Principal    float64
	Interest     float64
	Total        float64
	BalanceAfter float64
}

// AccrualLine is one loan's interest for the month.
type AccrualLine struct {
	LoanID   int64
	Name     string
	Lender   string
	Balance  float64
	Interest float64
}

// Accrual is the month-end interest accrued across a company's loans. Total
// is the sum of the rounded lines.
type Accrual struct {
	AsOf  time.Time
	Total float64
	Lines []AccrualLine
}

// MonthlyPayment is the level annuity payment P*r(1+r)^n/((1+r)^n-1) at the
// monthly rate r, rounded to cents. A zero rate repays principal evenly.
func MonthlyPayment(principal, annualRate float64, termMonths int) (float64, error) {
	if !money.Finite(principal, annualRate) {
		return 0, ErrInvalidAmount
	}
	if termMonths <= 0 || principal < 0 || annualRate < 0 {
		return 0, fmt.Errorf("%w: principal %v, rate %v, term %d", ErrInvalidLoan, principal, annualRate, termMonths)
	}
	if annualRate == 0 {
		return money.Round2(principal / float64(termMonths)), nil
	}
	r := annualRate / 12
	factor := math.Pow(1+r, float64(termMonths))
	return money.Round2(principal * r * factor / (factor - 1)), nil
}

// TotalInterest is the interest over the life of the loan: P*r*t for simple
// interest, total annuity payments less principal for compound.
func TotalInterest(l Loan) (float64, error) {
	if l.InterestType == InterestSimple {
		if !money.Finite(l.Principal, l.AnnualRate) {
			return 0, ErrInvalidAmount
		}
		return money.Round2(l.Principal * l.AnnualRate * float64(l.TermMonths) / 12), nil
	}
	payment, err := MonthlyPayment(l.Principal, l.AnnualRate, l.TermMonths)
	if err != nil {
		return 0, err
	}
	return money.Round2(payment*float64(l.TermMonths) - l.Principal), nil
}

// Schedule projects the installments of the loan from its original
// principal. Each installment pays the monthly annuity times the months it
// covers; the last one clears the balance, so principal repaid sums to the
// principal borrowed.
func Schedule(l Loan) ([]Installment, error) {
	monthly, err := MonthlyPayment(l.Principal, l.AnnualRate, l.TermMonths)
	if err != nil {
		return nil, err
	}
	months := l.Frequency.Months()
	count := (l.TermMonths + months - 1) / months
	payment := money.Round2(monthly * float64(months))
	periodRate := l.AnnualRate / 12 * float64(months)

	out := make([]Installment, 0, count)
	balance := money.Round2(l.Principal)
	for i := 0; i < count && balance > 0; i++ {
		interest := money.Round2(balance * periodRate)
		principal := money.Max(0, money.Round2(payment-interest))
		if i == count-1 || principal > balance {
			principal = balance
		}
		balance = money.Round2(balance - principal)
		out = append(out, Installment{
			Number:       i + 1,
			DueDate:      addMonths(l.StartDate, months*(i+1)),
			Principal:    principal,
			Interest:     interest,
			Total:        money.Round2(principal + interest),
			BalanceAfter: balance,
		})
	}
	return out, nil
}

// InterestDue is the interest on the outstanding balance for one payment
// interval.
func InterestDue(l Loan) float64 {
	return money.Round2(l.RemainingBalance * l.AnnualRate / 12 * float64(l.Frequency.Months()))
}

// Repay records a payment against the loan. Interest due for the interval is
// settled first and the rest reduces principal. It returns the split and the
// loan with its balance and running totals advanced.
func Repay(l Loan, date time.Time, amount float64) (Repayment, Loan, error) {
	if !money.Finite(amount) {
		return Repayment{}, l, fmt.Errorf("%w: loan %d", ErrInvalidAmount, l.ID)
	}
	if amount <= 0 {
		return Repayment{}, l, ErrInvalidPayment
	}
	if !l.Active() {
		return Repayment{}, l, fmt.Errorf("%w: loan %d", ErrLoanPaidOff, l.ID)
	}
	amount = money.Round2(amount)
	interest := math.Min(InterestDue(l), amount)
	principal := money.Round2(amount - interest)
	if principal > l.RemainingBalance+money.Tolerance/2 {
		return Repayment{}, l, fmt.Errorf("%w: loan %d pays %.2f against %.2f", ErrOverpayment, l.ID, amount, l.RemainingBalance+interest)
	}
	principal = math.Min(principal, l.RemainingBalance)

	l.RemainingBalance = money.Round2(l.RemainingBalance - principal)
	l.PrincipalPaid = money.Round2(l.PrincipalPaid + principal)
	l.InterestPaid = money.Round2(l.InterestPaid + interest)
	l.PaymentsMade++
	return Repayment{
		LoanID:       l.ID,
		Number:       l.PaymentsMade,
		Date:         date,
		Principal:    principal,
		Interest:     interest,
		Total:        amount,
		BalanceAfter: l.RemainingBalance,
	}, l, nil
}

// Accrue computes one month of interest on every active loan.
func Accrue(loans []Loan, asOf time.Time) (Accrual, error) {
	out := Accrual{AsOf: asOf}
	interests := make([]float64, 0, len(loans))
	for _, l := range loans {
		if !money.Finite(l.RemainingBalance, l.AnnualRate) {
			return Accrual{}, fmt.Errorf("%w: loan %d", ErrInvalidAmount, l.ID)
		}
		if !l.Active() {
			continue
		}
		interest := money.Round2(l.RemainingBalance * l.AnnualRate / 12)
		if interest <= 0 {
			continue
		}
		interests = append(interests, interest)
		out.Lines = append(out.Lines, AccrualLine{
			LoanID:   l.ID,
			Name:     l.Name,
			Lender:   l.Lender,
			Balance:  l.RemainingBalance,
			Interest: interest,
		})
	}
	out.Total = money.Round2(money.Sum(interests...))
	return out, nil
}
