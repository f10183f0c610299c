package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/loans"
)

// LoanDrawdown is loan principal received in cash.
type LoanDrawdown struct {
	CompanyID  int64
	DrawdownID string
	Date       time.Time
	Lender     string
	Amount     float64
}

// LoanRepayment is a loan payment already split by loans.Repay. Accrued
// settles interest previously accrued instead of expensing it again.
type LoanRepayment struct {
	CompanyID int64
	PaymentID string
	Repayment loans.Repayment
	Accrued   bool
}

// PrepaidPurchase is cash paid in advance for a future expense.
type PrepaidPurchase struct {
	CompanyID   int64
	PaymentID   string
	Date        time.Time
	Description string
	Amount      float64
}

// LoanDrawdown posts Dr cash / Cr bank loan.
func (h *Hooks) LoanDrawdown(ctx context.Context, in LoanDrawdown) error {
	if in.DrawdownID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.Amount); err != nil {
		return err
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("Loan drawdown %s - %s", in.DrawdownID, in.Lender),
		Source:      accounting.SourceRef{Type: accounting.SourceLoanDrawdown, ID: in.DrawdownID},
		Lines: lines(
			debit(h.chart.Cash, "Cash", in.Amount),
			credit(h.chart.BankLoan, "Bank loan", in.Amount),
		),
	})
}

// LoanRepayment posts Dr bank loan / Dr interest expense (or accrued
// expenses) / Cr cash.
func (h *Hooks) LoanRepayment(ctx context.Context, in LoanRepayment) error {
	if in.PaymentID == "" {
		return ErrMissingReference
	}
	r := in.Repayment
	if err := checkAmounts(r.Principal, r.Interest, r.Total); err != nil {
		return err
	}
	interestAccount, interestMemo := h.chart.InterestExpense, "Interest expense"
	if in.Accrued {
		interestAccount, interestMemo = h.chart.AccruedExpenses, "Accrued interest settled"
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        r.Date,
		Description: fmt.Sprintf("Loan payment %s (installment %d)", in.PaymentID, r.Number),
		Source:      accounting.SourceRef{Type: accounting.SourceLoanPayment, ID: in.PaymentID},
		Lines: lines(
			debit(h.chart.BankLoan, "Loan principal", r.Principal),
			debit(interestAccount, interestMemo, r.Interest),
			credit(h.chart.Cash, "Cash", r.Total),
		),
	})
}

// InterestAccrual posts the month-end accrual Dr interest expense / Cr
// accrued expenses. period names the month and keys idempotency.
func (h *Hooks) InterestAccrual(ctx context.Context, companyID int64, period string, accrual loans.Accrual) error {
	if period == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(accrual.Total); err != nil {
		return err
	}
	if accrual.Total <= 0 {
		return nil
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   companyID,
		Date:        accrual.AsOf,
		Description: fmt.Sprintf("Interest accrual %s (%d loans)", period, len(accrual.Lines)),
		Source:      accounting.SourceRef{Type: accounting.SourceInterestAccrual, ID: derivedSourceID("ACCR", companyID, period)},
		Lines: lines(
			debit(h.chart.InterestExpense, "Interest expense", accrual.Total),
			credit(h.chart.AccruedExpenses, "Accrued interest", accrual.Total),
		),
	})
}

// PrepaidPurchase posts Dr prepaid expenses / Cr cash.
func (h *Hooks) PrepaidPurchase(ctx context.Context, in PrepaidPurchase) error {
	if in.PaymentID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.Amount); err != nil {
		return err
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("Prepayment - %s", in.Description),
		Source:      accounting.SourceRef{Type: accounting.SourcePrepaidExpense, ID: in.PaymentID},
		Lines: lines(
			debit(h.chart.PrepaidExpenses, "Prepaid expenses", in.Amount),
			credit(h.chart.Cash, "Cash", in.Amount),
		),
	})
}
