package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/odyssey-erp/ifrs-ledger/internal/loans"
	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// LoanOptions defines available flags for the loan command.
type LoanOptions struct {
	Principal  float64
	AnnualRate float64
	TermMonths int
	Frequency  string
	Start      string
	Currency   string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// LoanLine is one JSON row of the loan command.
type LoanLine struct {
	Number    int     `json:"number"`
	DueDate   string  `json:"due_date"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Total     float64 `json:"total"`
	Balance   float64 `json:"balance"`
}

// LoanCommand prints the amortization schedule of a prospective loan.
func LoanCommand(opts LoanOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	start := time.Now().UTC()
	if opts.Start != "" {
		t, err := time.Parse(time.DateOnly, opts.Start)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "loan: --start must be YYYY-MM-DD: %v\n", err)
			return 1
		}
		start = t
	}
	loan, err := loans.NewLoan(loans.Loan{
		Name:       "projection",
		Principal:  opts.Principal,
		AnnualRate: opts.AnnualRate,
		StartDate:  start,
		TermMonths: opts.TermMonths,
		Frequency:  loans.Frequency(opts.Frequency),
	})
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "loan: %v\n", err)
		return 1
	}
	rows, err := loans.Schedule(loan)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "loan: %v\n", err)
		return 1
	}

	if opts.JSONOutput {
		lines := make([]LoanLine, len(rows))
		for i, r := range rows {
			lines[i] = LoanLine{
				Number:    r.Number,
				DueDate:   r.DueDate.Format(time.DateOnly),
				Principal: r.Principal,
				Interest:  r.Interest,
				Total:     r.Total,
				Balance:   r.BalanceAfter,
			}
		}
		if err := json.NewEncoder(opts.Stdout).Encode(lines); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "loan: encode json: %v\n", err)
			return 1
		}
		return 0
	}

	interest, err := loans.TotalInterest(loan)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "loan: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "Loan of %s at %.2f%% over %d months (%s), total interest %s\n",
		money.Format(loan.Principal, opts.Currency), loan.AnnualRate*100, loan.TermMonths, loan.Frequency,
		money.Format(interest, opts.Currency))
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "no\tdue\tprincipal\tinterest\tpayment\tbalance\t")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n", r.Number, r.DueDate.Format(time.DateOnly),
			money.Format(r.Principal, opts.Currency),
			money.Format(r.Interest, opts.Currency),
			money.Format(r.Total, opts.Currency),
			money.Format(r.BalanceAfter, opts.Currency),
		)
	}
	_ = tw.Flush()
	return 0
}
