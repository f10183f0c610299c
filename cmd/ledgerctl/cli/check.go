package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
)

// IntegrityChecker verifies one company's trial balance.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, companyID int64) (accounting.TrialBalance, error)
}

// LedgerCLI offers operational helpers over the posted ledger.
type LedgerCLI struct {
	ledger IntegrityChecker
}

// NewLedgerCLI constructs a new helper instance.
func NewLedgerCLI(ledger IntegrityChecker) (*LedgerCLI, error) {
	if ledger == nil {
		return nil, errors.New("ledger cli: ledger not configured")
	}
	return &LedgerCLI{ledger: ledger}, nil
}

// CheckOptions defines available flags for the check command.
type CheckOptions struct {
	CompanyID  int64
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// CheckSummary describes the JSON response for check.
type CheckSummary struct {
	OK                bool   `json:"ok"`
	CompanyID         int64  `json:"company_id"`
	Entries           int64  `json:"entries"`
	LineDebit         string `json:"line_debit"`
	LineCredit        string `json:"line_credit"`
	HeaderDebit       string `json:"header_debit"`
	HeaderCredit      string `json:"header_credit"`
	DebitBalances     string `json:"debit_balances"`
	CreditBalances    string `json:"credit_balances"`
	UnbalancedEntries int64  `json:"unbalanced_entries"`
}

// CheckCommand runs the trial balance check and prints the outcome. It exits
// 10 when the ledger is out of balance.
func (c *LedgerCLI) CheckCommand(ctx context.Context, opts CheckOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.CompanyID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "check: --company is required and must be positive")
		return 1
	}
	tb, err := c.ledger.CheckIntegrity(ctx, opts.CompanyID)
	balanced := true
	if err != nil {
		if !errors.Is(err, accounting.ErrLedgerOutOfBalance) {
			_, _ = fmt.Fprintf(opts.Stderr, "check: %v\n", err)
			return 1
		}
		balanced = false
	}
	tb.CompanyID = opts.CompanyID
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(buildCheckSummary(tb, balanced)); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "check: encode json: %v\n", err)
			return 1
		}
	} else {
		renderCheckHuman(opts.Stdout, tb, balanced)
	}
	if !balanced {
		return 10
	}
	return 0
}

func buildCheckSummary(tb accounting.TrialBalance, balanced bool) CheckSummary {
	return CheckSummary{
		OK:                balanced,
		CompanyID:         tb.CompanyID,
		Entries:           tb.Entries,
		LineDebit:         tb.LineDebit.StringFixed(2),
		LineCredit:        tb.LineCredit.StringFixed(2),
		HeaderDebit:       tb.HeaderDebit.StringFixed(2),
		HeaderCredit:      tb.HeaderCredit.StringFixed(2),
		DebitBalances:     tb.DebitBalances.StringFixed(2),
		CreditBalances:    tb.CreditBalances.StringFixed(2),
		UnbalancedEntries: tb.UnbalancedEntries,
	}
}

func renderCheckHuman(out io.Writer, tb accounting.TrialBalance, balanced bool) {
	_, _ = fmt.Fprintf(out, "Trial balance for company %d (%d entries)\n", tb.CompanyID, tb.Entries)
	_, _ = fmt.Fprintf(out, " lines     Dr %s  Cr %s\n", tb.LineDebit.StringFixed(2), tb.LineCredit.StringFixed(2))
	_, _ = fmt.Fprintf(out, " headers   Dr %s  Cr %s\n", tb.HeaderDebit.StringFixed(2), tb.HeaderCredit.StringFixed(2))
	_, _ = fmt.Fprintf(out, " balances  Dr %s  Cr %s\n", tb.DebitBalances.StringFixed(2), tb.CreditBalances.StringFixed(2))
	if balanced {
		_, _ = fmt.Fprintln(out, "Ledger is balanced.")
		return
	}
	_, _ = fmt.Fprintf(out, "Ledger is OUT OF BALANCE (%d unbalanced entries).\n", tb.UnbalancedEntries)
}
