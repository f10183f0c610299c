package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/accounting/reports"
)

// AccountLister lists a company's accounts with their balances.
type AccountLister interface {
	ListAccounts(ctx context.Context, companyID int64) ([]accounting.Account, error)
}

// StatementsOptions defines available flags for the statements command.
type StatementsOptions struct {
	CompanyID  int64
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StatementsSummary is the JSON output of the statements command.
type StatementsSummary struct {
	Balanced          bool   `json:"balanced"`
	Revenue           string `json:"revenue"`
	GrossProfit       string `json:"gross_profit"`
	NetIncome         string `json:"net_income"`
	TotalAssets       string `json:"total_assets"`
	TotalLiabilities  string `json:"total_liabilities"`
	TotalEquity       string `json:"total_equity"`
	TrialBalanceDebit string `json:"trial_balance_debit"`
}

// StatementsCommand prints the profit and loss and financial position. It
// exits 10 when the statement of financial position does not balance.
func StatementsCommand(ctx context.Context, lister AccountLister, opts StatementsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.CompanyID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "statements: --company is required and must be positive")
		return 1
	}
	accounts, err := lister.ListAccounts(ctx, opts.CompanyID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "statements: %v\n", err)
		return 1
	}
	tb := reports.BuildTrialBalance(accounts)
	pl := reports.BuildProfitAndLoss(accounts)
	fp := reports.BuildFinancialPosition(accounts)
	balanced := fp.Balanced() && tb.Balanced()

	if opts.JSONOutput {
		summary := StatementsSummary{
			Balanced:          balanced,
			Revenue:           pl.Revenue.Total.StringFixed(2),
			GrossProfit:       pl.GrossProfit.StringFixed(2),
			NetIncome:         pl.NetIncome.StringFixed(2),
			TotalAssets:       fp.TotalAssets.StringFixed(2),
			TotalLiabilities:  fp.TotalLiabilitiesEquity.Sub(fp.TotalEquity).StringFixed(2),
			TotalEquity:       fp.TotalEquity.StringFixed(2),
			TrialBalanceDebit: tb.TotalDebit.StringFixed(2),
		}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "statements: encode json: %v\n", err)
			return 1
		}
	} else {
		renderStatements(opts.Stdout, opts.CompanyID, pl, fp)
	}
	if !balanced {
		return 10
	}
	return 0
}

func renderStatements(out io.Writer, companyID int64, pl reports.ProfitAndLoss, fp reports.FinancialPosition) {
	_, _ = fmt.Fprintf(out, "Statement of profit or loss, company %d\n", companyID)
	for _, s := range []reports.Section{pl.Revenue, pl.CostOfSales} {
		renderSection(out, s)
	}
	_, _ = fmt.Fprintf(out, "Gross profit %s\n", pl.GrossProfit.StringFixed(2))
	for _, s := range []reports.Section{pl.OperatingExpense, pl.OtherIncome, pl.OtherExpense} {
		renderSection(out, s)
	}
	_, _ = fmt.Fprintf(out, "Profit for the period %s\n\n", pl.NetIncome.StringFixed(2))

	_, _ = fmt.Fprintf(out, "Statement of financial position, company %d\n", companyID)
	for _, s := range []reports.Section{fp.NonCurrentAssets, fp.CurrentAssets} {
		renderSection(out, s)
	}
	_, _ = fmt.Fprintf(out, "Total assets %s\n", fp.TotalAssets.StringFixed(2))
	renderSection(out, fp.Equity)
	_, _ = fmt.Fprintf(out, "  Profit for the period %s\n", fp.CurrentPeriodProfit.StringFixed(2))
	for _, s := range []reports.Section{fp.NonCurrentLiabilities, fp.CurrentLiabilities} {
		renderSection(out, s)
	}
	_, _ = fmt.Fprintf(out, "Total equity and liabilities %s\n", fp.TotalLiabilitiesEquity.StringFixed(2))
}

func renderSection(out io.Writer, s reports.Section) {
	if len(s.Lines) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "%s\n", s.Label)
	for _, l := range s.Lines {
		_, _ = fmt.Fprintf(out, "  %s %-28s %s\n", l.Code, l.Name, l.Amount.StringFixed(2))
	}
	_, _ = fmt.Fprintf(out, "  total %s\n", s.Total.StringFixed(2))
}
