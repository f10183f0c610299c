package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/ifrs-ledger/cmd/ledgerctl/cli"
	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/app"
	"github.com/odyssey-erp/ifrs-ledger/internal/assets"
	"github.com/odyssey-erp/ifrs-ledger/internal/platform/db"
	"github.com/odyssey-erp/ifrs-ledger/jobs"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  check       --company N [--json]
              verify the trial balance
  statements  --company N [--json]
              profit or loss and financial position
  schedule    --company N --asset N [--periods N] [--rate R] [--units U] [--json]
              project an asset's depreciation
  loan        --principal P --annual-rate R --term N [--frequency F] [--start YYYY-MM-DD] [--json]
              project a loan's amortization schedule
  trigger     --job NAME [--company N] [--period YYYY-MM]
              enqueue depreciation:run, prepaid:amortize or ledger:integrity
  queue       show queue statistics
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg)

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	companyID := fs.Int64("company", 0, "company id")
	assetID := fs.Int64("asset", 0, "fixed asset id")
	periods := fs.Int("periods", 12, "schedule length")
	rate := fs.Float64("rate", 0, "declining balance rate override")
	units := fs.Float64("units", 0, "units produced per period")
	period := fs.String("period", "", "period as YYYY-MM")
	job := fs.String("job", "", "task name: "+jobs.TaskDepreciationRun+", "+jobs.TaskAmortizationRun+" or "+jobs.TaskLedgerIntegrity)
	principal := fs.Float64("principal", 0, "loan principal")
	annualRate := fs.Float64("annual-rate", 0, "loan interest rate as a decimal, 0.12 for 12%")
	term := fs.Int("term", 0, "loan term in months")
	frequency := fs.String("frequency", "MONTHLY", "MONTHLY, QUARTERLY, SEMI_ANNUALLY or ANNUALLY")
	start := fs.String("start", "", "loan start date as YYYY-MM-DD")
	asJSON := fs.Bool("json", false, "emit JSON")
	if err := fs.Parse(rest); err != nil {
		return 2
	}

	switch cmd {
	case "loan":
		return cli.LoanCommand(cli.LoanOptions{
			Principal:  *principal,
			AnnualRate: *annualRate,
			TermMonths: *term,
			Frequency:  *frequency,
			Start:      *start,
			Currency:   cfg.Currency,
			JSONOutput: *asJSON,
			Stdout:     stdout,
			Stderr:     stderr,
		})
	case "check", "statements", "schedule":
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		ledger := accounting.NewService(accounting.NewRepository(pool), nil, nil)
		if cmd == "statements" {
			return cli.StatementsCommand(ctx, ledger, cli.StatementsOptions{CompanyID: *companyID, JSONOutput: *asJSON, Stdout: stdout, Stderr: stderr})
		}
		if cmd == "check" {
			c, err := cli.NewLedgerCLI(ledger)
			if err != nil {
				_, _ = fmt.Fprintln(stderr, err)
				return 1
			}
			return c.CheckCommand(ctx, cli.CheckOptions{CompanyID: *companyID, JSONOutput: *asJSON, Stdout: stdout, Stderr: stderr})
		}
		c, err := cli.NewAssetsCLI(assets.NewRepository(pool), cfg.Currency)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		return c.ScheduleCommand(ctx, cli.ScheduleOptions{
			CompanyID:      *companyID,
			AssetID:        *assetID,
			Periods:        *periods,
			DecliningRate:  *rate,
			UnitsPerPeriod: *units,
			JSONOutput:     *asJSON,
			Stdout:         stdout,
			Stderr:         stderr,
		})
	case "trigger", "queue":
		c, err := cli.NewJobsCLI(cfg.RedisAddr)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		defer func() { _ = c.Close() }()
		if cmd == "queue" {
			stats, err := c.InspectQueue(ctx)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "queue: %v\n", err)
				return 1
			}
			_, _ = fmt.Fprintf(stdout, "%s: pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
			return 0
		}
		info, err := c.Trigger(ctx, cli.TriggerOptions{Name: *job, CompanyID: *companyID, Period: *period})
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s (%s)\n", info.Type, info.ID)
		return 0
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}
