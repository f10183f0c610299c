package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/odyssey-erp/ifrs-ledger/internal/assets"
	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// AssetReader loads one fixed asset.
type AssetReader interface {
	Get(ctx context.Context, companyID, assetID int64) (assets.FixedAsset, error)
}

// AssetsCLI projects depreciation for registered assets.
type AssetsCLI struct {
	assets   AssetReader
	currency string
}

// NewAssetsCLI constructs the helper. currency defaults to USD.
func NewAssetsCLI(reader AssetReader, currency string) (*AssetsCLI, error) {
	if reader == nil {
		return nil, errors.New("assets cli: reader not configured")
	}
	if currency == "" {
		currency = "USD"
	}
	return &AssetsCLI{assets: reader, currency: currency}, nil
}

// ScheduleOptions defines available flags for the schedule command.
type ScheduleOptions struct {
	CompanyID      int64
	AssetID        int64
	Periods        int
	DecliningRate  float64
	UnitsPerPeriod float64
	JSONOutput     bool
	Stdout         io.Writer
	Stderr         io.Writer
}

// ScheduleLine is one JSON row of the schedule command.
type ScheduleLine struct {
	Period       int     `json:"period"`
	Opening      float64 `json:"opening"`
	Depreciation float64 `json:"depreciation"`
	Accumulated  float64 `json:"accumulated"`
	Closing      float64 `json:"closing"`
}

// ScheduleCommand prints the projected depreciation schedule of one asset.
func (c *AssetsCLI) ScheduleCommand(ctx context.Context, opts ScheduleOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.CompanyID <= 0 || opts.AssetID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "schedule: --company and --asset are required and must be positive")
		return 1
	}
	if opts.Periods <= 0 {
		opts.Periods = 12
	}
	asset, err := c.assets.Get(ctx, opts.CompanyID, opts.AssetID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "schedule: %v\n", err)
		return 1
	}
	var params assets.ScheduleParams
	if opts.DecliningRate > 0 {
		params.DecliningRate = &opts.DecliningRate
	} else if asset.DecliningRate != nil {
		params.DecliningRate = asset.DecliningRate
	}
	if opts.UnitsPerPeriod > 0 {
		params.UnitsPerPeriod = &opts.UnitsPerPeriod
	}
	rows, err := assets.GenerateSchedule(asset, opts.Periods, params)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "schedule: %v\n", err)
		return 1
	}

	if opts.JSONOutput {
		lines := make([]ScheduleLine, len(rows))
		for i, r := range rows {
			lines[i] = ScheduleLine{
				Period:       r.Period,
				Opening:      r.OpeningBalance,
				Depreciation: r.Depreciation,
				Accumulated:  r.AccumulatedDepreciation,
				Closing:      r.ClosingBalance,
			}
		}
		if err := json.NewEncoder(opts.Stdout).Encode(lines); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "schedule: encode json: %v\n", err)
			return 1
		}
		return 0
	}

	_, _ = fmt.Fprintf(opts.Stdout, "Depreciation schedule for %s (%s)\n", asset.Name, asset.Method)
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "period\topening\tcharge\taccumulated\tclosing\t")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", r.Period,
			money.Format(r.OpeningBalance, c.currency),
			money.Format(r.Depreciation, c.currency),
			money.Format(r.AccumulatedDepreciation, c.currency),
			money.Format(r.ClosingBalance, c.currency),
		)
	}
	_ = tw.Flush()
	return 0
}
