package assets

import (
	"fmt"
	"math"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// Calculate computes one period's depreciation for the asset. Whatever the
// method, the charge is rounded to cents and then capped so the carrying
// amount never falls below the residual value.
func Calculate(asset FixedAsset, params Params) (Result, error) {
	if !asset.finite() {
		return Result{}, fmt.Errorf("%w: asset %d", ErrInvalidAmount, asset.ID)
	}
	perYear := max(params.PeriodsPerYear, 1)
	var dep float64
	switch asset.Method {
	case MethodStraightLine:
		if asset.UsefulLifeYears <= 0 {
			return Result{}, ErrMissingUsefulLife
		}
		dep = straightLine(asset.DepreciableAmount(), asset.AccumulatedDepreciation, asset.UsefulLifeYears*perYear)
	case MethodDecliningBalance:
		rate, err := resolveRate(params.DecliningRate, asset.DecliningRate)
		if err != nil {
			return Result{}, err
		}
		dep = decliningBalance(asset.AcquisitionCost, asset.AccumulatedDepreciation, asset.ResidualValue, rate/float64(perYear))
	case MethodUnitsOfProduction:
		if asset.UsefulLifeUnits <= 0 || params.PeriodUnits == nil {
			return Result{}, ErrMissingUnitsParameter
		}
		if !money.Finite(*params.PeriodUnits) {
			return Result{}, fmt.Errorf("%w: period units", ErrInvalidAmount)
		}
		if *params.PeriodUnits < 0 {
			return Result{}, fmt.Errorf("%w: negative period units", ErrMissingUnitsParameter)
		}
		dep = unitsOfProduction(asset.AcquisitionCost, asset.ResidualValue, asset.UsefulLifeUnits, *params.PeriodUnits)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownMethod, asset.Method)
	}

	dep = money.Round2(dep)
	if ceiling := asset.RemainingDepreciable(); dep > ceiling {
		dep = money.Max(0, ceiling)
	}
	accumulated := money.Round2(asset.AccumulatedDepreciation + dep)
	carrying := money.Round2(asset.AcquisitionCost - accumulated)
	return Result{
		PeriodDepreciation:         dep,
		NewAccumulatedDepreciation: accumulated,
		CarryingAmount:             carrying,
		IsFullyDepreciated:         carrying <= asset.ResidualValue,
	}, nil
}

// Apply returns the asset advanced by one period's result.
func Apply(asset FixedAsset, res Result, periodUnits *float64) FixedAsset {
	asset.AccumulatedDepreciation = res.NewAccumulatedDepreciation
	if periodUnits != nil {
		asset.UnitsProducedToDate += *periodUnits
	}
	return asset
}

// GenerateSchedule projects up to periods rows of depreciation. The row in
// which the asset becomes fully depreciated is included and ends the
// schedule, as does a period that would charge nothing.
func GenerateSchedule(asset FixedAsset, periods int, params ScheduleParams) ([]ScheduleRow, error) {
	if periods <= 0 {
		return nil, nil
	}
	if asset.Method == MethodUnitsOfProduction && params.UnitsPerPeriod == nil {
		return nil, ErrMissingUnitsParameter
	}
	rows := make([]ScheduleRow, 0, periods)
	current := asset
	for i := 1; i <= periods; i++ {
		if current.IsFullyDepreciated() {
			break
		}
		opening := current.CarryingAmount()
		res, err := Calculate(current, Params{PeriodUnits: params.UnitsPerPeriod, DecliningRate: params.DecliningRate})
		if err != nil {
			return nil, err
		}
		if res.PeriodDepreciation <= 0 {
			break
		}
		rows = append(rows, ScheduleRow{
			Period:                  i,
			OpeningBalance:          opening,
			Depreciation:            res.PeriodDepreciation,
			AccumulatedDepreciation: res.NewAccumulatedDepreciation,
			ClosingBalance:          res.CarryingAmount,
		})
		current = Apply(current, res, params.UnitsPerPeriod)
		if res.IsFullyDepreciated {
			break
		}
	}
	return rows, nil
}

// CheckImpairment compares carrying amount with recoverable amount, the
// higher of fair value less costs of disposal and value in use.
func CheckImpairment(carryingAmount, recoverableAmount float64) (ImpairmentResult, error) {
	if !money.Finite(carryingAmount, recoverableAmount) {
		return ImpairmentResult{}, fmt.Errorf("%w: impairment test", ErrInvalidAmount)
	}
	if carryingAmount > recoverableAmount {
		return ImpairmentResult{
			IsImpaired:        true,
			ImpairmentLoss:    money.Round2(carryingAmount - recoverableAmount),
			NewCarryingAmount: money.Round2(recoverableAmount),
		}, nil
	}
	return ImpairmentResult{NewCarryingAmount: money.Round2(carryingAmount)}, nil
}

// straightLine charges depreciable/periods. When accumulated depreciation
// sits on the schedule, the charge is the cents that move it to the next
// scheduled position, so rounding never drifts across periods.
func straightLine(depreciable, accumulated float64, periods int) float64 {
	if depreciable <= 0 {
		return 0
	}
	perPeriod := depreciable / float64(periods)
	elapsed := math.Round(accumulated / perPeriod)
	dep := money.Round2(perPeriod*(elapsed+1)) - accumulated
	if math.Abs(dep-perPeriod) >= money.Tolerance {
		return perPeriod
	}
	return dep
}

func decliningBalance(cost, accumulated, residual, rate float64) float64 {
	carrying := cost - accumulated
	dep := carrying * rate
	if carrying-dep < residual {
		return money.Max(0, carrying-residual)
	}
	return dep
}

func unitsOfProduction(cost, residual, totalUnits, periodUnits float64) float64 {
	return (cost - residual) / totalUnits * periodUnits
}

func resolveRate(candidates ...*float64) (float64, error) {
	for _, c := range candidates {
		if c != nil {
			if err := checkRate(*c); err != nil {
				return 0, err
			}
			return *c, nil
		}
	}
	return DefaultDecliningRate, nil
}
