package assets

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// Method enumerates IAS 16 depreciation methods.
type Method string

const (
	MethodStraightLine      Method = "STRAIGHT_LINE"
	MethodDecliningBalance  Method = "DECLINING_BALANCE"
	MethodUnitsOfProduction Method = "UNITS_OF_PRODUCTION"
)

// DefaultDecliningRate applies when no rate is supplied for declining balance.
const DefaultDecliningRate = 0.20

// FixedAsset is an item of property, plant and equipment. UsefulLifeYears is
// required for straight-line and UsefulLifeUnits for units of production.
type FixedAsset struct {
	ID                      int64
	CompanyID               int64
	Name                    string    `validate:"required,max=255"`
	AcquisitionDate         time.Time `validate:"required"`
	AcquisitionCost         float64   `validate:"gte=0"`
	ResidualValue           float64   `validate:"gte=0"`
	UsefulLifeYears         int       `validate:"gte=0"`
	UsefulLifeUnits         float64   `validate:"gte=0"`
	Method                  Method    `validate:"oneof=STRAIGHT_LINE DECLINING_BALANCE UNITS_OF_PRODUCTION"`
	DecliningRate           *float64
	AccumulatedDepreciation float64 `validate:"gte=0"`
	UnitsProducedToDate     float64 `validate:"gte=0"`
	LastDepreciatedPeriod   string
}

// DepreciableAmount is cost less residual value.
func (a FixedAsset) DepreciableAmount() float64 {
	return a.AcquisitionCost - a.ResidualValue
}

// CarryingAmount is cost less accumulated depreciation.
func (a FixedAsset) CarryingAmount() float64 {
	return money.Round2(a.AcquisitionCost - a.AccumulatedDepreciation)
}

// RemainingDepreciable is what may still be charged before the residual floor.
func (a FixedAsset) RemainingDepreciable() float64 {
	return money.Round2(a.DepreciableAmount() - a.AccumulatedDepreciation)
}

// IsFullyDepreciated reports whether the carrying amount reached the residual.
func (a FixedAsset) IsFullyDepreciated() bool {
	return a.CarryingAmount() <= a.ResidualValue
}

var validate = validator.New()

// NewFixedAsset validates an asset and returns it unchanged when it is
// consistent.
func NewFixedAsset(a FixedAsset) (FixedAsset, error) {
	if err := validate.Struct(a); err != nil {
		return FixedAsset{}, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	if !a.finite() {
		return FixedAsset{}, fmt.Errorf("%w: %w", ErrInvalidAsset, ErrInvalidAmount)
	}
	if a.ResidualValue > a.AcquisitionCost {
		return FixedAsset{}, fmt.Errorf("%w: residual value exceeds cost", ErrInvalidAsset)
	}
	if a.AccumulatedDepreciation > a.DepreciableAmount()+money.Tolerance/2 {
		return FixedAsset{}, fmt.Errorf("%w: accumulated depreciation exceeds depreciable amount", ErrInvalidAsset)
	}
	if a.DecliningRate != nil {
		if err := checkRate(*a.DecliningRate); err != nil {
			return FixedAsset{}, err
		}
	}
	return a, nil
}

func (a FixedAsset) finite() bool {
	return money.Finite(a.AcquisitionCost, a.ResidualValue, a.UsefulLifeUnits, a.AccumulatedDepreciation, a.UnitsProducedToDate)
}

// Params carries the per-period inputs some methods need. PeriodsPerYear
// splits the annual straight-line and declining balance charge across
// shorter periods; zero or one means a period is a year.
type Params struct {
	PeriodUnits    *float64
	DecliningRate  *float64
	PeriodsPerYear int
}

// Result is the outcome of one period's depreciation.
type Result struct {
	PeriodDepreciation         float64
	NewAccumulatedDepreciation float64
	CarryingAmount             float64
	IsFullyDepreciated         bool
}

// ScheduleParams drives GenerateSchedule. UnitsPerPeriod is required for
// units of production.
type ScheduleParams struct {
	DecliningRate  *float64
	UnitsPerPeriod *float64
}

// ScheduleRow is one period of a depreciation schedule.
type ScheduleRow struct {
	Period                  int
	OpeningBalance          float64
	Depreciation            float64
	AccumulatedDepreciation float64
	ClosingBalance          float64
}

// ImpairmentResult is the outcome of an IAS 36 impairment test.
type ImpairmentResult struct {
	IsImpaired        bool
	ImpairmentLoss    float64
	NewCarryingAmount float64
}

var (
	// ErrMissingUsefulLife indicates straight-line without a useful life.
	ErrMissingUsefulLife = errors.New("assets: useful life required for straight-line")
	// ErrMissingUnitsParameter indicates units of production without total or period units.
	ErrMissingUnitsParameter = errors.New("assets: units required for units-of-production")
	// ErrInvalidAsset indicates an asset failed validation.
	ErrInvalidAsset = errors.New("assets: invalid fixed asset")
	// ErrInvalidRate indicates a declining balance rate outside (0, 1].
	ErrInvalidRate = errors.New("assets: declining balance rate must be in (0, 1]")
	// ErrUnknownMethod indicates an unsupported depreciation method.
	ErrUnknownMethod = errors.New("assets: unknown depreciation method")
	// ErrInvalidPeriod indicates a period not in YYYY-MM form.
	ErrInvalidPeriod = errors.New("assets: period must be YYYY-MM")
	// ErrInvalidAmount indicates a NaN or infinite amount.
	ErrInvalidAmount = errors.New("assets: amount must be a finite number")
	// ErrRunInProgress indicates another worker holds the period lock.
	ErrRunInProgress = errors.New("assets: depreciation run already in progress")
)

func checkRate(rate float64) error {
	if math.IsNaN(rate) || rate <= 0 || rate > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidRate, rate)
	}
	return nil
}

// ParsePeriod validates a YYYY-MM period and returns its first day.
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	return t, nil
}
