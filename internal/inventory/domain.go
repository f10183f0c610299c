package inventory

import (
	"errors"
	"fmt"
	"time"
)

// MovementType enumerates supported inventory movements.
type MovementType string

const (
	// MovementIn represents an inbound movement that creates a cost layer.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement that consumes cost.
	MovementOut MovementType = "OUT"
)

// Method selects the cost formula. LIFO is not permitted under IAS 2.
type Method string

const (
	MethodFIFO            Method = "FIFO"
	MethodWeightedAverage Method = "WEIGHTED_AVERAGE"
)

// Label returns the human readable name used in reports.
func (m Method) Label() string {
	switch m {
	case MethodFIFO:
		return "FIFO (First In, First Out)"
	case MethodWeightedAverage:
		return "Weighted Average"
	}
	return string(m)
}

// Movement is one dated stock movement. UnitCost is ignored for OUT
// movements; the cost formula determines it.
type Movement struct {
	Date     time.Time
	Type     MovementType `validate:"oneof=IN OUT"`
	Quantity float64      `validate:"gt=0"`
	UnitCost float64      `validate:"gte=0"`
	Ref      string
}

// Batch is an open FIFO cost layer.
type Batch struct {
	Date     time.Time
	Quantity float64
	UnitCost float64
}

// Value returns the carrying value of the layer.
func (b Batch) Value() float64 {
	return b.Quantity * b.UnitCost
}

// StockCardEntry describes one line of the running stock card produced while
// valuing movements.
type StockCardEntry struct {
	Date        time.Time
	Type        MovementType
	Ref         string
	QtyIn       float64
	QtyOut      float64
	UnitCost    float64
	CostOut     float64
	BalanceQty  float64
	BalanceCost float64
}

// Valuation is the result of running a cost formula over a movement stream.
// Monetary fields are rounded to cents; Batches keep unrounded unit costs.
type Valuation struct {
	Method          Method
	Label           string
	EndingInventory float64
	COGS            float64
	EndingQuantity  float64
	AverageCost     float64
	Batches         []Batch
	Card            []StockCardEntry
}

// NRVResult reports the lower-of-cost-or-NRV test for a cost value.
type NRVResult struct {
	Cost          float64
	NRV           float64
	WriteDown     float64
	CarryingValue float64
	UseNRV        bool
}

var (
	// ErrInvalidMovement indicates a movement failed validation.
	ErrInvalidMovement = errors.New("inventory: invalid movement")
	// ErrInvalidAmount indicates a NaN or infinite quantity or amount.
	ErrInvalidAmount = errors.New("inventory: amount must be a finite number")
	// ErrInsufficientInventory indicates an OUT movement exceeds stock on hand.
	ErrInsufficientInventory = errors.New("inventory: insufficient inventory")
	// ErrUnknownMethod indicates an unsupported cost formula.
	ErrUnknownMethod = errors.New("inventory: unknown valuation method")
)

// InsufficientError carries the shortfall of an over-sale.
type InsufficientError struct {
	Date      time.Time
	Requested float64
	Available float64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("inventory: insufficient inventory on %s: requested %g, available %g",
		e.Date.Format("2006-01-02"), e.Requested, e.Available)
}

// Is matches ErrInsufficientInventory.
func (e *InsufficientError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
