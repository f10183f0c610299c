package inventory

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// qtyEpsilon absorbs binary noise when comparing fractional quantities.
const qtyEpsilon = 1e-9

var validate = validator.New()

// Valuate runs the selected cost formula over movements and rounds the
// monetary results to cents.
func Valuate(movements []Movement, method Method) (Valuation, error) {
	var (
		out Valuation
		err error
	)
	switch method {
	case MethodFIFO:
		out, err = FIFO(movements)
	case MethodWeightedAverage:
		out, err = WeightedAverage(movements)
	default:
		return Valuation{}, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if err != nil {
		return Valuation{}, err
	}
	out.EndingInventory = money.Round2(out.EndingInventory)
	out.COGS = money.Round2(out.COGS)
	out.AverageCost = money.Round2(out.AverageCost)
	for i := range out.Card {
		out.Card[i].CostOut = money.Round2(out.Card[i].CostOut)
		out.Card[i].BalanceCost = money.Round2(out.Card[i].BalanceCost)
	}
	return out, nil
}

// FIFO consumes the oldest open cost layer first. Results are unrounded.
func FIFO(movements []Movement) (Valuation, error) {
	sorted, err := prepare(movements)
	if err != nil {
		return Valuation{}, err
	}
	var (
		batches []Batch
		cogs    float64
		card    = make([]StockCardEntry, 0, len(sorted))
	)
	for _, mv := range sorted {
		entry := StockCardEntry{Date: mv.Date, Type: mv.Type, Ref: mv.Ref}
		if mv.Type == MovementIn {
			batches = append(batches, Batch{Date: mv.Date, Quantity: mv.Quantity, UnitCost: mv.UnitCost})
			entry.QtyIn = mv.Quantity
			entry.UnitCost = mv.UnitCost
		} else {
			if available := batchQuantity(batches); mv.Quantity > available+qtyEpsilon {
				return Valuation{}, &InsufficientError{Date: mv.Date, Requested: mv.Quantity, Available: available}
			}
			remaining := mv.Quantity
			cost := 0.0
			for remaining > qtyEpsilon && len(batches) > 0 {
				oldest := &batches[0]
				if oldest.Quantity <= remaining+qtyEpsilon {
					cost += oldest.Quantity * oldest.UnitCost
					remaining -= oldest.Quantity
					batches = batches[1:]
					continue
				}
				cost += remaining * oldest.UnitCost
				oldest.Quantity -= remaining
				remaining = 0
			}
			cogs += cost
			entry.QtyOut = mv.Quantity
			entry.CostOut = cost
			entry.UnitCost = cost / mv.Quantity
		}
		entry.BalanceQty = batchQuantity(batches)
		entry.BalanceCost = batchValue(batches)
		card = append(card, entry)
	}
	out := Valuation{
		Method:          MethodFIFO,
		Label:           MethodFIFO.Label(),
		EndingInventory: batchValue(batches),
		COGS:            cogs,
		EndingQuantity:  batchQuantity(batches),
		Batches:         append([]Batch(nil), batches...),
		Card:            card,
	}
	if out.EndingQuantity > qtyEpsilon {
		out.AverageCost = out.EndingInventory / out.EndingQuantity
	}
	return out, nil
}

// WeightedAverage recomputes the average unit cost before every outbound
// movement. Results are unrounded.
func WeightedAverage(movements []Movement) (Valuation, error) {
	sorted, err := prepare(movements)
	if err != nil {
		return Valuation{}, err
	}
	var (
		totalQty, totalCost, cogs float64
		card                      = make([]StockCardEntry, 0, len(sorted))
	)
	for _, mv := range sorted {
		entry := StockCardEntry{Date: mv.Date, Type: mv.Type, Ref: mv.Ref}
		if mv.Type == MovementIn {
			totalCost += mv.Quantity * mv.UnitCost
			totalQty += mv.Quantity
			entry.QtyIn = mv.Quantity
			entry.UnitCost = mv.UnitCost
		} else {
			if mv.Quantity > totalQty+qtyEpsilon {
				return Valuation{}, &InsufficientError{Date: mv.Date, Requested: mv.Quantity, Available: totalQty}
			}
			avg := 0.0
			if totalQty > 0 {
				avg = totalCost / totalQty
			}
			cost := mv.Quantity * avg
			cogs += cost
			totalCost -= cost
			totalQty -= mv.Quantity
			if math.Abs(totalQty) < qtyEpsilon {
				totalQty, totalCost = 0, 0
			}
			entry.QtyOut = mv.Quantity
			entry.UnitCost = avg
			entry.CostOut = cost
		}
		entry.BalanceQty = totalQty
		entry.BalanceCost = totalCost
		card = append(card, entry)
	}
	out := Valuation{
		Method:          MethodWeightedAverage,
		Label:           MethodWeightedAverage.Label(),
		EndingInventory: totalCost,
		COGS:            cogs,
		EndingQuantity:  totalQty,
		Card:            card,
	}
	if totalQty > 0 {
		out.AverageCost = totalCost / totalQty
	}
	return out, nil
}

// ApplyNRV compares a cost value with net realisable value and reports the
// write-down required to carry inventory at the lower of the two.
func ApplyNRV(costValue, estimatedSellingPrice, estimatedCostsToSell float64) (NRVResult, error) {
	if !money.Finite(costValue, estimatedSellingPrice, estimatedCostsToSell) {
		return NRVResult{}, fmt.Errorf("%w: nrv inputs", ErrInvalidAmount)
	}
	nrv := estimatedSellingPrice - estimatedCostsToSell
	res := NRVResult{
		Cost:          money.Round2(costValue),
		NRV:           money.Round2(nrv),
		CarryingValue: money.Round2(costValue),
	}
	if nrv < costValue {
		res.UseNRV = true
		res.WriteDown = money.Round2(costValue - nrv)
		res.CarryingValue = money.Round2(nrv)
	}
	return res, nil
}

// prepare validates movements and returns a copy sorted by date. Movements
// on the same date keep their caller order.
func prepare(movements []Movement) ([]Movement, error) {
	for idx, mv := range movements {
		if !money.Finite(mv.Quantity, mv.UnitCost) {
			return nil, fmt.Errorf("%w: movement %d: %w", ErrInvalidMovement, idx, ErrInvalidAmount)
		}
		if err := validate.Struct(mv); err != nil {
			return nil, fmt.Errorf("%w: movement %d: %v", ErrInvalidMovement, idx, err)
		}
	}
	sorted := append([]Movement(nil), movements...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return sorted, nil
}

func batchQuantity(batches []Batch) float64 {
	total := 0.0
	for _, b := range batches {
		total += b.Quantity
	}
	return total
}

func batchValue(batches []Batch) float64 {
	total := 0.0
	for _, b := range batches {
		total += b.Value()
	}
	return total
}
