package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// ReturnItem is one returned line. A nil TaxRate applies the flat VAT rate.
type ReturnItem struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	TaxRate     *float64
}

// SalesReturn is a credit note for goods sent back by a customer. Refunded
// returns settle in cash instead of reducing the receivable. RestockedCost is
// the carrying cost of goods put back into stock.
type SalesReturn struct {
	CompanyID     int64
	ReturnID      string
	InvoiceID     string
	Date          time.Time
	Reason        string
	Items         []ReturnItem
	Refunded      bool
	RestockedCost float64
}

// PurchaseReturn is a debit note for goods sent back to a supplier.
type PurchaseReturn struct {
	CompanyID int64
	ReturnID  string
	BillID    string
	Date      time.Time
	Reason    string
	Items     []ReturnItem
}

// ReturnTotals are the net, tax and gross amounts of a return.
type ReturnTotals struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

func (h *Hooks) returnTotals(items []ReturnItem) (ReturnTotals, error) {
	if len(items) == 0 {
		return ReturnTotals{}, fmt.Errorf("%w: no items", ErrInvalidReturn)
	}
	nets := make([]float64, 0, len(items))
	taxes := make([]float64, 0, len(items))
	for i, item := range items {
		if err := checkAmounts(item.Quantity, item.UnitPrice, optional(item.TaxRate)); err != nil {
			return ReturnTotals{}, err
		}
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return ReturnTotals{}, fmt.Errorf("%w: item %d", ErrInvalidReturn, i)
		}
		rate := h.vatRate
		if item.TaxRate != nil {
			rate = *item.TaxRate
		}
		net := money.Round2(item.Quantity * item.UnitPrice)
		nets = append(nets, net)
		taxes = append(taxes, money.Round2(net*rate))
	}
	subtotal := money.Round2(money.Sum(nets...))
	tax := money.Round2(money.Sum(taxes...))
	return ReturnTotals{Subtotal: subtotal, Tax: tax, Total: money.Round2(subtotal + tax)}, nil
}

// SalesReturn posts Dr sales returns / Dr VAT payable / Cr receivables (or
// cash when refunded), then Dr inventory / Cr cost of goods sold for any
// restocked cost.
func (h *Hooks) SalesReturn(ctx context.Context, in SalesReturn) (ReturnTotals, error) {
	if in.ReturnID == "" {
		return ReturnTotals{}, ErrMissingReference
	}
	if err := checkAmounts(in.RestockedCost); err != nil {
		return ReturnTotals{}, err
	}
	totals, err := h.returnTotals(in.Items)
	if err != nil {
		return ReturnTotals{}, err
	}
	settle, settleMemo := h.chart.Receivables, "Trade receivables"
	if in.Refunded {
		settle, settleMemo = h.chart.Cash, "Cash refund"
	}
	desc := fmt.Sprintf("Sales Return %s", in.ReturnID)
	if in.InvoiceID != "" {
		desc += " against " + in.InvoiceID
	}
	err = h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: desc,
		Source:      accounting.SourceRef{Type: accounting.SourceSalesReturn, ID: in.ReturnID},
		Lines: lines(
			debit(h.chart.SalesReturns, "Sales returns", totals.Subtotal),
			debit(h.chart.VATPayable, "VAT reversal", totals.Tax),
			credit(settle, settleMemo, totals.Total),
		),
	})
	if err != nil {
		return ReturnTotals{}, err
	}
	if cost := money.Round2(in.RestockedCost); cost > 0 {
		err = h.post(ctx, accounting.PostingInput{
			CompanyID:   in.CompanyID,
			Date:        in.Date,
			Description: fmt.Sprintf("Restocked goods - %s", in.ReturnID),
			Source:      accounting.SourceRef{Type: accounting.SourceSalesReturn, ID: derivedSourceID("SRCOST", in.CompanyID, in.ReturnID)},
			Lines: lines(
				debit(h.chart.Inventory, "Inventory", cost),
				credit(h.chart.COGS, "Cost of goods sold", cost),
			),
		})
		if err != nil {
			return ReturnTotals{}, err
		}
	}
	return totals, nil
}

// PurchaseReturn posts Dr payables / Cr inventory / Cr input VAT.
func (h *Hooks) PurchaseReturn(ctx context.Context, in PurchaseReturn) (ReturnTotals, error) {
	if in.ReturnID == "" {
		return ReturnTotals{}, ErrMissingReference
	}
	totals, err := h.returnTotals(in.Items)
	if err != nil {
		return ReturnTotals{}, err
	}
	desc := fmt.Sprintf("Purchase Return %s", in.ReturnID)
	if in.BillID != "" {
		desc += " against " + in.BillID
	}
	err = h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: desc,
		Source:      accounting.SourceRef{Type: accounting.SourcePurchaseReturn, ID: in.ReturnID},
		Lines: lines(
			debit(h.chart.Payables, "Trade payables", totals.Total),
			credit(h.chart.Inventory, "Inventory", totals.Subtotal),
			credit(h.chart.InputVAT, "Input VAT reversal", totals.Tax),
		),
	})
	if err != nil {
		return ReturnTotals{}, err
	}
	return totals, nil
}
