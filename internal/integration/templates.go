package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/inventory"
	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

var (
	// ErrMissingReference indicates a business event without its document id.
	ErrMissingReference = errors.New("integration: document reference required")
	// ErrInvalidAmount indicates a NaN or infinite document amount.
	ErrInvalidAmount = errors.New("integration: amount must be a finite number")
	// ErrInvalidReturn indicates a return without items or with a
	// non-positive quantity or negative price.
	ErrInvalidReturn = errors.New("integration: invalid return")
)

// SaleInvoice is an issued customer invoice. A nil Tax applies the flat VAT
// rate to Revenue.
type SaleInvoice struct {
	CompanyID int64
	InvoiceID string
	Date      time.Time
	Revenue   float64
	Tax       *float64
}

// Payment is cash received from a customer or paid to a supplier.
type Payment struct {
	CompanyID int64
	PaymentID string
	Date      time.Time
	Amount    float64
}

// PurchaseBill is a supplier bill for inventory.
type PurchaseBill struct {
	CompanyID     int64
	BillID        string
	Date          time.Time
	InventoryCost float64
	Tax           *float64
}

// Expense is a cash expense charged to AccountCode.
type Expense struct {
	CompanyID   int64
	ExpenseID   string
	Date        time.Time
	AccountCode string
	Amount      float64
	Description string
}

// POSSale is a cash sale at the counter with its cost of goods.
type POSSale struct {
	CompanyID   int64
	SaleID      string
	Date        time.Time
	Revenue     float64
	Tax         *float64
	CostOfGoods float64
}

// ContractBilling is an invoice raised on a customer contract before the
// related revenue is recognised.
type ContractBilling struct {
	CompanyID  int64
	ContractID string
	InvoiceID  string
	Date       time.Time
	Amount     float64
}

// InventoryIssue is a sale whose cost is derived from the movement history.
type InventoryIssue struct {
	CompanyID int64
	SaleID    string
	Date      time.Time
	Method    inventory.Method
	Movements []inventory.Movement
}

// SaleInvoice posts Dr receivables / Cr revenue / Cr VAT payable.
func (h *Hooks) SaleInvoice(ctx context.Context, in SaleInvoice) error {
	if in.InvoiceID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.Revenue, optional(in.Tax)); err != nil {
		return err
	}
	revenue := money.Round2(in.Revenue)
	tax := h.tax(in.Tax, revenue)
	total := money.Round2(revenue + tax)
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("Sales Invoice %s", in.InvoiceID),
		Source:      accounting.SourceRef{Type: accounting.SourceInvoice, ID: in.InvoiceID},
		Lines: lines(
			debit(h.chart.Receivables, "Trade receivables", total),
			credit(h.chart.SalesRevenue, "Sales revenue", revenue),
			credit(h.chart.VATPayable, "VAT payable", tax),
		),
	})
}

// PaymentReceived posts Dr cash / Cr receivables.
func (h *Hooks) PaymentReceived(ctx context.Context, in Payment) error {
	if in.PaymentID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.Amount); err != nil {
		return err
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("Payment Received %s", in.PaymentID),
		Source:      accounting.SourceRef{Type: accounting.SourcePaymentReceived, ID: in.PaymentID},
		Lines: lines(
			debit(h.chart.Cash, "Cash", in.Amount),
			credit(h.chart.Receivables, "Trade receivables", in.Amount),
		),
	})
}

// Purchase posts Dr inventory / Dr input VAT / Cr payables.
func (h *Hooks) Purchase(ctx context.Context, in PurchaseBill) error {
	if in.BillID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.InventoryCost, optional(in.Tax)); err != nil {
		return err
	}
	cost := money.Round2(in.InventoryCost)
	tax := h.tax(in.Tax, cost)
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("Purchase Bill %s", in.BillID),
		Source:      accounting.SourceRef{Type: accounting.SourceBill, ID: in.BillID},
		Lines: lines(
			debit(h.chart.Inventory, "Inventory", cost),
			debit(h.chart.InputVAT, "Input VAT recoverable", tax),
			credit(h.chart.Payables, "Trade payables", money.Round2(cost+tax)),
		),
	})
}

// COGS posts Dr cost of goods sold / Cr inventory for one sale.
func (h *Hooks) COGS(ctx context.Context, companyID int64, saleID string, date time.Time, cost float64) error {
	if saleID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(cost); err != nil {
		return err
	}
	if money.Round2(cost) <= 0 {
		return nil
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   companyID,
		Date:        date,
		Description: fmt.Sprintf("Cost of Sales - %s", saleID),
		Source:      accounting.SourceRef{Type: accounting.SourceCOGS, ID: saleID},
		Lines: lines(
			debit(h.chart.COGS, "Cost of goods sold", cost),
			credit(h.chart.Inventory, "Inventory", cost),
		),
	})
}

// PaymentMade posts Dr payables / Cr cash.
func (h *Hooks) PaymentMade(ctx context.Context, in Payment) error {
	if in.PaymentID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.Amount); err != nil {
		return err
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("Payment Made %s", in.PaymentID),
		Source:      accounting.SourceRef{Type: accounting.SourcePaymentMade, ID: in.PaymentID},
		Lines: lines(
			debit(h.chart.Payables, "Trade payables", in.Amount),
			credit(h.chart.Cash, "Cash", in.Amount),
		),
	})
}

// Expense posts Dr the expense account / Cr cash.
func (h *Hooks) Expense(ctx context.Context, in Expense) error {
	if in.ExpenseID == "" || in.AccountCode == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.Amount); err != nil {
		return err
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("Expense - %s", in.Description),
		Source:      accounting.SourceRef{Type: accounting.SourceExpense, ID: in.ExpenseID},
		Lines: lines(
			debit(in.AccountCode, in.Description, in.Amount),
			credit(h.chart.Cash, "Cash", in.Amount),
		),
	})
}

// POSSale posts the cash sale and then its cost of goods as a second entry.
func (h *Hooks) POSSale(ctx context.Context, in POSSale) error {
	if in.SaleID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.Revenue, optional(in.Tax), in.CostOfGoods); err != nil {
		return err
	}
	revenue := money.Round2(in.Revenue)
	tax := h.tax(in.Tax, revenue)
	err := h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("POS Sale %s", in.SaleID),
		Source:      accounting.SourceRef{Type: accounting.SourcePOSSale, ID: in.SaleID},
		Lines: lines(
			debit(h.chart.Cash, "Cash", money.Round2(revenue+tax)),
			credit(h.chart.SalesRevenue, "Sales revenue", revenue),
			credit(h.chart.VATPayable, "VAT payable", tax),
		),
	})
	if err != nil {
		return err
	}
	return h.COGS(ctx, in.CompanyID, in.SaleID, in.Date, in.CostOfGoods)
}

// ContractBilling posts Dr receivables / Cr contract liabilities.
func (h *Hooks) ContractBilling(ctx context.Context, in ContractBilling) error {
	if in.InvoiceID == "" || in.ContractID == "" {
		return ErrMissingReference
	}
	if err := checkAmounts(in.Amount); err != nil {
		return err
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   in.CompanyID,
		Date:        in.Date,
		Description: fmt.Sprintf("Contract %s billing %s", in.ContractID, in.InvoiceID),
		Source:      accounting.SourceRef{Type: accounting.SourceContractBilling, ID: in.InvoiceID},
		Lines: lines(
			debit(h.chart.Receivables, "Trade receivables", in.Amount),
			credit(h.chart.ContractLiabilities, "Contract liability", in.Amount),
		),
	})
}

// InventoryIssue values the movements and posts the resulting cost of sales.
func (h *Hooks) InventoryIssue(ctx context.Context, in InventoryIssue) (inventory.Valuation, error) {
	if in.SaleID == "" {
		return inventory.Valuation{}, ErrMissingReference
	}
	valuation, err := inventory.Valuate(in.Movements, in.Method)
	if err != nil {
		return inventory.Valuation{}, err
	}
	if err := h.COGS(ctx, in.CompanyID, in.SaleID, in.Date, valuation.COGS); err != nil {
		return inventory.Valuation{}, err
	}
	return valuation, nil
}
