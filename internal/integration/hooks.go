package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/assets"
	"github.com/odyssey-erp/ifrs-ledger/internal/inventory"
	"github.com/odyssey-erp/ifrs-ledger/internal/money"
	"github.com/odyssey-erp/ifrs-ledger/internal/prepaid"
	"github.com/odyssey-erp/ifrs-ledger/internal/revenue"
)

// Ledger exposes journal posting operations required by integrations.
type Ledger interface {
	PostJournal(ctx context.Context, input accounting.PostingInput) (accounting.JournalEntry, error)
}

// Chart maps posting roles to account codes.
type Chart struct {
	Cash                    string
	Receivables             string
	ContractAssets          string
	Inventory               string
	PrepaidExpenses         string
	InputVAT                string
	AccumulatedDepreciation string
	Payables                string
	AccruedExpenses         string
	VATPayable              string
	ContractLiabilities     string
	BankLoan                string
	SalesRevenue            string
	SalesReturns            string
	ServiceRevenue          string
	COGS                    string
	InventoryWriteDown      string
	DepreciationExpense     string
	ImpairmentLoss          string
	InterestExpense         string
}

// DefaultChart maps roles onto the standard chart of accounts.
func DefaultChart() Chart {
	return Chart{
		Cash:                    accounting.CodeCash,
		Receivables:             accounting.CodeAccountsReceivable,
		ContractAssets:          accounting.CodeContractAssets,
		Inventory:               accounting.CodeInventory,
		PrepaidExpenses:         accounting.CodePrepaidExpenses,
		InputVAT:                accounting.CodeInputVAT,
		AccumulatedDepreciation: accounting.CodeAccumulatedDepreciation,
		Payables:                accounting.CodeAccountsPayable,
		AccruedExpenses:         accounting.CodeAccruedExpenses,
		VATPayable:              accounting.CodeVATPayable,
		ContractLiabilities:     accounting.CodeContractLiabilities,
		BankLoan:                accounting.CodeBankLoan,
		SalesRevenue:            accounting.CodeSalesRevenue,
		SalesReturns:            accounting.CodeSalesReturns,
		ServiceRevenue:          accounting.CodeServiceRevenue,
		COGS:                    accounting.CodeCOGS,
		InventoryWriteDown:      accounting.CodeInventoryWriteDown,
		DepreciationExpense:     accounting.CodeDepreciationExpense,
		ImpairmentLoss:          accounting.CodeImpairmentLoss,
		InterestExpense:         accounting.CodeInterestExpense,
	}
}

// Hooks turns business and engine events into balanced journal entries.
type Hooks struct {
	ledger   Ledger
	chart    Chart
	vatRate  float64
	currency string
	logger   *slog.Logger
}

// Option customises Hooks.
type Option func(*Hooks)

// WithChart overrides the default account mapping.
func WithChart(chart Chart) Option {
	return func(h *Hooks) { h.chart = chart }
}

// WithVATRate sets the flat rate applied when a template receives no tax amount.
func WithVATRate(rate float64) Option {
	return func(h *Hooks) { h.vatRate = rate }
}

// WithCurrency sets the ISO code used in journal memos.
func WithCurrency(code string) Option {
	return func(h *Hooks) { h.currency = code }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hooks) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, opts ...Option) *Hooks {
	h := &Hooks{ledger: ledger, chart: DefaultChart(), currency: "USD", logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hooks) post(ctx context.Context, input accounting.PostingInput) error {
	if input.Source.ID == "" {
		return errors.New("integration: source id required")
	}
	_, err := h.ledger.PostJournal(ctx, input)
	if err != nil {
		if errors.Is(err, accounting.ErrSourceAlreadyLinked) {
			h.logger.DebugContext(ctx, "journal already posted", slog.String("source", input.Source.String()))
			return nil
		}
		return fmt.Errorf("integration: post %s: %w", input.Source.String(), err)
	}
	return nil
}

// tax returns the explicit amount or the flat VAT on base.
func (h *Hooks) tax(explicit *float64, base float64) float64 {
	if explicit != nil {
		return money.Round2(*explicit)
	}
	return money.Round2(base * h.vatRate)
}

func (h *Hooks) ready() bool {
	return h != nil && h.ledger != nil
}

// HandleDepreciationComputed posts Dr depreciation expense / Cr accumulated
// depreciation.
func (h *Hooks) HandleDepreciationComputed(ctx context.Context, evt assets.DepreciationComputedEvent) error {
	if !h.ready() || evt.Amount <= 0 {
		return nil
	}
	desc := fmt.Sprintf("Depreciation - %s (%s)", evt.AssetName, evt.Period)
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   evt.CompanyID,
		Date:        evt.PostedAt,
		Description: desc,
		Source:      accounting.SourceRef{Type: accounting.SourceDepreciation, ID: derivedSourceID("DEP", evt.CompanyID, evt.AssetID, evt.Period)},
		Lines: lines(
			debit(h.chart.DepreciationExpense, "Depreciation expense", evt.Amount),
			credit(h.chart.AccumulatedDepreciation, "Accumulated depreciation", evt.Amount),
		),
	})
}

// HandleImpairmentRecognised posts Dr impairment loss / Cr accumulated
// depreciation and impairment.
func (h *Hooks) HandleImpairmentRecognised(ctx context.Context, evt assets.ImpairmentRecognisedEvent) error {
	if !h.ready() || evt.Loss <= 0 {
		return nil
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   evt.CompanyID,
		Date:        evt.PostedAt,
		Description: fmt.Sprintf("Impairment - %s", evt.AssetName),
		Source:      accounting.SourceRef{Type: accounting.SourceImpairment, ID: derivedSourceID("IMP", evt.CompanyID, evt.AssetID, evt.PostedAt.Format("2006-01-02"))},
		Lines: lines(
			debit(h.chart.ImpairmentLoss, "Impairment loss", evt.Loss),
			credit(h.chart.AccumulatedDepreciation, "Accumulated impairment", evt.Loss),
		),
	})
}

// HandleCostOfSales posts the period cost of sales computed by the costing
// engine.
func (h *Hooks) HandleCostOfSales(ctx context.Context, evt inventory.CostOfSalesEvent) error {
	if !h.ready() || evt.COGS <= 0 {
		return nil
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   evt.CompanyID,
		Date:        evt.PostedAt,
		Description: fmt.Sprintf("Cost of sales - %s (%s, %s)", evt.ItemRef, evt.Period, evt.Method.Label()),
		Source:      accounting.SourceRef{Type: accounting.SourceCOGS, ID: derivedSourceID("COGS", evt.CompanyID, evt.ItemRef, evt.Period)},
		Lines: lines(
			debit(h.chart.COGS, "Cost of goods sold", evt.COGS),
			credit(h.chart.Inventory, "Inventory", evt.COGS),
		),
	})
}

// HandleWriteDown posts an NRV write-down.
func (h *Hooks) HandleWriteDown(ctx context.Context, evt inventory.WriteDownEvent) error {
	if !h.ready() || evt.WriteDown <= 0 {
		return nil
	}
	desc := fmt.Sprintf("NRV write-down - %s (%s): cost %s, NRV %s", evt.ItemRef, evt.Period,
		money.Format(evt.Cost, h.currency), money.Format(evt.NRV, h.currency))
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   evt.CompanyID,
		Date:        evt.PostedAt,
		Description: desc,
		Source:      accounting.SourceRef{Type: accounting.SourceInventoryWriteDown, ID: derivedSourceID("NRV", evt.CompanyID, evt.ItemRef, evt.Period)},
		Lines: lines(
			debit(h.chart.InventoryWriteDown, "Inventory write-down", evt.WriteDown),
			credit(h.chart.Inventory, "Inventory", evt.WriteDown),
		),
	})
}

// HandleRevenueRecognised posts Dr contract liabilities / Cr service revenue
// for the incremental amount.
func (h *Hooks) HandleRevenueRecognised(ctx context.Context, evt revenue.RevenueRecognisedEvent) error {
	if !h.ready() || evt.Amount <= 0 {
		return nil
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   evt.CompanyID,
		Date:        evt.PostedAt,
		Description: fmt.Sprintf("Revenue recognised - contract %s %s %s", evt.ContractID, evt.ObligationID, evt.Description),
		Source: accounting.SourceRef{
			Type: accounting.SourceRevenueRecognition,
			ID:   derivedSourceID("REV", evt.CompanyID, evt.ContractID, evt.ObligationID, fmt.Sprintf("%.2f", evt.RecognizedToDate)),
		},
		Lines: lines(
			debit(h.chart.ContractLiabilities, "Contract liability", evt.Amount),
			credit(h.chart.ServiceRevenue, "Revenue from contracts", evt.Amount),
		),
	})
}

// HandleContractPosition posts a contract asset for revenue recognised ahead
// of billing.
func (h *Hooks) HandleContractPosition(ctx context.Context, evt revenue.ContractPositionEvent) error {
	if !h.ready() || evt.ContractAsset <= 0 {
		return nil
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   evt.CompanyID,
		Date:        evt.PostedAt,
		Description: fmt.Sprintf("Contract asset - contract %s", evt.ContractID),
		Source: accounting.SourceRef{
			Type: accounting.SourceRevenueRecognition,
			ID:   derivedSourceID("CA", evt.CompanyID, evt.ContractID, fmt.Sprintf("%.2f", evt.ContractAsset)),
		},
		Lines: lines(
			debit(h.chart.ContractAssets, "Contract asset", evt.ContractAsset),
			credit(h.chart.ServiceRevenue, "Revenue from contracts", evt.ContractAsset),
		),
	})
}

// HandleAmortization posts Dr the expense account / Cr prepaid expenses for
// one month of a prepayment.
func (h *Hooks) HandleAmortization(ctx context.Context, evt prepaid.AmortizationEvent) error {
	if !h.ready() || evt.Amount <= 0 {
		return nil
	}
	return h.post(ctx, accounting.PostingInput{
		CompanyID:   evt.CompanyID,
		Date:        evt.PostedAt,
		Description: fmt.Sprintf("Amortization - %s (%s)", evt.Description, evt.Period),
		Source:      accounting.SourceRef{Type: accounting.SourceAmortization, ID: derivedSourceID("AMORT", evt.CompanyID, evt.ExpenseID, evt.Period)},
		Lines: lines(
			debit(evt.ExpenseAccount, evt.Description, evt.Amount),
			credit(h.chart.PrepaidExpenses, "Prepaid expenses", evt.Amount),
		),
	})
}

var (
	_ assets.IntegrationHandler    = (*Hooks)(nil)
	_ inventory.IntegrationHandler = (*Hooks)(nil)
	_ revenue.IntegrationHandler   = (*Hooks)(nil)
	_ prepaid.IntegrationHandler   = (*Hooks)(nil)
)
