package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/accounting/sqlite"
	"github.com/odyssey-erp/ifrs-ledger/internal/assets"
	"github.com/odyssey-erp/ifrs-ledger/internal/revenue"
)

type assetStore struct {
	assets []assets.FixedAsset
}

func (s *assetStore) ListDepreciable(ctx context.Context, companyID int64, period string) ([]assets.FixedAsset, error) {
	return s.assets, nil
}

func (s *assetStore) UsageForPeriod(ctx context.Context, companyID int64, period string) (map[int64]float64, error) {
	return nil, nil
}

func (s *assetStore) SaveDepreciation(ctx context.Context, asset assets.FixedAsset, period string) error {
	for i := range s.assets {
		if s.assets[i].ID == asset.ID {
			s.assets[i] = asset
		}
	}
	return nil
}

func openLedger(t *testing.T) *accounting.Service {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc := accounting.NewService(store, nil, nil)
	_, err = svc.SeedChart(context.Background(), 1)
	require.NoError(t, err)
	return svc
}

func balance(t *testing.T, svc *accounting.Service, code string) string {
	t.Helper()
	accounts, err := svc.ListAccounts(context.Background(), 1)
	require.NoError(t, err)
	for _, acc := range accounts {
		if acc.Code == code {
			return acc.CurrentBalance.StringFixed(2)
		}
	}
	t.Fatalf("account %s not found", code)
	return ""
}

func TestBusinessCycleKeepsLedgerBalanced(t *testing.T) {
	ctx := context.Background()
	ledger := openLedger(t)
	hooks := NewHooks(ledger, WithVATRate(0.1))

	require.NoError(t, hooks.Purchase(ctx, PurchaseBill{CompanyID: 1, BillID: "BILL-1", InventoryCost: 1000}))
	require.NoError(t, hooks.POSSale(ctx, POSSale{CompanyID: 1, SaleID: "POS-1", Revenue: 600, CostOfGoods: 400}))
	require.NoError(t, hooks.POSSale(ctx, POSSale{CompanyID: 1, SaleID: "POS-1", Revenue: 600, CostOfGoods: 400}), "replayed sale")
	require.NoError(t, hooks.PaymentMade(ctx, Payment{CompanyID: 1, PaymentID: "PAY-1", Amount: 1100}))

	truck := assets.FixedAsset{ID: 1, CompanyID: 1, Name: "Truck", AcquisitionCost: 60000, UsefulLifeYears: 5, Method: assets.MethodStraightLine}
	depreciation := assets.NewService(&assetStore{assets: []assets.FixedAsset{truck}}, hooks, nil, assets.ServiceConfig{}, nil)
	summary, err := depreciation.RunPeriod(ctx, 1, "2025-12")
	require.NoError(t, err)
	require.Equal(t, 1000.0, summary.Total, "one month of a five year life")

	contracts := revenue.NewService(hooks, nil)
	contract, err := revenue.NewContract(revenue.ContractInput{
		ID:          "C-1",
		CompanyID:   1,
		CustomerRef: "CUST-1",
		Criteria: revenue.ContractCriteria{
			HasCommercialSubstance:   true,
			PartiesApproved:          true,
			RightsIdentifiable:       true,
			PaymentTermsIdentifiable: true,
			CollectionProbable:       true,
		},
		Goods: []revenue.PromisedGood{{Description: "Implementation", IsDistinct: true, StandalonePrice: 900, Timing: revenue.TimingOverTime}},
		Price: revenue.PriceComponents{FixedConsideration: 900},
	})
	require.NoError(t, err)
	require.NoError(t, hooks.ContractBilling(ctx, ContractBilling{CompanyID: 1, ContractID: "C-1", InvoiceID: "INV-C1", Amount: 900, Date: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)}))
	_, err = contracts.RecordProgress(ctx, contract, "PO-1", revenue.Progress{PercentComplete: 40})
	require.NoError(t, err)

	require.Equal(t, "-440.00", balance(t, ledger, accounting.CodeCash))
	require.Equal(t, "600.00", balance(t, ledger, accounting.CodeInventory))
	require.Equal(t, "0.00", balance(t, ledger, accounting.CodeAccountsPayable))
	require.Equal(t, "400.00", balance(t, ledger, accounting.CodeCOGS))
	require.Equal(t, "-1000.00", balance(t, ledger, accounting.CodeAccumulatedDepreciation))
	require.Equal(t, "540.00", balance(t, ledger, accounting.CodeContractLiabilities))
	require.Equal(t, "360.00", balance(t, ledger, accounting.CodeServiceRevenue))

	tb, err := ledger.CheckIntegrity(ctx, 1)
	require.NoError(t, err)
	require.True(t, tb.Balanced())
}
