package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// FinancialPosition is the statement of financial position. Profit not yet
// closed to retained earnings is shown as a separate equity line.
type FinancialPosition struct {
	CurrentAssets          Section
	NonCurrentAssets       Section
	CurrentLiabilities     Section
	NonCurrentLiabilities  Section
	Equity                 Section
	CurrentPeriodProfit    decimal.Decimal
	TotalAssets            decimal.Decimal
	TotalEquity            decimal.Decimal
	TotalLiabilitiesEquity decimal.Decimal
}

// Balanced reports whether assets equal liabilities plus equity.
func (fp FinancialPosition) Balanced() bool {
	return money.Balanced(fp.TotalAssets, fp.TotalLiabilitiesEquity)
}

// BuildFinancialPosition classifies balance sheet accounts and carries the
// period result from the profit and loss accounts into equity.
func BuildFinancialPosition(accounts []accounting.Account) FinancialPosition {
	fp := FinancialPosition{
		CurrentAssets:         Section{Label: "Current assets"},
		NonCurrentAssets:      Section{Label: "Non-current assets"},
		CurrentLiabilities:    Section{Label: "Current liabilities"},
		NonCurrentLiabilities: Section{Label: "Non-current liabilities"},
		Equity:                Section{Label: "Equity"},
	}
	for _, acc := range accounts {
		switch acc.Type {
		case accounting.AccountTypeAsset:
			if acc.Category == accounting.CategoryFixedAsset {
				fp.NonCurrentAssets.add(acc)
			} else {
				fp.CurrentAssets.add(acc)
			}
		case accounting.AccountTypeLiability:
			if acc.Category == accounting.CategoryLongTermLiability {
				fp.NonCurrentLiabilities.add(acc)
			} else {
				fp.CurrentLiabilities.add(acc)
			}
		case accounting.AccountTypeEquity:
			fp.Equity.add(acc)
		}
	}
	for _, s := range []*Section{&fp.CurrentAssets, &fp.NonCurrentAssets, &fp.CurrentLiabilities, &fp.NonCurrentLiabilities, &fp.Equity} {
		s.sort()
	}
	fp.CurrentPeriodProfit = BuildProfitAndLoss(accounts).NetIncome
	fp.TotalAssets = fp.CurrentAssets.Total.Add(fp.NonCurrentAssets.Total)
	fp.TotalEquity = fp.Equity.Total.Add(fp.CurrentPeriodProfit)
	fp.TotalLiabilitiesEquity = fp.CurrentLiabilities.Total.
		Add(fp.NonCurrentLiabilities.Total).
		Add(fp.TotalEquity)
	return fp
}
