package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
)

// Line is one account on a statement.
type Line struct {
	Code   string
	Name   string
	Amount decimal.Decimal
}

// Section groups statement lines under a caption.
type Section struct {
	Label string
	Lines []Line
	Total decimal.Decimal
}

func (s *Section) add(acc accounting.Account) {
	s.Lines = append(s.Lines, Line{Code: acc.Code, Name: acc.Name, Amount: acc.CurrentBalance})
	s.Total = s.Total.Add(acc.CurrentBalance)
}

func (s *Section) sort() {
	sortByCode(s.Lines, func(l Line) string { return l.Code })
}

// ProfitAndLoss is the statement of profit or loss by function of expense.
type ProfitAndLoss struct {
	Revenue          Section
	CostOfSales      Section
	GrossProfit      decimal.Decimal
	OperatingExpense Section
	OtherIncome      Section
	OtherExpense     Section
	NetIncome        decimal.Decimal
}

// BuildProfitAndLoss classifies revenue and expense accounts by category.
// Expense accounts without a category are treated as operating expenses.
func BuildProfitAndLoss(accounts []accounting.Account) ProfitAndLoss {
	pl := ProfitAndLoss{
		Revenue:          Section{Label: "Revenue"},
		CostOfSales:      Section{Label: "Cost of sales"},
		OperatingExpense: Section{Label: "Operating expenses"},
		OtherIncome:      Section{Label: "Other income"},
		OtherExpense:     Section{Label: "Other expenses"},
	}
	for _, acc := range accounts {
		switch acc.Type {
		case accounting.AccountTypeRevenue:
			if acc.Category == accounting.CategoryOtherIncome {
				pl.OtherIncome.add(acc)
			} else {
				pl.Revenue.add(acc)
			}
		case accounting.AccountTypeExpense:
			switch acc.Category {
			case accounting.CategoryCostOfGoodsSold:
				pl.CostOfSales.add(acc)
			case accounting.CategoryOtherExpense:
				pl.OtherExpense.add(acc)
			default:
				pl.OperatingExpense.add(acc)
			}
		}
	}
	for _, s := range []*Section{&pl.Revenue, &pl.CostOfSales, &pl.OperatingExpense, &pl.OtherIncome, &pl.OtherExpense} {
		s.sort()
	}
	pl.GrossProfit = pl.Revenue.Total.Sub(pl.CostOfSales.Total)
	pl.NetIncome = pl.GrossProfit.
		Sub(pl.OperatingExpense.Total).
		Add(pl.OtherIncome.Total).
		Sub(pl.OtherExpense.Total)
	return pl
}
