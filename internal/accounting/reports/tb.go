// Package reports builds financial statements from posted account balances.
package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// TrialBalanceAccount is one account shown on its debit or credit side.
type TrialBalanceAccount struct {
	Code   string
	Name   string
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// TrialBalanceGroup aggregates accounts sharing a type.
type TrialBalanceGroup struct {
	Type     accounting.AccountType
	Accounts []TrialBalanceAccount
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// TrialBalance lists every account balance by type.
type TrialBalance struct {
	Groups      []TrialBalanceGroup
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether the listed debits equal the listed credits.
func (tb TrialBalance) Balanced() bool {
	return money.Balanced(tb.TotalDebit, tb.TotalCredit)
}

var typeOrder = []accounting.AccountType{
	accounting.AccountTypeAsset,
	accounting.AccountTypeLiability,
	accounting.AccountTypeEquity,
	accounting.AccountTypeRevenue,
	accounting.AccountTypeExpense,
}

// BuildTrialBalance places each balance on its normal side; a negative
// balance, such as a contra account, moves to the opposite side.
func BuildTrialBalance(accounts []accounting.Account) TrialBalance {
	byType := make(map[accounting.AccountType]*TrialBalanceGroup)
	for _, acc := range accounts {
		grp, ok := byType[acc.Type]
		if !ok {
			grp = &TrialBalanceGroup{Type: acc.Type}
			byType[acc.Type] = grp
		}
		row := TrialBalanceAccount{Code: acc.Code, Name: acc.Name}
		debitSide := acc.NormalBalance() == accounting.NormalDebit
		if acc.CurrentBalance.IsNegative() {
			debitSide = !debitSide
		}
		if debitSide {
			row.Debit = acc.CurrentBalance.Abs()
		} else {
			row.Credit = acc.CurrentBalance.Abs()
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	var result TrialBalance
	for _, typ := range typeOrder {
		grp, ok := byType[typ]
		if !ok {
			continue
		}
		sortByCode(grp.Accounts, func(a TrialBalanceAccount) string { return a.Code })
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}

func sortByCode[T any](rows []T, code func(T) string) {
	sort.Slice(rows, func(i, j int) bool { return code(rows[i]) < code(rows[j]) })
}
