package accounting

// Default account codes referenced by the posting templates.
const (
	CodeCash                    = "1000"
	CodeAccountsReceivable      = "1100"
	CodeContractAssets          = "1150"
	CodeInventory               = "1200"
	CodePrepaidExpenses         = "1300"
	CodeInputVAT                = "1310"
	CodeEquipment               = "1500"
	CodeVehicles                = "1510"
	CodeBuildings               = "1520"
	CodeAccumulatedDepreciation = "1590"
	CodeAccountsPayable         = "2000"
	CodeAccruedExpenses         = "2100"
	CodeVATPayable              = "2200"
	CodeContractLiabilities     = "2300"
	CodeBankLoan                = "2500"
	CodeCapital                 = "3000"
	CodeRetainedEarnings        = "3100"
	CodeSalesRevenue            = "4000"
	CodeSalesReturns            = "4050"
	CodeServiceRevenue          = "4100"
	CodeInterestIncome          = "4200"
	CodeCOGS                    = "5000"
	CodeInventoryWriteDown      = "5100"
	CodeSalaries                = "6000"
	CodeRent                    = "6100"
	CodeUtilities               = "6200"
	CodeMarketing               = "6300"
	CodeOfficeSupplies          = "6400"
	CodeDepreciationExpense     = "6500"
	CodeProfessionalFees        = "6600"
	CodeBankCharges             = "6700"
	CodeImpairmentLoss          = "6800"
	CodeInterestExpense         = "6900"
)

type chartRow struct {
	code     string
	name     string
	typ      AccountType
	category AccountCategory
}

var standardChart = []chartRow{
	{CodeCash, "Cash and Cash Equivalents", AccountTypeAsset, CategoryCurrentAsset},
	{CodeAccountsReceivable, "Accounts Receivable", AccountTypeAsset, CategoryCurrentAsset},
	{CodeContractAssets, "Contract Assets", AccountTypeAsset, CategoryCurrentAsset},
	{CodeInventory, "Inventory", AccountTypeAsset, CategoryCurrentAsset},
	{CodePrepaidExpenses, "Prepaid Expenses", AccountTypeAsset, CategoryCurrentAsset},
	{CodeInputVAT, "Input VAT Recoverable", AccountTypeAsset, CategoryCurrentAsset},
	{CodeEquipment, "Property, Plant and Equipment", AccountTypeAsset, CategoryFixedAsset},
	{CodeVehicles, "Vehicles", AccountTypeAsset, CategoryFixedAsset},
	{CodeBuildings, "Buildings", AccountTypeAsset, CategoryFixedAsset},
	// Contra asset: credits reduce the ASSET-signed balance.
	{CodeAccumulatedDepreciation, "Accumulated Depreciation", AccountTypeAsset, CategoryFixedAsset},
	{CodeAccountsPayable, "Accounts Payable", AccountTypeLiability, CategoryCurrentLiability},
	{CodeAccruedExpenses, "Accrued Expenses", AccountTypeLiability, CategoryCurrentLiability},
	{CodeVATPayable, "VAT Payable", AccountTypeLiability, CategoryCurrentLiability},
	{CodeContractLiabilities, "Contract Liabilities", AccountTypeLiability, CategoryCurrentLiability},
	{CodeBankLoan, "Bank Loan", AccountTypeLiability, CategoryLongTermLiability},
	{CodeCapital, "Share Capital", AccountTypeEquity, CategoryCapital},
	{CodeRetainedEarnings, "Retained Earnings", AccountTypeEquity, CategoryRetainedEarnings},
	{CodeSalesRevenue, "Sales Revenue", AccountTypeRevenue, CategoryOperatingRevenue},
	// Contra revenue: debits reduce the REVENUE-signed balance.
	{CodeSalesReturns, "Sales Returns and Allowances", AccountTypeRevenue, CategoryOperatingRevenue},
	{CodeServiceRevenue, "Service Revenue", AccountTypeRevenue, CategoryOperatingRevenue},
	{CodeInterestIncome, "Interest Income", AccountTypeRevenue, CategoryOtherIncome},
	{CodeCOGS, "Cost of Goods Sold", AccountTypeExpense, CategoryCostOfGoodsSold},
	{CodeInventoryWriteDown, "Inventory Write-down", AccountTypeExpense, CategoryCostOfGoodsSold},
	{CodeSalaries, "Salaries and Wages", AccountTypeExpense, CategoryOperatingExpense},
	{CodeRent, "Rent Expense", AccountTypeExpense, CategoryOperatingExpense},
	{CodeUtilities, "Utilities", AccountTypeExpense, CategoryOperatingExpense},
	{CodeMarketing, "Marketing and Advertising", AccountTypeExpense, CategoryOperatingExpense},
	{CodeOfficeSupplies, "Office Supplies", AccountTypeExpense, CategoryOperatingExpense},
	{CodeDepreciationExpense, "Depreciation Expense", AccountTypeExpense, CategoryOperatingExpense},
	{CodeProfessionalFees, "Professional Fees", AccountTypeExpense, CategoryOperatingExpense},
	{CodeBankCharges, "Bank Charges", AccountTypeExpense, CategoryOtherExpense},
	{CodeImpairmentLoss, "Impairment Loss", AccountTypeExpense, CategoryOtherExpense},
	{CodeInterestExpense, "Interest Expense", AccountTypeExpense, CategoryOtherExpense},
}

// StandardChart returns the default chart of accounts for a company, ordered
// by code.
func StandardChart(companyID int64) ([]Account, error) {
	out := make([]Account, 0, len(standardChart))
	for _, row := range standardChart {
		acc, err := NewAccount(companyID, row.code, row.name, row.typ, row.category)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}
