package shared

import "fmt"

// DepreciationLockKey builds the redis key guarding one depreciation run per
// company and period.
func DepreciationLockKey(companyID int64, period string) string {
	return fmt.Sprintf("ledger:company:%d:depreciation:%s:lock", companyID, period)
}

// AmortizationLockKey builds the redis key guarding one prepaid expense
// amortization run per company and period.
func AmortizationLockKey(companyID int64, period string) string {
	return fmt.Sprintf("ledger:company:%d:amortization:%s:lock", companyID, period)
}

// IntegrityLockKey builds the redis key guarding the GL integrity sweep.
func IntegrityLockKey() string {
	return "ledger:integrity:lock"
}
