package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDepreciationRun charges one period of depreciation.
	TaskDepreciationRun = "depreciation:run"
	// TaskAmortizationRun recognises due months of prepaid expenses.
	TaskAmortizationRun = "prepaid:amortize"
	// TaskLedgerIntegrity verifies every company's trial balance.
	TaskLedgerIntegrity = "ledger:integrity"
)

// DepreciationRunPayload selects the company and period to depreciate. A zero
// CompanyID runs every company; an empty Period means the previous month.
type DepreciationRunPayload struct {
	CompanyID int64  `json:"company_id"`
	Period    string `json:"period"`
}

// NewDepreciationRunTask constructs the depreciation task.
func NewDepreciationRunTask(companyID int64, period string) (*asynq.Task, error) {
	data, err := json.Marshal(DepreciationRunPayload{CompanyID: companyID, Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDepreciationRun, data), nil
}

// NewAmortizationRunTask constructs the prepaid amortization task. It shares
// the depreciation payload: a zero CompanyID runs every company and an empty
// Period means the previous month.
func NewAmortizationRunTask(companyID int64, period string) (*asynq.Task, error) {
	data, err := json.Marshal(DepreciationRunPayload{CompanyID: companyID, Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAmortizationRun, data), nil
}

// LedgerIntegrityPayload optionally restricts the sweep to one company.
type LedgerIntegrityPayload struct {
	CompanyID int64 `json:"company_id,omitempty"`
}

// NewLedgerIntegrityTask constructs the integrity sweep task.
func NewLedgerIntegrityTask(companyID int64) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
