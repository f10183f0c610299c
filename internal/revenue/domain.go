package revenue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timing distinguishes IFRS 15 recognition patterns.
type Timing string

const (
	TimingPointInTime Timing = "POINT_IN_TIME"
	TimingOverTime    Timing = "OVER_TIME"
)

// Status tracks a contract lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ContractCriteria are the IFRS 15.9 conditions for a contract to exist.
type ContractCriteria struct {
	HasCommercialSubstance   bool
	PartiesApproved          bool
	RightsIdentifiable       bool
	PaymentTermsIdentifiable bool
	CollectionProbable       bool
}

// Assessment is the outcome of step 1.
type Assessment struct {
	IsValid bool
	Issues  []string
}

// PromisedGood is a good or service named in a contract. Timing defaults to
// point in time.
type PromisedGood struct {
	Description     string  `validate:"required,max=255"`
	IsDistinct      bool
	StandalonePrice float64 `validate:"gte=0"`
	Timing          Timing  `validate:"omitempty,oneof=POINT_IN_TIME OVER_TIME"`
}

// PerformanceObligation is a distinct promise carried by a contract.
type PerformanceObligation struct {
	ID                 string
	Description        string
	StandalonePrice    float64
	AllocatedPrice     float64
	Timing             Timing
	ControlTransferred bool
	PercentComplete    float64
	RecognizedAmount   float64
	Satisfied          bool
}

// PriceComponents are the inputs of step 3.
type PriceComponents struct {
	FixedConsideration             float64
	VariableConsideration          float64
	FinancingComponent             float64
	NonCashConsideration           float64
	ConsiderationPayableToCustomer float64
}

// PriceLine is one labelled component of the transaction price.
type PriceLine struct {
	Label  string
	Amount float64
}

// TransactionPrice is the outcome of step 3.
type TransactionPrice struct {
	Total     float64
	Breakdown []PriceLine
}

// Allocation is the outcome of step 4. Degenerate marks the equal-split
// fallback used when every standalone price is zero.
type Allocation struct {
	Obligations []PerformanceObligation
	Degenerate  bool
}

// Progress reports how far an obligation has been satisfied.
type Progress struct {
	ControlTransferred bool
	PercentComplete    float64
}

// Recognition is the outcome of step 5.
type Recognition struct {
	RecognizedAmount  float64
	IsFullyRecognized bool
	RemainingAmount   float64
}

// ObligationDetail is one row of a contract summary.
type ObligationDetail struct {
	ObligationID string
	Description  string
	Allocated    float64
	Recognized   float64
	Deferred     float64
}

// Summary aggregates recognition across a contract.
type Summary struct {
	TotalRecognized   float64
	DeferredRevenue   float64
	ContractAsset     float64
	ContractLiability float64
	Details           []ObligationDetail
}

// OverTimeCriteria are the IFRS 15.35 conditions for over-time recognition.
type OverTimeCriteria struct {
	CustomerReceivesBenefitAsPerformed bool
	AssetHasNoAlternativeUse           bool
	EnforceableRightToPayment          bool
}

// Contract is a customer contract after steps 1 to 4.
type Contract struct {
	ID               string
	CompanyID        int64
	CustomerRef      string
	ContractDate     time.Time
	TransactionPrice TransactionPrice
	Obligations      []PerformanceObligation
	Degenerate       bool
	Status           Status
}

var (
	// ErrInvalidContract indicates the IFRS 15.9 criteria are not met.
	ErrInvalidContract = errors.New("revenue: contract criteria not met")
	// ErrInvalidInput indicates malformed contract input.
	ErrInvalidInput = errors.New("revenue: invalid input")
	// ErrNoObligations indicates no distinct good was promised.
	ErrNoObligations = errors.New("revenue: contract has no distinct performance obligation")
	// ErrObligationNotFound indicates an unknown obligation id.
	ErrObligationNotFound = errors.New("revenue: performance obligation not found")
	// ErrObligationSatisfied indicates the obligation is already fully recognised.
	ErrObligationSatisfied = errors.New("revenue: performance obligation already satisfied")
	// ErrProgressRegression indicates a percent complete lower than already reported.
	ErrProgressRegression = errors.New("revenue: progress may not decrease")
	// ErrContractClosed indicates recognition on a completed or cancelled contract.
	ErrContractClosed = errors.New("revenue: contract is not active")
)

// InvalidContractError lists every failed criterion.
type InvalidContractError struct {
	Issues []string
}

func (e *InvalidContractError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidContract, strings.Join(e.Issues, "; "))
}

// Is reports whether target is ErrInvalidContract.
func (e *InvalidContractError) Is(target error) bool {
	return target == ErrInvalidContract
}
