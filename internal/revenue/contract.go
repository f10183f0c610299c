package revenue

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

var validate = validator.New()

// ContractInput carries everything needed to set up a contract.
type ContractInput struct {
	ID           string `validate:"required,max=64"`
	CompanyID    int64  `validate:"gt=0"`
	CustomerRef  string `validate:"required"`
	ContractDate time.Time
	Criteria     ContractCriteria
	Goods        []PromisedGood `validate:"required,min=1,dive"`
	Price        PriceComponents
}

// NewContract runs steps 1 to 4 and returns an active contract.
func NewContract(in ContractInput) (*Contract, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if a := IdentifyContract(in.Criteria); !a.IsValid {
		return nil, &InvalidContractError{Issues: a.Issues}
	}
	obligations := IdentifyObligations(in.Goods)
	if len(obligations) == 0 {
		return nil, ErrNoObligations
	}
	price, err := DetermineTransactionPrice(in.Price)
	if err != nil {
		return nil, err
	}
	if price.Total < 0 {
		return nil, fmt.Errorf("%w: negative transaction price %.2f", ErrInvalidInput, price.Total)
	}
	alloc, err := Allocate(price.Total, obligations)
	if err != nil {
		return nil, err
	}
	return &Contract{
		ID:               in.ID,
		CompanyID:        in.CompanyID,
		CustomerRef:      in.CustomerRef,
		ContractDate:     in.ContractDate,
		TransactionPrice: price,
		Obligations:      alloc.Obligations,
		Degenerate:       alloc.Degenerate,
		Status:           StatusActive,
	}, nil
}

// Obligation returns the obligation with the given id.
func (c *Contract) Obligation(id string) (PerformanceObligation, bool) {
	for _, o := range c.Obligations {
		if o.ID == id {
			return o, true
		}
	}
	return PerformanceObligation{}, false
}

// Recognize records progress on one obligation and returns the revenue to
// recognise now, the difference from what was recognised to date. A satisfied
// obligation accepts no more progress and over-time progress never decreases.
// The contract completes once every obligation is satisfied.
func (c *Contract) Recognize(obligationID string, p Progress) (float64, error) {
	if c.Status != StatusActive {
		return 0, fmt.Errorf("%w: %s", ErrContractClosed, c.Status)
	}
	idx := -1
	for i := range c.Obligations {
		if c.Obligations[i].ID == obligationID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrObligationNotFound, obligationID)
	}
	o := &c.Obligations[idx]
	if o.Satisfied {
		return 0, fmt.Errorf("%w: %s", ErrObligationSatisfied, obligationID)
	}
	if !money.Finite(p.PercentComplete) {
		return 0, fmt.Errorf("%w: %s: percent complete must be finite", ErrInvalidInput, obligationID)
	}
	if o.Timing == TimingOverTime {
		p.PercentComplete = clampPercent(p.PercentComplete)
		if p.PercentComplete < o.PercentComplete {
			return 0, fmt.Errorf("%w: %s at %.2f%%, got %.2f%%", ErrProgressRegression, obligationID, o.PercentComplete, p.PercentComplete)
		}
	}

	res, err := Recognize(*o, p)
	if err != nil {
		return 0, err
	}
	incremental := money.Round2(res.RecognizedAmount - o.RecognizedAmount)
	o.RecognizedAmount = res.RecognizedAmount
	o.Satisfied = res.IsFullyRecognized
	if o.Timing == TimingOverTime {
		o.PercentComplete = p.PercentComplete
	} else {
		o.ControlTransferred = p.ControlTransferred
	}

	if c.allSatisfied() {
		c.Status = StatusCompleted
	}
	return incremental, nil
}

// Cancel stops further recognition.
func (c *Contract) Cancel() {
	if c.Status != StatusCompleted {
		c.Status = StatusCancelled
	}
}

// Summary aggregates recognition across the contract.
func (c *Contract) Summary() (Summary, error) {
	return ProcessContract(*c)
}

func (c *Contract) allSatisfied() bool {
	for _, o := range c.Obligations {
		if !o.Satisfied {
			return false
		}
	}
	return true
}
