package revenue

import (
	"fmt"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

// IdentifyContract checks the IFRS 15.9 criteria and reports every failure.
func IdentifyContract(c ContractCriteria) Assessment {
	var issues []string
	if !c.PartiesApproved {
		issues = append(issues, "contract must be approved by all parties")
	}
	if !c.RightsIdentifiable {
		issues = append(issues, "each party's rights must be identifiable")
	}
	if !c.PaymentTermsIdentifiable {
		issues = append(issues, "payment terms must be identifiable")
	}
	if !c.HasCommercialSubstance {
		issues = append(issues, "contract must have commercial substance")
	}
	if !c.CollectionProbable {
		issues = append(issues, "collection of consideration must be probable")
	}
	return Assessment{IsValid: len(issues) == 0, Issues: issues}
}

// IdentifyObligations keeps the distinct goods, numbering them PO-1, PO-2 and
// so on in input order.
func IdentifyObligations(goods []PromisedGood) []PerformanceObligation {
	var out []PerformanceObligation
	for _, g := range goods {
		if !g.IsDistinct {
			continue
		}
		timing := g.Timing
		if timing == "" {
			timing = TimingPointInTime
		}
		out = append(out, PerformanceObligation{
			ID:              fmt.Sprintf("PO-%d", len(out)+1),
			Description:     g.Description,
			StandalonePrice: g.StandalonePrice,
			Timing:          timing,
		})
	}
	return out
}

// DetermineTransactionPrice sums the consideration components. Consideration
// payable to the customer reduces the price.
func DetermineTransactionPrice(p PriceComponents) (TransactionPrice, error) {
	if !money.Finite(p.FixedConsideration, p.VariableConsideration, p.FinancingComponent,
		p.NonCashConsideration, p.ConsiderationPayableToCustomer) {
		return TransactionPrice{}, fmt.Errorf("%w: consideration must be finite", ErrInvalidInput)
	}
	breakdown := []PriceLine{
		{Label: "fixed_consideration", Amount: p.FixedConsideration},
		{Label: "variable_consideration", Amount: p.VariableConsideration},
		{Label: "significant_financing_component", Amount: p.FinancingComponent},
		{Label: "non_cash_consideration", Amount: p.NonCashConsideration},
		{Label: "consideration_payable_to_customer", Amount: -p.ConsiderationPayableToCustomer},
	}
	amounts := make([]float64, len(breakdown))
	for i, line := range breakdown {
		amounts[i] = line.Amount
	}
	return TransactionPrice{Total: money.Round2(money.Sum(amounts...)), Breakdown: breakdown}, nil
}

// Allocate spreads the transaction price over obligations in proportion to
// standalone selling prices. Each share is rounded to cents and the
// obligation with the largest standalone price (the last one on a tie) takes
// the rounding residual, so the shares always add up to the price and an
// obligation priced at zero receives nothing. When every standalone price is
// zero the price is split equally and the last obligation takes the residual.
func Allocate(transactionPrice float64, obligations []PerformanceObligation) (Allocation, error) {
	out := Allocation{Obligations: append([]PerformanceObligation(nil), obligations...)}
	n := len(out.Obligations)
	if n == 0 {
		return out, nil
	}
	if !money.Finite(transactionPrice) {
		return Allocation{}, fmt.Errorf("%w: transaction price must be finite", ErrInvalidInput)
	}
	prices := make([]float64, n)
	residual := 0
	for i, o := range out.Obligations {
		if !money.Finite(o.StandalonePrice) {
			return Allocation{}, fmt.Errorf("%w: standalone price of %s must be finite", ErrInvalidInput, o.ID)
		}
		prices[i] = o.StandalonePrice
		if o.StandalonePrice >= prices[residual] {
			residual = i
		}
	}
	totalSSP := money.Sum(prices...)
	out.Degenerate = totalSSP <= 0
	if out.Degenerate {
		residual = n - 1
	}

	allocated := make([]float64, 0, n-1)
	for i := range out.Obligations {
		if i == residual {
			continue
		}
		var share float64
		if out.Degenerate {
			share = transactionPrice / float64(n)
		} else {
			share = out.Obligations[i].StandalonePrice / totalSSP * transactionPrice
		}
		out.Obligations[i].AllocatedPrice = money.Round2(share)
		allocated = append(allocated, out.Obligations[i].AllocatedPrice)
	}
	out.Obligations[residual].AllocatedPrice = money.Round2(transactionPrice - money.Sum(allocated...))
	return out, nil
}

// Recognize computes revenue for an obligation given its progress. Point in
// time obligations recognise all or nothing; over-time obligations recognise
// in proportion to percent complete, clamped to 0..100.
func Recognize(o PerformanceObligation, p Progress) (Recognition, error) {
	if !money.Finite(o.AllocatedPrice, p.PercentComplete) {
		return Recognition{}, fmt.Errorf("%w: %s: progress and price must be finite", ErrInvalidInput, o.ID)
	}
	var res Recognition
	switch o.Timing {
	case TimingOverTime:
		pct := clampPercent(p.PercentComplete)
		res.RecognizedAmount = money.Round2(o.AllocatedPrice * pct / 100)
		res.IsFullyRecognized = pct >= 100
	default:
		if p.ControlTransferred {
			res.RecognizedAmount = money.Round2(o.AllocatedPrice)
		}
		res.IsFullyRecognized = p.ControlTransferred
	}
	res.RemainingAmount = money.Round2(o.AllocatedPrice - res.RecognizedAmount)
	return res, nil
}

// ProcessContract aggregates recognition over every obligation using the
// progress recorded on each.
func ProcessContract(c Contract) (Summary, error) {
	var (
		recognized = make([]float64, 0, len(c.Obligations))
		deferred   = make([]float64, 0, len(c.Obligations))
		details    = make([]ObligationDetail, 0, len(c.Obligations))
	)
	for _, o := range c.Obligations {
		res, err := Recognize(o, Progress{ControlTransferred: o.ControlTransferred, PercentComplete: o.PercentComplete})
		if err != nil {
			return Summary{}, err
		}
		recognized = append(recognized, res.RecognizedAmount)
		deferred = append(deferred, res.RemainingAmount)
		details = append(details, ObligationDetail{
			ObligationID: o.ID,
			Description:  o.Description,
			Allocated:    o.AllocatedPrice,
			Recognized:   res.RecognizedAmount,
			Deferred:     res.RemainingAmount,
		})
	}
	if !money.Finite(c.TransactionPrice.Total) {
		return Summary{}, fmt.Errorf("%w: transaction price must be finite", ErrInvalidInput)
	}
	total := money.Round2(money.Sum(recognized...))
	deferredTotal := money.Round2(money.Sum(deferred...))
	return Summary{
		TotalRecognized:   total,
		DeferredRevenue:   deferredTotal,
		ContractAsset:     money.Max(0, money.Round2(total-c.TransactionPrice.Total)),
		ContractLiability: deferredTotal,
		Details:           details,
	}, nil
}

// IsOverTimeRecognition applies IFRS 15.35.
func IsOverTimeRecognition(c OverTimeCriteria) bool {
	return c.CustomerReceivesBenefitAsPerformed ||
		(c.AssetHasNoAlternativeUse && c.EnforceableRightToPayment)
}

func clampPercent(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
