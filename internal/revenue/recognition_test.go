package revenue

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

func validCriteria() ContractCriteria {
	return ContractCriteria{
		HasCommercialSubstance:   true,
		PartiesApproved:          true,
		RightsIdentifiable:       true,
		PaymentTermsIdentifiable: true,
		CollectionProbable:       true,
	}
}

func TestIdentifyContractListsEveryIssue(t *testing.T) {
	a := IdentifyContract(validCriteria())
	require.True(t, a.IsValid)
	require.Empty(t, a.Issues)

	a = IdentifyContract(ContractCriteria{})
	require.False(t, a.IsValid)
	require.Len(t, a.Issues, 5)

	c := validCriteria()
	c.CollectionProbable = false
	a = IdentifyContract(c)
	require.Equal(t, []string{"collection of consideration must be probable"}, a.Issues)
}

func TestIdentifyObligationsKeepsDistinctGoods(t *testing.T) {
	obs := IdentifyObligations([]PromisedGood{
		{Description: "Licence", IsDistinct: true, StandalonePrice: 600},
		{Description: "Installation", IsDistinct: false, StandalonePrice: 50},
		{Description: "Support", IsDistinct: true, StandalonePrice: 400, Timing: TimingOverTime},
	})
	require.Len(t, obs, 2)
	require.Equal(t, "PO-1", obs[0].ID)
	require.Equal(t, TimingPointInTime, obs[0].Timing)
	require.Equal(t, "PO-2", obs[1].ID)
	require.Equal(t, "Support", obs[1].Description)
	require.Equal(t, TimingOverTime, obs[1].Timing)
	require.Zero(t, obs[1].AllocatedPrice)

	require.Empty(t, IdentifyObligations(nil))
}

func TestDetermineTransactionPrice(t *testing.T) {
	price, err := DetermineTransactionPrice(PriceComponents{
		FixedConsideration:             1000,
		VariableConsideration:          100,
		NonCashConsideration:           50,
		ConsiderationPayableToCustomer: 30,
	})
	require.NoError(t, err)
	require.Equal(t, 1120.0, price.Total)
	require.Len(t, price.Breakdown, 5)
	require.Equal(t, PriceLine{Label: "consideration_payable_to_customer", Amount: -30}, price.Breakdown[4])
}

func TestAllocateProportionally(t *testing.T) {
	alloc, err := Allocate(800, []PerformanceObligation{
		{ID: "PO-1", StandalonePrice: 600},
		{ID: "PO-2", StandalonePrice: 400},
	})
	require.NoError(t, err)
	require.False(t, alloc.Degenerate)
	require.Equal(t, 480.0, alloc.Obligations[0].AllocatedPrice)
	require.Equal(t, 320.0, alloc.Obligations[1].AllocatedPrice)
}

func TestAllocateResidualOnLastObligation(t *testing.T) {
	obs := []PerformanceObligation{{StandalonePrice: 1}, {StandalonePrice: 1}, {StandalonePrice: 1}}
	alloc, err := Allocate(100, obs)
	require.NoError(t, err)
	got := []float64{alloc.Obligations[0].AllocatedPrice, alloc.Obligations[1].AllocatedPrice, alloc.Obligations[2].AllocatedPrice}
	require.Equal(t, []float64{33.33, 33.33, 33.34}, got)
	require.Equal(t, 100.0, money.Sum(got...))
	require.Zero(t, obs[0].AllocatedPrice, "input is not mutated")
}

func TestAllocateResidualSkipsZeroPricedObligation(t *testing.T) {
	alloc, err := Allocate(100, []PerformanceObligation{
		{ID: "PO-1", StandalonePrice: 1},
		{ID: "PO-2", StandalonePrice: 1},
		{ID: "PO-3", StandalonePrice: 1},
		{ID: "PO-4", StandalonePrice: 0},
	})
	require.NoError(t, err)
	got := make([]float64, 0, 4)
	for _, o := range alloc.Obligations {
		got = append(got, o.AllocatedPrice)
	}
	require.Equal(t, []float64{33.33, 33.33, 33.34, 0}, got)

	alloc, err = Allocate(100, []PerformanceObligation{
		{ID: "PO-1", StandalonePrice: 2},
		{ID: "PO-2", StandalonePrice: 1},
		{ID: "PO-3", StandalonePrice: 1},
		{ID: "PO-4", StandalonePrice: 1},
		{ID: "PO-5", StandalonePrice: 1},
		{ID: "PO-6", StandalonePrice: 1},
	})
	require.NoError(t, err)
	require.Equal(t, 28.55, alloc.Obligations[0].AllocatedPrice, "largest standalone price takes the residual")
	for _, o := range alloc.Obligations[1:] {
		require.Equal(t, 14.29, o.AllocatedPrice, o.ID)
	}
}

func TestAllocateDegenerateSplitsEqually(t *testing.T) {
	alloc, err := Allocate(100, []PerformanceObligation{{}, {}, {}})
	require.NoError(t, err)
	require.True(t, alloc.Degenerate)
	require.Equal(t, 33.33, alloc.Obligations[0].AllocatedPrice)
	require.Equal(t, 33.34, alloc.Obligations[2].AllocatedPrice)

	alloc, err = Allocate(100, nil)
	require.NoError(t, err)
	require.Empty(t, alloc.Obligations)
}

func TestNonFiniteAmountsFail(t *testing.T) {
	_, err := DetermineTransactionPrice(PriceComponents{FixedConsideration: math.Inf(1)})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Allocate(math.NaN(), []PerformanceObligation{{StandalonePrice: 1}})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = Allocate(100, []PerformanceObligation{{StandalonePrice: math.Inf(1)}})
	require.ErrorIs(t, err, ErrInvalidInput)

	o := PerformanceObligation{AllocatedPrice: 100, Timing: TimingOverTime}
	require.NotPanics(t, func() {
		_, err = Recognize(o, Progress{PercentComplete: math.NaN()})
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	o.PercentComplete = math.NaN()
	_, err = ProcessContract(Contract{Obligations: []PerformanceObligation{o}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecognizePointInTime(t *testing.T) {
	o := PerformanceObligation{AllocatedPrice: 480, Timing: TimingPointInTime}
	res, err := Recognize(o, Progress{})
	require.NoError(t, err)
	require.Zero(t, res.RecognizedAmount)
	require.False(t, res.IsFullyRecognized)
	require.Equal(t, 480.0, res.RemainingAmount)

	res, err = Recognize(o, Progress{ControlTransferred: true, PercentComplete: 10})
	require.NoError(t, err)
	require.Equal(t, 480.0, res.RecognizedAmount)
	require.True(t, res.IsFullyRecognized)
	require.Zero(t, res.RemainingAmount)
}

func TestRecognizeOverTime(t *testing.T) {
	o := PerformanceObligation{AllocatedPrice: 1000, Timing: TimingOverTime}
	res, err := Recognize(o, Progress{PercentComplete: 60})
	require.NoError(t, err)
	require.Equal(t, 600.0, res.RecognizedAmount)
	require.Equal(t, 400.0, res.RemainingAmount)
	require.False(t, res.IsFullyRecognized)

	res, err = Recognize(o, Progress{PercentComplete: 150})
	require.NoError(t, err)
	require.Equal(t, 1000.0, res.RecognizedAmount)
	require.True(t, res.IsFullyRecognized)

	res, err = Recognize(o, Progress{PercentComplete: -5})
	require.NoError(t, err)
	require.Zero(t, res.RecognizedAmount)
}

func TestProcessContract(t *testing.T) {
	c := Contract{
		TransactionPrice: TransactionPrice{Total: 800},
		Obligations: []PerformanceObligation{
			{ID: "PO-1", Description: "Licence", AllocatedPrice: 480, Timing: TimingPointInTime, ControlTransferred: true},
			{ID: "PO-2", Description: "Support", AllocatedPrice: 320, Timing: TimingOverTime, PercentComplete: 50},
		},
	}
	s, err := ProcessContract(c)
	require.NoError(t, err)
	require.Equal(t, 640.0, s.TotalRecognized)
	require.Equal(t, 160.0, s.DeferredRevenue)
	require.Zero(t, s.ContractAsset)
	require.Equal(t, 160.0, s.ContractLiability)
	require.Equal(t, ObligationDetail{ObligationID: "PO-2", Description: "Support", Allocated: 320, Recognized: 160, Deferred: 160}, s.Details[1])

	c.TransactionPrice.Total = 600
	s, err = ProcessContract(c)
	require.NoError(t, err)
	require.Equal(t, 40.0, s.ContractAsset)
}

func TestIsOverTimeRecognition(t *testing.T) {
	require.True(t, IsOverTimeRecognition(OverTimeCriteria{CustomerReceivesBenefitAsPerformed: true}))
	require.True(t, IsOverTimeRecognition(OverTimeCriteria{AssetHasNoAlternativeUse: true, EnforceableRightToPayment: true}))
	require.False(t, IsOverTimeRecognition(OverTimeCriteria{AssetHasNoAlternativeUse: true}))
	require.False(t, IsOverTimeRecognition(OverTimeCriteria{}))
}
