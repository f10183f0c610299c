package integration

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
	"github.com/odyssey-erp/ifrs-ledger/internal/money"
)

func debit(code, description string, amount float64) accounting.PostingLineInput {
	return accounting.PostingLineInput{AccountCode: code, Description: description, Debit: money.FromFloat(amount)}
}

func credit(code, description string, amount float64) accounting.PostingLineInput {
	return accounting.PostingLineInput{AccountCode: code, Description: description, Credit: money.FromFloat(amount)}
}

func checkAmounts(values ...float64) error {
	if !money.Finite(values...) {
		return ErrInvalidAmount
	}
	return nil
}

func optional(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// lines drops lines that round to zero, such as an absent tax line.
func lines(in ...accounting.PostingLineInput) []accounting.PostingLineInput {
	out := make([]accounting.PostingLineInput, 0, len(in))
	for _, l := range in {
		if l.Debit.IsZero() && l.Credit.IsZero() {
			continue
		}
		out = append(out, l)
	}
	return out
}

// derivedSourceID names an engine-generated event deterministically so
// replays hit the ledger's idempotency check.
func derivedSourceID(kind string, parts ...any) string {
	key := kind
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return uuid.NewSHA1(uuid.Nil, []byte(key)).String()
}
