package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoanCommandJSON(t *testing.T) {
	stdout := new(bytes.Buffer)
	exitCode := LoanCommand(LoanOptions{
		Principal:  100000,
		AnnualRate: 0.12,
		TermMonths: 12,
		Start:      "2025-01-31",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Zero(t, exitCode)

	var lines []LoanLine
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &lines))
	require.Len(t, lines, 12)
	require.Equal(t, LoanLine{Number: 1, DueDate: "2025-02-28", Principal: 7884.88, Interest: 1000, Total: 8884.88, Balance: 92115.12}, lines[0])
	require.Zero(t, lines[11].Balance)
}

func TestLoanCommandHuman(t *testing.T) {
	stdout := new(bytes.Buffer)
	exitCode := LoanCommand(LoanOptions{
		Principal:  12000,
		TermMonths: 12,
		Frequency:  "QUARTERLY",
		Start:      "2025-01-01",
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Zero(t, exitCode)
	require.Contains(t, stdout.String(), "over 12 months (QUARTERLY)")
	require.Contains(t, stdout.String(), "2025-04-01")
	require.Contains(t, stdout.String(), "3,000.00")
}

func TestLoanCommandErrors(t *testing.T) {
	stderr := new(bytes.Buffer)
	require.Equal(t, 1, LoanCommand(LoanOptions{Principal: 1000, TermMonths: 12, Start: "01/02/2025", Stderr: stderr}))
	require.Contains(t, stderr.String(), "--start must be YYYY-MM-DD")

	stderr.Reset()
	require.Equal(t, 1, LoanCommand(LoanOptions{Principal: 1000, Stderr: stderr}))
	require.Contains(t, stderr.String(), "invalid loan")

	stderr.Reset()
	require.Equal(t, 1, LoanCommand(LoanOptions{Principal: 1000, TermMonths: 6, Frequency: "WEEKLY", Stderr: stderr}))
	require.Contains(t, stderr.String(), "invalid loan")
}
