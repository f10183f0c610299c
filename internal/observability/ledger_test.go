package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
)

func TestLedgerMetricsCountOutcomes(t *testing.T) {
	m := NewLedgerMetrics(prometheus.NewRegistry())
	m.JournalPosted(accounting.SourceDepreciation)
	m.JournalPosted(accounting.SourceDepreciation)
	m.JournalRejected(accounting.RejectReason(&accounting.UnbalancedError{}))
	m.JournalRejected(accounting.RejectReason(errors.New("db down")))

	require.Equal(t, 2.0, testutil.ToFloat64(m.posted.WithLabelValues("DEPRECIATION")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("unbalanced")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("error")))
}

func TestRegistryExposesLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.Ledger().JournalPosted(accounting.SourceInvoice)
	count, err := testutil.GatherAndCount(metrics.registry, "ledger_journals_posted_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
