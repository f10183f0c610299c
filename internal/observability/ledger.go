package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
)

// LedgerMetrics counts posting outcomes.
type LedgerMetrics struct {
	posted   *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewLedgerMetrics registers the posting counters.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	posted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_journals_posted_total",
		Help: "Journal entries posted by source type.",
	}, []string{"source"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_journals_rejected_total",
		Help: "Journal postings rejected by reason.",
	}, []string{"reason"})
	registerer.MustRegister(posted, rejected)
	return &LedgerMetrics{posted: posted, rejected: rejected}
}

// JournalPosted implements accounting.MetricsPort.
func (m *LedgerMetrics) JournalPosted(source accounting.SourceType) {
	if m == nil {
		return
	}
	m.posted.WithLabelValues(string(source)).Inc()
}

// JournalRejected implements accounting.MetricsPort.
func (m *LedgerMetrics) JournalRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

var _ accounting.MetricsPort = (*LedgerMetrics)(nil)
