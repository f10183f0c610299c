package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs         *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	imbalances   *prometheus.CounterVec
	depreciation *prometheus.CounterVec
	amortization *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddImbalance counts a company whose ledger failed the integrity check.
func (m *Metrics) AddImbalance(companyID int64) {
	if m == nil {
		return
	}
	m.imbalances.WithLabelValues(formatInt(companyID)).Inc()
}

// AddDepreciation accumulates depreciation charged by a period run.
func (m *Metrics) AddDepreciation(companyID int64, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.depreciation.WithLabelValues(formatInt(companyID)).Add(amount)
}

// AddAmortization accumulates prepaid expense recognised by a period run.
func (m *Metrics) AddAmortization(companyID int64, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.amortization.WithLabelValues(formatInt(companyID)).Add(amount)
}

func formatInt(v int64) string {
	if v <= 0 {
		return "0"
	}
	return strconv.FormatInt(v, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	imbalances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_integrity_imbalances_total",
		Help: "Integrity checks that found debits and credits out of balance, by company.",
	}, []string{"company"})
	depreciation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_depreciation_charged_total",
		Help: "Depreciation posted by period runs, by company.",
	}, []string{"company"})
	amortization := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_prepaid_amortized_total",
		Help: "Prepaid expense recognised by amortization runs, by company.",
	}, []string{"company"})
	registerer.MustRegister(runs, failures, duration, imbalances, depreciation, amortization)
	return &Metrics{runs: runs, failures: failures, duration: duration, imbalances: imbalances, depreciation: depreciation, amortization: amortization}
}
