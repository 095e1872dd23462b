package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"splitverify/internal/domain"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	sessions       prometheus.Gauge
	issues         *prometheus.CounterVec
	autofixes      *prometheus.CounterVec
	verifications  prometheus.Counter
	distributions  prometheus.Counter
	ingestJobs     *prometheus.CounterVec
	ingestDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "splitverify_sessions",
			Help: "Live workflow sessions.",
		}),
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitverify_validation_issues_total",
			Help: "Validation issues reported, by kind.",
		}, []string{"kind"}),
		autofixes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitverify_autofix_total",
			Help: "Auto-fix runs by outcome (resolved or remaining).",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitverify_verifications_total",
			Help: "Verification records issued.",
		}),
		distributions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitverify_distributions_total",
			Help: "Payment distributions computed.",
		}),
		ingestJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitverify_ingest_jobs_total",
			Help: "Ingestion jobs by final status.",
		}, []string{"status"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "splitverify_ingest_duration_seconds",
			Help:    "Time spent parsing uploaded split sheets.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessions, m.issues, m.autofixes, m.verifications, m.distributions, m.ingestJobs, m.ingestDuration)
	}
	return m
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

func (m *Metrics) ObserveIssues(issues []domain.ValidationIssue) {
	if m == nil {
		return
	}
	for _, is := range issues {
		m.issues.WithLabelValues(string(is.Kind)).Inc()
	}
}

func (m *Metrics) AutoFixed(remaining int) {
	if m == nil {
		return
	}
	outcome := "resolved"
	if remaining > 0 {
		outcome = "remaining"
	}
	m.autofixes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Verified() {
	if m == nil {
		return
	}
	m.verifications.Inc()
}

func (m *Metrics) Distributed() {
	if m == nil {
		return
	}
	m.distributions.Inc()
}

func (m *Metrics) IngestFinished(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.ingestJobs.WithLabelValues(status).Inc()
	m.ingestDuration.Observe(took.Seconds())
}
