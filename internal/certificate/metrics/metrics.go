package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CertificatesIssued   prometheus.Counter
	IssuanceReplays      prometheus.Counter
	IssuanceFailures     *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	RetryAttempts        *prometheus.CounterVec
	LedgerAheadOfStore   prometheus.Counter
	VerificationRequests *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		CertificatesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skillchain_certificates_issued_total",
			Help: "Total number of certificates issued and persisted",
		}),
		IssuanceReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skillchain_issuance_replays_total",
			Help: "Total number of issuance requests answered from the existing record",
		}),
		IssuanceFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "skillchain_issuance_failures_total",
			Help: "Total number of failed issuance requests by pipeline stage",
		}, []string{"stage"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillchain_issuance_stage_duration_seconds",
			Help:    "Duration of each issuance pipeline stage",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 15, 30, 60},
		}, []string{"stage"}),
		RetryAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "skillchain_issuance_retry_attempts_total",
			Help: "Total number of retry attempts by pipeline stage",
		}, []string{"stage"}),
		LedgerAheadOfStore: promauto.NewCounter(prometheus.CounterOpts{
			Name: "skillchain_ledger_ahead_of_store_total",
			Help: "Total number of issuances confirmed on-ledger with no local record",
		}),
		VerificationRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "skillchain_verification_requests_total",
			Help: "Total number of verification lookups by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.CertificatesIssued.Inc()
}

func (m *Metrics) IncrementReplay() {
	m.IssuanceReplays.Inc()
}

func (m *Metrics) IncrementFailure(stage string) {
	m.IssuanceFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRetry(stage string) {
	m.RetryAttempts.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncrementLedgerAheadOfStore() {
	m.LedgerAheadOfStore.Inc()
}

func (m *Metrics) IncrementVerification(outcome string) {
	m.VerificationRequests.WithLabelValues(outcome).Inc()
}
