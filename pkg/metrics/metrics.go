// Package metrics exposes the prometheus instruments of the credit core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trustline"

// Metrics groups the counters and histograms recorded by the services.
type Metrics struct {
	draws          *prometheus.CounterVec
	repayments     *prometheus.CounterVec
	qrIssued       prometheus.Counter
	qrValidations  *prometheus.CounterVec
	otpIssued      prometheus.Counter
	otpVerifies    *prometheus.CounterVec
	recomputes     *prometheus.CounterVec
	scores         prometheus.Histogram
	reconciliation *prometheus.CounterVec
}

// New registers the instruments on reg. A nil registerer yields a no-op Metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_draws_total",
			Help:      "Credit draws by outcome.",
		}, []string{"outcome"}),
		repayments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repayments_total",
			Help:      "Repayments by outcome.",
		}, []string{"outcome"}),
		qrIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qr_tokens_issued_total",
			Help:      "QR tokens issued.",
		}),
		qrValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qr_validations_total",
			Help:      "QR validations by outcome.",
		}, []string{"outcome"}),
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_issued_total",
			Help:      "One-time codes issued.",
		}),
		otpVerifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "otp_verifications_total",
			Help:      "One-time code verifications by outcome.",
		}, []string{"outcome"}),
		recomputes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trust_score_recomputes_total",
			Help:      "Trust score recomputations by outcome.",
		}, []string{"outcome"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trust_score",
			Help:      "Distribution of computed trust scores.",
			Buckets:   prometheus.LinearBuckets(300, 100, 8),
		}),
		reconciliation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_transitions_total",
			Help:      "Transactions moved by the reconciliation sweep.",
		}, []string{"transition"}),
	}
	reg.MustRegister(m.draws, m.repayments, m.qrIssued, m.qrValidations, m.otpIssued,
		m.otpVerifies, m.recomputes, m.scores, m.reconciliation)
	return m
}

// IncDraw counts a credit draw outcome.
func (m *Metrics) IncDraw(outcome string) {
	if m == nil || m.draws == nil {
		return
	}
	m.draws.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRepayment counts a repayment outcome.
func (m *Metrics) IncRepayment(outcome string) {
	if m == nil || m.repayments == nil {
		return
	}
	m.repayments.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncQRIssued counts an issued QR token.
func (m *Metrics) IncQRIssued() {
	if m == nil || m.qrIssued == nil {
		return
	}
	m.qrIssued.Inc()
}

// IncQRValidation counts a QR validation outcome.
func (m *Metrics) IncQRValidation(outcome string) {
	if m == nil || m.qrValidations == nil {
		return
	}
	m.qrValidations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncOTPIssued counts an issued one-time code.
func (m *Metrics) IncOTPIssued() {
	if m == nil || m.otpIssued == nil {
		return
	}
	m.otpIssued.Inc()
}

// IncOTPVerify counts a verification outcome.
func (m *Metrics) IncOTPVerify(outcome string) {
	if m == nil || m.otpVerifies == nil {
		return
	}
	m.otpVerifies.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveScore records a recompute outcome and, on success, the score.
func (m *Metrics) ObserveScore(outcome string, score int) {
	if m == nil || m.recomputes == nil {
		return
	}
	m.recomputes.WithLabelValues(normalizeLabel(outcome)).Inc()
	if outcome == "ok" && m.scores != nil {
		m.scores.Observe(float64(score))
	}
}

// IncReconciliation counts a transition applied by the sweep.
func (m *Metrics) IncReconciliation(transition string) {
	if m == nil || m.reconciliation == nil {
		return
	}
	m.reconciliation.WithLabelValues(normalizeLabel(transition)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
