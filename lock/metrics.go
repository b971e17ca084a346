package lock

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitessio/zlock/internal/zkpath"
)

// Metrics records acquire attempt/success/timeout, revocation, and
// session-restart counts per lock name and kind. A nil *Metrics is safe to use — every lock method checks for
// nil before recording.
type Metrics struct {
	attempts    *prometheus.CounterVec
	successes   *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
	revocations *prometheus.CounterVec
	restarts    *prometheus.CounterVec
}

// NewMetrics registers the lock package's counters against reg and returns
// a Metrics ready to pass to WithMetrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	labels := []string{"lock", "kind"}
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zlock",
			Name:      "acquire_attempts_total",
			Help:      "Number of acquire attempts started, by lock name and kind.",
		}, labels),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zlock",
			Name:      "acquire_successes_total",
			Help:      "Number of acquire attempts that succeeded, by lock name and kind.",
		}, labels),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zlock",
			Name:      "acquire_timeouts_total",
			Help:      "Number of acquire attempts that gave up after their timeout elapsed.",
		}, labels),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zlock",
			Name:      "revocations_observed_total",
			Help:      "Number of times a holder observed a revocation request addressed to it.",
		}, labels),
		restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "zlock",
			Name:      "session_restarts_total",
			Help:      "Number of times an acquire attempt restarted after session loss.",
		}, labels),
	}
	reg.MustRegister(m.attempts, m.successes, m.timeouts, m.revocations, m.restarts)
	return m
}

func (m *Metrics) acquireAttempt(name string, kind zkpath.Kind) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(name, kind.String()).Inc()
}

func (m *Metrics) acquireSuccess(name string, kind zkpath.Kind) {
	if m == nil {
		return
	}
	m.successes.WithLabelValues(name, kind.String()).Inc()
}

func (m *Metrics) acquireTimeout(name string, kind zkpath.Kind) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(name, kind.String()).Inc()
}

func (m *Metrics) revocationObserved(name string, kind zkpath.Kind) {
	if m == nil {
		return
	}
	m.revocations.WithLabelValues(name, kind.String()).Inc()
}

func (m *Metrics) sessionRestart(name string, kind zkpath.Kind) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(name, kind.String()).Inc()
}
