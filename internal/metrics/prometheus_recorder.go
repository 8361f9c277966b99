package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "tutorguard"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	handled          *prom.CounterVec
	recommendations  *prom.CounterVec
	listenerPanics   prom.Counter
	retryAttempts    *prom.CounterVec
	retryDelay       prom.Histogram
	retriesExhausted prom.Counter
}

// NewPrometheusRecorder constructs the collectors and registers them with reg.
// A nil reg gets a private registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		handled: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "errors_handled_total",
			Help:      "Errors routed through the coordinator by category and severity",
		}, []string{"category", "severity"}),
		recommendations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_recommendations_total",
			Help:      "Recovery actions recommended by the policy table",
		}, []string{"category", "action"}),
		listenerPanics: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "listener_panics_total",
			Help:      "Error listeners that panicked and were isolated",
		}),
		retryAttempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Operation attempts made by the retry executor by outcome",
		}, []string{"outcome"}),
		retryDelay: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "retry_delay_seconds",
			Help:      "Backoff delays scheduled between attempts",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30},
		}),
		retriesExhausted: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "retry_exhausted_total",
			Help:      "Retry sequences that ran out of attempts",
		}),
	}
	reg.MustRegister(pr.handled, pr.recommendations, pr.listenerPanics, pr.retryAttempts, pr.retryDelay, pr.retriesExhausted)
	return pr
}

func (p *PrometheusRecorder) IncErrorHandled(category, severity string) {
	if p == nil {
		return
	}
	p.handled.WithLabelValues(category, severity).Inc()
}

func (p *PrometheusRecorder) IncRecoveryRecommendation(category, action string) {
	if p == nil {
		return
	}
	p.recommendations.WithLabelValues(category, action).Inc()
}

func (p *PrometheusRecorder) IncListenerPanic() {
	if p == nil {
		return
	}
	p.listenerPanics.Inc()
}

func (p *PrometheusRecorder) IncRetryAttempt(outcome RetryOutcome) {
	if p == nil {
		return
	}
	p.retryAttempts.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveRetryDelay(d time.Duration) {
	if p == nil {
		return
	}
	p.retryDelay.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRetryExhausted() {
	if p == nil {
		return
	}
	p.retriesExhausted.Inc()
}
