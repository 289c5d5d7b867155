package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline and its providers.
type Metrics struct {
	// Tier latency and result by tier name
	TierDuration *prometheus.HistogramVec
	TierResults  *prometheus.CounterVec

	// Final resolution per contact
	Resolutions *prometheus.CounterVec

	// Outbound provider calls by provider and outcome category
	ProviderCalls *prometheus.CounterVec
	BreakerOpen   *prometheus.GaugeVec
}

// New registers verification metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TierDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailscout_verification_tier_duration_seconds",
			Help:    "Duration of each verification tier",
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"tier"}),
		TierResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailscout_verification_tier_results_total",
			Help: "Tier executions by result",
		}, []string{"tier", "result"}), // result: ok or an error class
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailscout_verification_resolutions_total",
			Help: "Contacts resolved by resolution",
		}, []string{"resolution"}),
		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailscout_provider_calls_total",
			Help: "Provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),
		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mailscout_provider_breaker_open",
			Help: "1 while the provider circuit breaker is open",
		}, []string{"provider"}),
	}
}

// ObserveTier records one tier execution.
func (m *Metrics) ObserveTier(tier, result string, d time.Duration) {
	if m != nil {
		m.TierDuration.WithLabelValues(tier).Observe(d.Seconds())
		m.TierResults.WithLabelValues(tier, result).Inc()
	}
}

// IncrementResolution counts a final contact resolution.
func (m *Metrics) IncrementResolution(resolution string) {
	if m != nil {
		m.Resolutions.WithLabelValues(resolution).Inc()
	}
}

// IncrementProviderCall counts a guarded provider call.
func (m *Metrics) IncrementProviderCall(provider, outcome string) {
	if m != nil {
		m.ProviderCalls.WithLabelValues(provider, outcome).Inc()
	}
}

// SetBreakerOpen exports breaker state.
func (m *Metrics) SetBreakerOpen(provider string, open bool) {
	if m != nil {
		v := 0.0
		if open {
			v = 1
		}
		m.BreakerOpen.WithLabelValues(provider).Set(v)
	}
}
