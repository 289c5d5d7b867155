package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the pattern knowledge store.
type Metrics struct {
	Lookups       *prometheus.CounterVec
	Writes        *prometheus.CounterVec
	Corruptions   prometheus.Counter
	QueryDuration *prometheus.HistogramVec
}

// New registers knowledge store metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailscout_knowledge_lookups_total",
			Help: "Pattern cache lookups by result",
		}, []string{"result"}), // hit, miss, error
		Writes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailscout_knowledge_writes_total",
			Help: "Pattern observations recorded by source",
		}, []string{"source"}),
		Corruptions: f.NewCounter(prometheus.CounterOpts{
			Name: "mailscout_knowledge_corruptions_total",
			Help: "Reads that found corrupt cache data",
		}),
		QueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mailscout_knowledge_query_duration_seconds",
			Help:    "Backend latency by operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"op"}),
	}
}

// RecordLookup counts a lookup and its latency.
func (m *Metrics) RecordLookup(result string, d time.Duration) {
	if m != nil {
		m.Lookups.WithLabelValues(result).Inc()
		m.QueryDuration.WithLabelValues("get").Observe(d.Seconds())
	}
}

// RecordWrite counts a write and its latency.
func (m *Metrics) RecordWrite(source string, d time.Duration) {
	if m != nil {
		m.Writes.WithLabelValues(source).Inc()
		m.QueryDuration.WithLabelValues("record").Observe(d.Seconds())
	}
}

// IncrementCorruptions counts a corrupt read.
func (m *Metrics) IncrementCorruptions() {
	if m != nil {
		m.Corruptions.Inc()
	}
}
