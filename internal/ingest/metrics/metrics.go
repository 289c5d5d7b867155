package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers webhook ingestion.
type Metrics struct {
	Records      *prometheus.CounterVec
	BatchSize    prometheus.Histogram
	UpsertTime   prometheus.Histogram
	PublishFails prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mailscout_ingest_records_total",
			Help: "Webhook records by result",
		}, []string{"result"}), // created, merged, skipped, failed
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailscout_ingest_batch_size",
			Help:    "Records per webhook delivery",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
		UpsertTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailscout_result_store_upsert_duration_seconds",
			Help:    "Duration of one batch commit to the result store",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		PublishFails: f.NewCounter(prometheus.CounterOpts{
			Name: "mailscout_ingest_publish_failures_total",
			Help: "item.ingested events that could not be published",
		}),
	}
}

func (m *Metrics) ObserveBatch(size int) {
	if m != nil {
		m.BatchSize.Observe(float64(size))
	}
}

func (m *Metrics) IncrementRecord(result string) {
	if m != nil {
		m.Records.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveUpsert(d time.Duration) {
	if m != nil {
		m.UpsertTime.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementPublishFailure() {
	if m != nil {
		m.PublishFails.Inc()
	}
}
