package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Daniil-33/trading-journal-back/internal/ingest"
)

// Recorder implements ingest.BatchObserver using Prometheus. Import runs are
// short-lived, so the registry is pushed to a Pushgateway instead of scraped.
type Recorder struct {
	registry *prometheus.Registry

	records  *prometheus.CounterVec
	batches  *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	lastRun  *prometheus.GaugeVec
	rejected *prometheus.CounterVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxi_records_total",
				Help: "Records handed to storage, by outcome",
			},
			[]string{"kind", "outcome"},
		),
		batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxi_batches_total",
				Help: "Batches dispatched to storage, by result",
			},
			[]string{"kind", "result"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxi_batch_duration_seconds",
				Help:    "Time storage took to accept one batch",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"kind"},
		),
		lastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxi_last_run_timestamp_seconds",
				Help: "Unix time the last run of a kind finished",
			},
			[]string{"kind"},
		),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxi_rejected_lines_total",
				Help: "Source lines rejected by the parser or validator",
			},
			[]string{"kind"},
		),
	}
}

// Registry exposes the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveBatch records one dispatched batch.
func (r *Recorder) ObserveBatch(kind string, o ingest.BatchOutcome) {
	r.records.WithLabelValues(kind, "inserted").Add(float64(o.Inserted))
	r.records.WithLabelValues(kind, "duplicate").Add(float64(o.Duplicates))
	r.records.WithLabelValues(kind, "failed").Add(float64(o.Failed))

	result := "ok"
	if o.Err != nil {
		result = "error"
	}
	r.batches.WithLabelValues(kind, result).Inc()
	r.latency.WithLabelValues(kind).Observe(o.Duration.Seconds())
}

// RecordRun records the end of a run.
func (r *Recorder) RecordRun(s ingest.RunSummary) {
	r.rejected.WithLabelValues(s.Kind).Add(float64(s.Totals.Rejected))
	r.lastRun.WithLabelValues(s.Kind).Set(float64(s.FinishedAt.Unix()))
}

// Push sends the registry to the Pushgateway at url under job.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	err := push.New(url, job).
		Gatherer(r.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
