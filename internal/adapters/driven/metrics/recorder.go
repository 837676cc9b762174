// Package metrics records engine instrumentation with Prometheus collectors.
//
// The recorder owns its registry, so several recorders can coexist in
// one process (tests, embedded use). Metrics are exported either through
// the registry or as a node_exporter textfile.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/custodia-labs/docwatch/internal/core/domain"
	"github.com/custodia-labs/docwatch/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

const namespace = "docwatch"

// Ingestion results.
const (
	resultVersioned = "versioned"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)

// Recorder implements driven.MetricsRecorder.
type Recorder struct {
	registry *prometheus.Registry

	ingestions *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	changes    *prometheus.CounterVec
	impact     *prometheus.HistogramVec
	skipped    *prometheus.CounterVec
}

// NewRecorder creates a recorder with a fresh registry.
// Go runtime collectors are included when withRuntime is true.
func NewRecorder(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Documents ingested, by source type and result.",
		}, []string{"type", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_failures_total",
			Help:      "Failed ingestions, by pipeline stage.",
		}, []string{"stage"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Time to normalise, diff and commit one document.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"type"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Committed changes, by change type and classification.",
		}, []string{"type", "classification"}),
		impact: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "change_impact_score",
			Help:      "Impact score of committed changes.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"classification"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_skipped_total",
			Help:      "Sections dropped from change detection after a failure.",
		}, []string{"stage"}),
	}

	r.registry.MustRegister(r.ingestions, r.failures, r.duration, r.changes, r.impact, r.skipped)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// IngestionFinished records one ingestion and its outcome.
func (r *Recorder) IngestionFinished(sourceType domain.SourceType, outcome *domain.IngestionOutcome,
	err error, elapsed time.Duration) {
	t := string(sourceType)
	r.duration.WithLabelValues(t).Observe(elapsed.Seconds())

	switch {
	case err != nil:
		r.ingestions.WithLabelValues(t, resultFailed).Inc()
		r.failures.WithLabelValues(string(domain.StageFor(err))).Inc()
	case outcome != nil && outcome.IsDuplicate:
		r.ingestions.WithLabelValues(t, resultDuplicate).Inc()
	default:
		r.ingestions.WithLabelValues(t, resultVersioned).Inc()
	}
}

// ChangeDetected records one committed change.
func (r *Recorder) ChangeDetected(change *domain.Change) {
	class := string(change.Classification)
	r.changes.WithLabelValues(string(change.Type), class).Inc()
	r.impact.WithLabelValues(class).Observe(change.ImpactScore)
}

// SectionSkipped records a section dropped by failure isolation.
func (r *Recorder) SectionSkipped(stage domain.Stage) {
	r.skipped.WithLabelValues(string(stage)).Inc()
}

// WriteTextfile writes the current metrics in the text exposition format,
// replacing path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if path == "" {
		return errors.New("metrics textfile path is empty")
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
