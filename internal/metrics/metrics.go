package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowtagger"

// Handler holds the counters of one run on its own registry.
type Handler struct {
	registry *prometheus.Registry

	LinesTotal         *prometheus.CounterVec
	LinesSkippedTotal  *prometheus.CounterVec
	LookupRowsTotal    *prometheus.CounterVec
	RecordsTaggedTotal *prometheus.CounterVec
	SinkErrorsTotal    *prometheus.CounterVec
	RunDuration        prometheus.Gauge
	LastRunTimestamp   prometheus.Gauge
	LastRunSuccess     prometheus.Gauge
}

// New creates a handler with a fresh registry.
func New() *Handler {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Handler{
		registry: reg,
		LinesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_log_lines_total",
			Help:      "The total number of flow log lines read, by result",
		}, []string{"result"}),
		LinesSkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flow_log_lines_skipped_total",
			Help:      "The total number of flow log lines skipped, by reason",
		}, []string{"reason"}),
		LookupRowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_rows_total",
			Help:      "The total number of lookup table rows, by result",
		}, []string{"result"}),
		RecordsTaggedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_tagged_total",
			Help:      "The total number of flow records, by tag",
		}, []string{"tag"}),
		SinkErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "The total number of failed report sink writes",
		}, []string{"sink"}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time at which the last run finished",
		}),
		LastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "Whether the last run completed (1) or failed (0)",
		}),
	}
}

// Registry returns the registry holding the run's metrics.
func (h *Handler) Registry() *prometheus.Registry {
	return h.registry
}

// IncLines increments the line counter for a result (parsed, skipped, blank).
func (h *Handler) IncLines(result string) {
	h.LinesTotal.WithLabelValues(result).Inc()
}

// AddLines adds n lines to the line counter for a result.
func (h *Handler) AddLines(result string, n int) {
	h.LinesTotal.WithLabelValues(result).Add(float64(n))
}

// IncLinesSkipped increments the skipped line counter for a reason.
func (h *Handler) IncLinesSkipped(reason string) {
	h.LinesSkippedTotal.WithLabelValues(reason).Inc()
}

// AddLookupRows adds n rows to the lookup row counter for a result.
func (h *Handler) AddLookupRows(result string, n int) {
	h.LookupRowsTotal.WithLabelValues(result).Add(float64(n))
}

// IncRecordsTagged increments the tagged record counter for a tag.
func (h *Handler) IncRecordsTagged(tag string) {
	h.RecordsTaggedTotal.WithLabelValues(tag).Inc()
}

// IncSinkErrors increments the error counter of a sink.
func (h *Handler) IncSinkErrors(sink string) {
	h.SinkErrorsTotal.WithLabelValues(sink).Inc()
}

// ObserveRun records the duration, completion time and outcome of a run.
func (h *Handler) ObserveRun(started, finished time.Time, success bool) {
	h.RunDuration.Set(finished.Sub(started).Seconds())
	h.LastRunTimestamp.Set(float64(finished.Unix()))
	if success {
		h.LastRunSuccess.Set(1)
	} else {
		h.LastRunSuccess.Set(0)
	}
}

// WriteTextfile writes the metrics in the text exposition format, suitable for the
// node_exporter textfile collector.
func (h *Handler) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, h.registry)
}
