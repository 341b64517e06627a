package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Artifact load status values reported through OpModelLoad.
const (
	ArtifactLoaded       = "loaded"
	ArtifactMissing      = "missing"
	ArtifactCorrupt      = "corrupt"
	ArtifactIncompatible = "incompatible"
	ArtifactDisabled     = "disabled"
)

// EngineMetrics contains all Prometheus metrics related to prediction requests
// and model artifacts.
type EngineMetrics struct {
	// Request metrics, partitioned by capability (diagnose, forecast)
	PredictionTotal    *prometheus.CounterVec
	PredictionErrors   *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec

	// Artifact metrics, partitioned by artifact name
	ModelLoadTotal   *prometheus.CounterVec
	ModelLoadedGauge *prometheus.GaugeVec

	registry *prometheus.Registry
}

var _ Recorder = (*EngineMetrics)(nil)

// NewEngineMetrics creates a new instance of EngineMetrics.
// It requires a Prometheus registry to register the metrics.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrisense_predictions_total",
			Help: "Total number of prediction requests by terminal state",
		},
		[]string{"capability", "state"},
	)

	m.PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrisense_prediction_errors_total",
			Help: "Total number of failed prediction requests by error category",
		},
		[]string{"capability", "error_type"},
	)

	m.PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agrisense_prediction_duration_seconds",
			Help:    "Time taken to serve a prediction request",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
		[]string{"capability"},
	)

	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agrisense_model_load_total",
			Help: "Total number of artifact load attempts by outcome",
		},
		[]string{"artifact", "status"},
	)

	m.ModelLoadedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agrisense_model_loaded",
			Help: "Whether an artifact is currently loaded (1) or not (0)",
		},
		[]string{"artifact"},
	)
}

// RecordOperation records a request outcome, or an artifact load outcome for
// operations of the form "model_load:<artifact>".
func (m *EngineMetrics) RecordOperation(operation, status string) {
	op, artifact := splitOperation(operation)
	if op != OpModelLoad {
		m.PredictionTotal.WithLabelValues(operation, status).Inc()
		return
	}

	m.ModelLoadTotal.WithLabelValues(artifact, status).Inc()
	if status == ArtifactLoaded {
		m.ModelLoadedGauge.WithLabelValues(artifact).Set(1)
	} else {
		m.ModelLoadedGauge.WithLabelValues(artifact).Set(0)
	}
}

// RecordDuration records the time taken by a request.
func (m *EngineMetrics) RecordDuration(operation string, seconds float64) {
	m.PredictionDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError records a failed request by error category.
func (m *EngineMetrics) RecordError(operation, errorType string) {
	m.PredictionErrors.WithLabelValues(operation, errorType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.PredictionTotal.Describe(ch)
	m.PredictionErrors.Describe(ch)
	m.PredictionDuration.Describe(ch)
	m.ModelLoadTotal.Describe(ch)
	m.ModelLoadedGauge.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.PredictionTotal.Collect(ch)
	m.PredictionErrors.Collect(ch)
	m.PredictionDuration.Collect(ch)
	m.ModelLoadTotal.Collect(ch)
	m.ModelLoadedGauge.Collect(ch)
}
