// Package metrics provides custom Prometheus metrics for agrisense.
package metrics

import "strings"

// Recorder defines a minimal interface for recording metrics.
// Components depend on this abstraction rather than concrete metric types.
type Recorder interface {
	// RecordOperation records an operation with its status.
	// The operation parameter describes what was performed (e.g., "forecast", "model_load:yield").
	// The status parameter indicates the outcome (e.g., "returned", "rejected", "loaded").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	// The errorType parameter is usually an error category such as "validation".
	RecordError(operation, errorType string)
}

// NoOpRecorder is a no-op implementation of the Recorder interface.
// It can be used when metrics recording is not needed.
type NoOpRecorder struct{}

// RecordOperation does nothing.
func (n *NoOpRecorder) RecordOperation(operation, status string) {}

// RecordDuration does nothing.
func (n *NoOpRecorder) RecordDuration(operation string, seconds float64) {}

// RecordError does nothing.
func (n *NoOpRecorder) RecordError(operation, errorType string) {}

// NewNoOpRecorder creates a new no-op recorder instance.
func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

// splitOperation extracts the label from operations like "model_load:disease".
// Operations without a label return LabelUnknown.
func splitOperation(operation string) (op, label string) {
	parts := strings.SplitN(operation, ":", SplitPartsCount)
	if len(parts) == SplitPartsCount {
		return parts[0], parts[1]
	}
	return operation, LabelUnknown
}
