// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Operation type constants passed to Recorder methods.
const (
	// OpDiagnose represents leaf image diagnosis requests.
	OpDiagnose = "diagnose"
	// OpForecast represents yield forecast requests.
	OpForecast = "forecast"
	// OpModelLoad represents artifact loading at startup. The artifact name is
	// appended after a colon, e.g. "model_load:disease".
	OpModelLoad = "model_load"
	// OpWeatherData represents weather data operations.
	OpWeatherData = "weather_data"
)

// Label value constants used for metric labels.
const (
	// StatusSuccess marks a successful operation.
	StatusSuccess = "success"
	// StatusError marks a failed operation.
	StatusError = "error"
	// LabelHit is the cache result label for hits.
	LabelHit = "hit"
	// LabelMiss is the cache result label for misses.
	LabelMiss = "miss"
	// LabelUnknown is used when an operation carries no label part.
	LabelUnknown = "unknown"
)

// Histogram bucket configuration constants.
// These define the base values and factors for exponential bucket generation.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart100ms is the starting bucket for 100ms histograms (100ms to ~100s range).
	BucketStart100ms = 0.1
	// BucketStart100B is the starting bucket for 100 byte histograms (100B to ~100MB range).
	BucketStart100B = 100.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor10 is the exponential growth factor of 10 for larger ranges.
	BucketFactor10 = 10

	// BucketCount6 defines 6 exponential buckets.
	BucketCount6 = 6
	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// Time and conversion constants.
const (
	// ShutdownTimeout is the timeout for graceful shutdown operations.
	ShutdownTimeout = 5 * time.Second
)

// String parsing constants.
const (
	// SplitPartsCount is the expected number of parts when splitting operation strings.
	SplitPartsCount = 2
)
