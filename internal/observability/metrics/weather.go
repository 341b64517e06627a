// Package metrics provides weather service metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WeatherMetrics contains Prometheus metrics for weather service operations
type WeatherMetrics struct {
	registry *prometheus.Registry

	// Weather data fetch metrics
	weatherFetchesTotal     *prometheus.CounterVec
	weatherFetchErrorsTotal *prometheus.CounterVec
	weatherFetchDuration    *prometheus.HistogramVec

	// Weather data validation metrics
	weatherValidationErrorsTotal *prometheus.CounterVec

	// Weather provider metrics
	weatherProviderRequestsTotal *prometheus.CounterVec

	// Cache metrics
	weatherCacheTotal *prometheus.CounterVec
}

// NewWeatherMetrics creates and registers new weather metrics
func NewWeatherMetrics(registry *prometheus.Registry) (*WeatherMetrics, error) {
	m := &WeatherMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *WeatherMetrics) initMetrics() {
	m.weatherFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_fetches_total",
			Help: "Total number of weather data fetch operations",
		},
		[]string{"provider", "status"}, // status: success, error
	)

	m.weatherFetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_fetch_errors_total",
			Help: "Total number of weather fetch errors",
		},
		[]string{"provider", "error_type"},
	)

	m.weatherFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "weather_fetch_duration_seconds",
			Help: "Time taken to fetch weather data",
			// 0.1, 0.2, 0.4, ... 51.2s
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"provider"},
	)

	m.weatherValidationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_validation_errors_total",
			Help: "Total number of weather observations rejected as implausible",
		},
		[]string{"validation_type"},
	)

	m.weatherProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_provider_requests_total",
			Help: "Total number of requests to weather providers",
		},
		[]string{"provider", "method", "status_code"},
	)

	m.weatherCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_cache_lookups_total",
			Help: "Total number of weather cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)
}

// Describe implements prometheus.Collector interface
func (m *WeatherMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.weatherFetchesTotal.Describe(ch)
	m.weatherFetchErrorsTotal.Describe(ch)
	m.weatherFetchDuration.Describe(ch)
	m.weatherValidationErrorsTotal.Describe(ch)
	m.weatherProviderRequestsTotal.Describe(ch)
	m.weatherCacheTotal.Describe(ch)
}

// Collect implements prometheus.Collector interface
func (m *WeatherMetrics) Collect(ch chan<- prometheus.Metric) {
	m.weatherFetchesTotal.Collect(ch)
	m.weatherFetchErrorsTotal.Collect(ch)
	m.weatherFetchDuration.Collect(ch)
	m.weatherValidationErrorsTotal.Collect(ch)
	m.weatherProviderRequestsTotal.Collect(ch)
	m.weatherCacheTotal.Collect(ch)
}

// RecordWeatherFetch records a weather fetch operation
func (m *WeatherMetrics) RecordWeatherFetch(provider, status string) {
	m.weatherFetchesTotal.WithLabelValues(provider, status).Inc()
}

// RecordWeatherFetchError records a weather fetch error
func (m *WeatherMetrics) RecordWeatherFetchError(provider, errorType string) {
	m.weatherFetchErrorsTotal.WithLabelValues(provider, errorType).Inc()
}

// RecordWeatherFetchDuration records the duration of a weather fetch operation
func (m *WeatherMetrics) RecordWeatherFetchDuration(provider string, duration float64) {
	m.weatherFetchDuration.WithLabelValues(provider).Observe(duration)
}

// RecordWeatherValidationError records an observation that failed the plausibility check
func (m *WeatherMetrics) RecordWeatherValidationError(validationType string) {
	m.weatherValidationErrorsTotal.WithLabelValues(validationType).Inc()
}

// RecordWeatherProviderRequest records a request to a weather provider
func (m *WeatherMetrics) RecordWeatherProviderRequest(provider, method, statusCode string) {
	m.weatherProviderRequestsTotal.WithLabelValues(provider, method, statusCode).Inc()
}

// RecordWeatherCacheLookup records a cache hit or miss
func (m *WeatherMetrics) RecordWeatherCacheLookup(result string) {
	m.weatherCacheTotal.WithLabelValues(result).Inc()
}
