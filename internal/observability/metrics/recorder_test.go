package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestRecorder(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	assert.False(t, recorder.HasRecordedMetrics())

	recorder.RecordOperation(OpForecast, "returned")
	recorder.RecordOperation(OpForecast, "returned")
	recorder.RecordOperation(OpForecast, "rejected")
	recorder.RecordDuration(OpForecast, 0.25)
	recorder.RecordError(OpForecast, "validation")

	assert.Equal(t, 2, recorder.GetOperationCount(OpForecast, "returned"))
	assert.Equal(t, 1, recorder.GetOperationCount(OpForecast, "rejected"))
	assert.Zero(t, recorder.GetOperationCount(OpDiagnose, "returned"))
	assert.Equal(t, []float64{0.25}, recorder.GetDurations(OpForecast))
	assert.Nil(t, recorder.GetDurations(OpDiagnose))
	assert.Equal(t, 1, recorder.GetErrorCount(OpForecast, "validation"))
	assert.True(t, recorder.HasRecordedMetrics())
}

func TestTestRecorderThreadSafety(t *testing.T) {
	t.Parallel()

	recorder := NewTestRecorder()
	const numGoroutines, opsPerGoroutine = 10, 100

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			for range opsPerGoroutine {
				recorder.RecordOperation("concurrent", "success")
				recorder.RecordDuration("concurrent", 0.001)
				recorder.RecordError("concurrent", "test")
			}
		})
	}
	wg.Wait()

	expected := numGoroutines * opsPerGoroutine
	assert.Equal(t, expected, recorder.GetOperationCount("concurrent", "success"))
	assert.Len(t, recorder.GetDurations("concurrent"), expected)
	assert.Equal(t, expected, recorder.GetErrorCount("concurrent", "test"))
}

func TestNoOpRecorder(t *testing.T) {
	t.Parallel()

	var recorder Recorder = NewNoOpRecorder()
	recorder.RecordOperation("test", "success")
	recorder.RecordDuration("test", 0.123)
	recorder.RecordError("test", "error")
}

func TestSplitOperation(t *testing.T) {
	t.Parallel()

	op, label := splitOperation("model_load:disease")
	assert.Equal(t, OpModelLoad, op)
	assert.Equal(t, "disease", label)

	op, label = splitOperation(OpForecast)
	assert.Equal(t, OpForecast, op)
	assert.Equal(t, LabelUnknown, label)
}

func TestEngineMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewEngineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordOperation(OpForecast, "returned")
	m.RecordOperation(OpForecast, "rejected")
	m.RecordError(OpForecast, "validation")
	m.RecordDuration(OpForecast, 0.01)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.PredictionTotal.WithLabelValues(OpForecast, "returned")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.PredictionErrors.WithLabelValues(OpForecast, "validation")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PredictionDuration))

	m.RecordOperation(OpModelLoad+":yield", ArtifactLoaded)
	m.RecordOperation(OpModelLoad+":disease", ArtifactMissing)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ModelLoadedGauge.WithLabelValues("yield")), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.ModelLoadedGauge.WithLabelValues("disease")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ModelLoadTotal.WithLabelValues("disease", ArtifactMissing)), 1e-9)
	// model loads are not counted as prediction requests
	assert.Equal(t, 2, testutil.CollectAndCount(m.PredictionTotal))
}

func TestEngineMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewEngineMetrics(registry)
	require.NoError(t, err)
	_, err = NewEngineMetrics(registry)
	require.Error(t, err)
}

func TestWeatherAndHTTPMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	w, err := NewWeatherMetrics(registry)
	require.NoError(t, err)
	h, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	w.RecordWeatherFetch("openweather", StatusSuccess)
	w.RecordWeatherCacheLookup(LabelHit)
	w.RecordWeatherValidationError("temperature")
	assert.InDelta(t, 1.0, testutil.ToFloat64(w.weatherFetchesTotal.WithLabelValues("openweather", StatusSuccess)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(w.weatherCacheTotal.WithLabelValues(LabelHit)), 1e-9)

	h.RequestStarted()
	h.RecordHTTPRequest("GET", "/api/v2/regions", 200, 0.002)
	h.RequestFinished()
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.httpRequestsTotal.WithLabelValues("GET", "/api/v2/regions", "200")), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(h.httpInFlight), 1e-9)
}
