package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// since every instance owns its registry.
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 50

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if m.registry == nil || m.Engine == nil || m.Weather == nil || m.HTTP == nil {
				t.Error("metrics not fully initialized")
			}
		})
	}
	wg.Wait()
}

func TestHandlerExposesEngineMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.Engine.RecordOperation("forecast", "returned")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agrisense_predictions_total{capability="forecast",state="returned"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
