package weather

import (
	"context"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/agrisense/internal/refdata"
)

const testEndpoint = "https://api.openweathermap.org/data/2.5/weather"

// setupHTTPMock activates httpmock on the default transport for the test.
func setupHTTPMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

// newTestProvider returns an OpenWeather provider that does not wait between retries.
func newTestProvider(t *testing.T) *OpenWeatherProvider {
	t.Helper()
	p := NewOpenWeatherProvider("test-api-key", testEndpoint, "", 0, nil)
	p.retryDelay = 0
	return p
}

// builtinStore loads the embedded reference tables.
func builtinStore(t *testing.T) *refdata.Store {
	t.Helper()
	store, err := refdata.Builtin()
	require.NoError(t, err)
	return store
}

// openWeatherSuccessResponse returns a valid OpenWeather API response JSON string.
func openWeatherSuccessResponse() string {
	return `{
  "coord": { "lon": 75.34, "lat": 31.15 },
  "weather": [{ "id": 500, "main": "Rain", "description": "light rain", "icon": "10d" }],
  "base": "stations",
  "main": { "temp": 29.4, "feels_like": 33.1, "temp_min": 28.9, "temp_max": 30.2, "pressure": 1004, "humidity": 78 },
  "visibility": 6000,
  "wind": { "speed": 3.1, "deg": 240 },
  "rain": { "1h": 2.5 },
  "clouds": { "all": 75 },
  "dt": 1736769600,
  "sys": { "country": "IN" },
  "name": "Punjab",
  "cod": 200
}`
}

// registerOpenWeatherResponder registers a mock responder for OpenWeather API.
func registerOpenWeatherResponder(t *testing.T, statusCode int, body string) {
	t.Helper()

	httpmock.RegisterResponder("GET", `=~^https://api\.openweathermap\.org/data/2\.5/weather`,
		httpmock.NewStringResponder(statusCode, body))
}

// stubProvider is a Provider returning a fixed observation or error.
type stubProvider struct {
	obs   Observation
	err   error
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Fetch(_ context.Context, region string) (Observation, error) {
	s.calls++
	if s.err != nil {
		return Observation{}, s.err
	}
	obs := s.obs
	obs.Region = region
	return obs, nil
}
