package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/observability/metrics"
)

const (
	// DefaultOpenWeatherEndpoint is the current weather endpoint.
	DefaultOpenWeatherEndpoint = "https://api.openweathermap.org/data/2.5/weather"
	// DefaultCountry is appended to region queries.
	DefaultCountry = "IN"

	providerOpenWeather = "openweather"
	// hoursPerDay converts the last hour of rain into a daily figure.
	hoursPerDay = 24
)

// OpenWeatherResponse represents the subset of the OpenWeather current weather
// response used for agronomic observations.
type OpenWeatherResponse struct {
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Rain struct {
		OneHour    float64 `json:"1h"`
		ThreeHours float64 `json:"3h"`
	} `json:"rain"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}

// OpenWeatherProvider fetches current conditions for a region by name.
type OpenWeatherProvider struct {
	apiKey     string
	endpoint   string
	country    string
	client     *http.Client
	retryDelay time.Duration
	metrics    *metrics.WeatherMetrics
}

// NewOpenWeatherProvider creates a new OpenWeather provider. Empty endpoint
// and country use the defaults; a non-positive timeout uses RequestTimeout.
func NewOpenWeatherProvider(apiKey, endpoint, country string, timeout time.Duration, m *metrics.WeatherMetrics) *OpenWeatherProvider {
	if endpoint == "" {
		endpoint = DefaultOpenWeatherEndpoint
	}
	if country == "" {
		country = DefaultCountry
	}
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	return &OpenWeatherProvider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		country:    country,
		client:     &http.Client{Timeout: timeout},
		retryDelay: RetryDelay,
		metrics:    m,
	}
}

// Name implements Provider.
func (p *OpenWeatherProvider) Name() string { return providerOpenWeather }

func (p *OpenWeatherProvider) requestURL(region string) string {
	q := url.Values{}
	q.Set("q", region+","+p.country)
	q.Set("appid", p.apiKey)
	q.Set("units", "metric")
	return p.endpoint + "?" + q.Encode()
}

// requestError describes a failed call to the endpoint. The key-bearing
// request URL is never recorded, only the endpoint class and timeout.
func (p *OpenWeatherProvider) requestError(err error, category errors.ErrorCategory, retried bool) error {
	// url.Error embeds the full request URL, appid included
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s %s: %w", urlErr.Op, p.endpoint, urlErr.Err)
	}
	b := errors.New(err).
		Component("weather").
		Category(category).
		Context("operation", "fetch_weather").
		Context("provider", providerOpenWeather).
		NetworkContext(p.endpoint, p.client.Timeout)
	if retried {
		b = b.Context("max_retries", strconv.Itoa(MaxRetries))
	}
	return b.Build()
}

// retryable reports whether a response status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Fetch implements Provider. Server errors and transport failures are retried
// up to MaxRetries times; client errors fail immediately.
func (p *OpenWeatherProvider) Fetch(ctx context.Context, region string) (Observation, error) {
	if p.apiKey == "" {
		return Observation{}, newWeatherError(fmt.Errorf("OpenWeather API key not configured"),
			errors.CategoryConfiguration, "fetch_weather", providerOpenWeather)
	}

	var body []byte
	for attempt := range MaxRetries {
		if attempt > 0 {
			if err := sleepContext(ctx, p.retryDelay); err != nil {
				return Observation{}, newWeatherError(err, errors.CategoryNetwork, "fetch_weather", providerOpenWeather)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.requestURL(region), http.NoBody)
		if err != nil {
			return Observation{}, newWeatherError(err, errors.CategoryNetwork, "create_request", providerOpenWeather)
		}
		req.Header.Set("User-Agent", UserAgent)

		resp, err := p.client.Do(req)
		if err != nil {
			if attempt == MaxRetries-1 || ctx.Err() != nil {
				return Observation{}, p.requestError(err, errors.CategoryNetwork, true)
			}
			GetLogger().Debug("weather request failed, retrying",
				logger.String("region", region),
				logger.Int("attempt", attempt+1),
				logger.Error(err))
			continue
		}

		p.recordRequest(resp.StatusCode)
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			statusErr := fmt.Errorf("received non-200 response: %d", resp.StatusCode)
			if !retryable(resp.StatusCode) {
				category := errors.CategoryHTTP
				if resp.StatusCode == http.StatusNotFound {
					category = errors.CategoryNotFound
				}
				return Observation{}, p.requestError(statusErr, category, false)
			}
			if attempt == MaxRetries-1 {
				return Observation{}, p.requestError(statusErr, errors.CategoryHTTP, true)
			}
			continue
		}

		body, err = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return Observation{}, newWeatherError(err, errors.CategoryNetwork, "read_response", providerOpenWeather)
		}
		break
	}

	var data OpenWeatherResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return Observation{}, newWeatherError(err, errors.CategoryFileParsing, "parse_response", providerOpenWeather)
	}
	if len(data.Weather) == 0 {
		return Observation{}, newWeatherError(fmt.Errorf("no weather conditions returned from API"),
			errors.CategoryFileParsing, "parse_response", providerOpenWeather)
	}

	obs := Observation{
		Region:             region,
		AvgTempC:           data.Main.Temp,
		TotalRainfallMM:    data.Rain.OneHour * hoursPerDay,
		AvgHumidityPercent: data.Main.Humidity,
		Description:        data.Weather[0].Description,
		Time:               time.Unix(data.Dt, 0).UTC(),
		Source:             SourceOpenWeather,
	}
	return obs, nil
}

func (p *OpenWeatherProvider) recordRequest(status int) {
	if p.metrics != nil {
		p.metrics.RecordWeatherProviderRequest(providerOpenWeather, http.MethodGet, strconv.Itoa(status))
	}
}
