// Package weather provides current weather observations per region from a
// live provider, falling back to the reference climate tables.
package weather

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/observability/metrics"
	"github.com/tphakala/agrisense/internal/refdata"
)

// Observation sources.
const (
	SourceOpenWeather = "openweathermap"
	SourceReference   = "reference"
)

// DefaultCacheTTL is used when no cache TTL is configured.
const DefaultCacheTTL = 30 * time.Minute

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the weather module logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("weather")
	})
	return pkgLogger
}

// Observation is a weather reading in the units the yield model expects.
type Observation struct {
	Region             string    `json:"state"`
	AvgTempC           float64   `json:"avg_temp_c"`
	TotalRainfallMM    float64   `json:"total_rainfall_mm"`
	AvgHumidityPercent float64   `json:"avg_humidity_percent"`
	Description        string    `json:"description,omitempty"`
	Time               time.Time `json:"timestamp"`
	Source             string    `json:"source"`
	Fallback           bool      `json:"fallback,omitempty"` // live fetch failed and reference data was served
}

// Provider represents a weather data provider interface
type Provider interface {
	Name() string
	Fetch(ctx context.Context, region string) (Observation, error)
}

// Plausible observation ranges, inclusive.
var (
	tempRange     = [2]float64{-10, 55}
	rainfallRange = [2]float64{0, 5000}
	humidityRange = [2]float64{10, 100}
)

func within(v float64, r [2]float64) bool {
	return !math.IsNaN(v) && v >= r[0] && v <= r[1]
}

// Validate checks an observation for realistic values. The returned error
// lists every implausible field under the "fields" context key.
func Validate(obs Observation) error {
	var fields []string
	if !within(obs.AvgTempC, tempRange) {
		fields = append(fields, "avg_temp_c")
	}
	if !within(obs.TotalRainfallMM, rainfallRange) {
		fields = append(fields, "total_rainfall_mm")
	}
	if !within(obs.AvgHumidityPercent, humidityRange) {
		fields = append(fields, "avg_humidity_percent")
	}
	if len(fields) == 0 {
		return nil
	}
	return errors.Newf("implausible weather observation for %s: %s", obs.Region, strings.Join(fields, ", ")).
		Component("weather").
		Category(errors.CategoryValidation).
		Context("fields", fields).
		Context("source", obs.Source).
		Build()
}

// ReferenceProvider serves the long term climate averages from reference data.
type ReferenceProvider struct {
	store *refdata.Store
}

// NewReferenceProvider creates a provider backed by store.
func NewReferenceProvider(store *refdata.Store) *ReferenceProvider {
	return &ReferenceProvider{store: store}
}

// Name implements Provider.
func (p *ReferenceProvider) Name() string { return SourceReference }

// Fetch implements Provider.
func (p *ReferenceProvider) Fetch(_ context.Context, region string) (Observation, error) {
	w, err := p.store.LookupWeather(region)
	if err != nil {
		return Observation{}, err
	}
	return Observation{
		Region:             w.Region,
		AvgTempC:           w.AvgTempC,
		TotalRainfallMM:    w.TotalRainfallMM,
		AvgHumidityPercent: w.AvgHumidityPercent,
		Time:               time.Now().UTC(),
		Source:             SourceReference,
	}, nil
}

// Service handles weather data operations
type Service struct {
	live      Provider // nil when no live provider is configured
	reference *ReferenceProvider
	cache     *cache.Cache
	metrics   *metrics.WeatherMetrics
}

// NewService creates a weather service using the provider named in settings.
func NewService(settings *conf.Settings, store *refdata.Store, weatherMetrics *metrics.WeatherMetrics) (*Service, error) {
	ws := settings.Weather

	var live Provider
	switch strings.ToLower(ws.Provider) {
	case "", "none":
	case providerOpenWeather:
		if ws.APIKey == "" {
			return nil, newWeatherError(fmt.Errorf("OpenWeather API key not configured"),
				errors.CategoryConfiguration, "create_service", providerOpenWeather)
		}
		live = NewOpenWeatherProvider(ws.APIKey, ws.Endpoint, ws.Country, ws.Timeout, weatherMetrics)
	default:
		return nil, errors.New(fmt.Errorf("invalid weather provider: %s", ws.Provider)).
			Component("weather").
			Category(errors.CategoryConfiguration).
			Context("provider", ws.Provider).
			Build()
	}

	return NewServiceWithProvider(live, store, ws.CacheTTL, weatherMetrics), nil
}

// NewServiceWithProvider creates a service around an explicit live provider,
// which may be nil.
func NewServiceWithProvider(live Provider, store *refdata.Store, ttl time.Duration, weatherMetrics *metrics.WeatherMetrics) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		live:      live,
		reference: NewReferenceProvider(store),
		cache:     cache.New(ttl, 2*ttl),
		metrics:   weatherMetrics,
	}
}

// HasLiveProvider reports whether live observations can be requested.
func (s *Service) HasLiveProvider() bool { return s.live != nil }

// Reference returns the reference observation for region.
func (s *Service) Reference(ctx context.Context, region string) (Observation, error) {
	return s.reference.Fetch(ctx, region)
}

// Current returns an observation for region. With live set and a live
// provider configured, a fresh or cached live observation is returned; a
// failed or implausible live fetch falls back to reference data with
// Fallback set. Without live the reference data is returned directly.
func (s *Service) Current(ctx context.Context, region string, live bool) (Observation, error) {
	ref, err := s.reference.Fetch(ctx, region)
	if err != nil {
		return Observation{}, err
	}
	if !live || s.live == nil {
		return ref, nil
	}

	key := strings.ToLower(ref.Region)
	if cached, ok := s.cache.Get(key); ok {
		s.recordCache(metrics.LabelHit)
		return cached.(Observation), nil
	}
	s.recordCache(metrics.LabelMiss)

	obs, err := s.fetchLive(ctx, ref.Region)
	if err != nil {
		GetLogger().Warn("live weather unavailable, serving reference data",
			logger.String("region", ref.Region),
			logger.String("provider", s.live.Name()),
			logger.Error(err))
		ref.Fallback = true
		return ref, nil
	}

	s.cache.Set(key, obs, cache.DefaultExpiration)
	return obs, nil
}

func (s *Service) fetchLive(ctx context.Context, region string) (Observation, error) {
	provider := s.live.Name()
	start := time.Now()

	obs, err := s.live.Fetch(ctx, region)
	if s.metrics != nil {
		s.metrics.RecordWeatherFetchDuration(provider, time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordWeatherFetch(provider, metrics.StatusError)
			s.metrics.RecordWeatherFetchError(provider, string(errors.CategoryOf(err)))
		}
		return Observation{}, err
	}

	obs.Region = region
	if err := Validate(obs); err != nil {
		if s.metrics != nil {
			s.metrics.RecordWeatherFetch(provider, metrics.StatusError)
			s.metrics.RecordWeatherValidationError(provider)
		}
		return Observation{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordWeatherFetch(provider, metrics.StatusSuccess)
	}
	GetLogger().Debug("live weather fetched",
		logger.String("region", region),
		logger.Float64("temp_c", obs.AvgTempC),
		logger.Float64("rainfall_mm", obs.TotalRainfallMM),
		logger.Float64("humidity", obs.AvgHumidityPercent))
	return obs, nil
}

func (s *Service) recordCache(result string) {
	if s.metrics != nil {
		s.metrics.RecordWeatherCacheLookup(result)
	}
}
