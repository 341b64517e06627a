// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/tphakala/agrisense/internal/logger"
)

var (
	refDataSources   = []string{"builtin", "csv", "sqlite", "mysql"}
	weatherProviders = []string{"none", "openweather"}
	tensorLayouts    = []string{"NCHW", "NHWC"}
)

func isValidRefDataSource(s string) bool   { return slices.Contains(refDataSources, s) }
func isValidWeatherProvider(s string) bool { return slices.Contains(weatherProviders, s) }

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateLoggingSettings,
		validateWebServerSettings,
		validateModelSettings,
		validateRefDataSettings,
		validateWeatherSettings,
		validateTelemetrySettings,
		validateEngineSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}

	return nil
}

func validateLoggingSettings(s *Settings) error {
	var errs []error
	if s.Logging.DefaultLevel != "" && !logger.ValidLevel(s.Logging.DefaultLevel) {
		errs = append(errs, fmt.Errorf("logging: invalid default level %q", s.Logging.DefaultLevel))
	}
	for module, level := range s.Logging.ModuleLevels {
		if !logger.ValidLevel(level) {
			errs = append(errs, fmt.Errorf("logging: invalid level %q for module %s", level, module))
		}
	}
	if fo := s.Logging.FileOutput; fo != nil && fo.Enabled && fo.Path == "" {
		errs = append(errs, errors.New("logging: file output enabled without a path"))
	}
	return errors.Join(errs...)
}

func validateWebServerSettings(s *Settings) error {
	if !s.WebServer.Enabled {
		return nil
	}
	port, err := strconv.Atoi(s.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("webserver: invalid port %q", s.WebServer.Port)
	}
	if s.WebServer.ReadTimeout < 0 || s.WebServer.WriteTimeout < 0 {
		return errors.New("webserver: timeouts cannot be negative")
	}
	return nil
}

func validateModelSettings(s *Settings) error {
	var errs []error
	d := s.Models.Disease
	if d.Enabled {
		if d.Path == "" {
			errs = append(errs, errors.New("models: disease model enabled without a path"))
		}
		if d.Threads < 0 {
			errs = append(errs, fmt.Errorf("models: disease threads cannot be negative, got %d", d.Threads))
		}
		if !slices.Contains(tensorLayouts, strings.ToUpper(d.Layout)) {
			errs = append(errs, fmt.Errorf("models: disease layout must be NCHW or NHWC, got %q", d.Layout))
		}
		if len(d.Mean) != len(d.Std) || (len(d.Mean) != 0 && len(d.Mean) != 3) {
			errs = append(errs, errors.New("models: disease mean and std must both be empty or both hold 3 values"))
		}
		for _, v := range d.Std {
			if v <= 0 {
				errs = append(errs, errors.New("models: disease std values must be positive"))
				break
			}
		}
	}
	y := s.Models.Yield
	if y.Enabled && (y.Path == "" || y.Manifest == "") {
		errs = append(errs, errors.New("models: yield model enabled without path or manifest"))
	}
	return errors.Join(errs...)
}

func validateRefDataSettings(s *Settings) error {
	r := s.RefData
	if !isValidRefDataSource(r.Source) {
		return fmt.Errorf("refdata: source must be one of %s, got %q", strings.Join(refDataSources, ", "), r.Source)
	}
	switch r.Source {
	case "csv":
		if r.Dir == "" {
			return errors.New("refdata: csv source requires dir")
		}
	case "sqlite":
		if r.SQLite.Path == "" {
			return errors.New("refdata: sqlite source requires sqlite.path")
		}
	case "mysql":
		if r.MySQL.Host == "" || r.MySQL.Database == "" || r.MySQL.Username == "" {
			return errors.New("refdata: mysql source requires host, database and username")
		}
	}
	return nil
}

func validateWeatherSettings(s *Settings) error {
	w := s.Weather
	if !isValidWeatherProvider(w.Provider) {
		return fmt.Errorf("weather: provider must be one of %s, got %q", strings.Join(weatherProviders, ", "), w.Provider)
	}
	if w.Provider == "openweather" {
		if w.APIKey == "" {
			return errors.New("weather: openweather provider requires apikey")
		}
		if w.Endpoint == "" {
			return errors.New("weather: openweather provider requires endpoint")
		}
	}
	if w.CacheTTL < 0 || w.Timeout < 0 {
		return errors.New("weather: durations cannot be negative")
	}
	return nil
}

func validateTelemetrySettings(s *Settings) error {
	if s.Telemetry.Sentry.Enabled && s.Telemetry.Sentry.DSN == "" {
		return errors.New("telemetry: sentry enabled without dsn")
	}
	return nil
}

func validateEngineSettings(s *Settings) error {
	if s.Engine.CropWaterNeedMM <= 0 {
		return fmt.Errorf("engine: crop water need must be positive, got %g", s.Engine.CropWaterNeedMM)
	}
	return nil
}
