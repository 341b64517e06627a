// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/agrisense/internal/logger"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "AGRISENSE_DEBUG", validateEnvBool},
		{"logging.default_level", "AGRISENSE_LOG_LEVEL", validateEnvLogLevel},

		{"webserver.host", "AGRISENSE_HOST", nil},
		{"webserver.port", "AGRISENSE_PORT", validateEnvPort},

		{"models.disease.path", "AGRISENSE_DISEASE_MODEL", validateEnvArtifactPath},
		{"models.disease.threads", "AGRISENSE_DISEASE_THREADS", validateEnvThreads},
		{"models.yield.path", "AGRISENSE_YIELD_MODEL", validateEnvArtifactPath},
		{"models.yield.manifest", "AGRISENSE_YIELD_MANIFEST", validateEnvArtifactPath},

		{"refdata.source", "AGRISENSE_REFDATA_SOURCE", validateEnvRefDataSource},
		{"refdata.dir", "AGRISENSE_REFDATA_DIR", nil},
		{"refdata.sqlite.path", "AGRISENSE_SQLITE_PATH", nil},
		{"refdata.mysql.host", "AGRISENSE_MYSQL_HOST", nil},
		{"refdata.mysql.port", "AGRISENSE_MYSQL_PORT", validateEnvPort},
		{"refdata.mysql.username", "AGRISENSE_MYSQL_USERNAME", nil},
		{"refdata.mysql.password", "AGRISENSE_MYSQL_PASSWORD", nil},
		{"refdata.mysql.database", "AGRISENSE_MYSQL_DATABASE", nil},

		{"weather.provider", "AGRISENSE_WEATHER_PROVIDER", validateEnvWeatherProvider},
		{"weather.apikey", "AGRISENSE_OPENWEATHER_API_KEY", nil},
		{"weather.cachettl", "AGRISENSE_WEATHER_CACHE_TTL", validateEnvDuration},

		{"artifacts.s3.region", "AGRISENSE_S3_REGION", nil},
		{"artifacts.s3.endpoint", "AGRISENSE_S3_ENDPOINT", validateEnvURL},
		{"artifacts.s3.usepathstyle", "AGRISENSE_S3_PATH_STYLE", validateEnvBool},
		{"artifacts.s3.accesskeyid", "AGRISENSE_S3_ACCESS_KEY_ID", nil},
		{"artifacts.s3.secretaccesskey", "AGRISENSE_S3_SECRET_ACCESS_KEY", nil},

		{"telemetry.sentry.enabled", "AGRISENSE_SENTRY_ENABLED", validateEnvBool},
		{"telemetry.sentry.dsn", "AGRISENSE_SENTRY_DSN", nil},

		{"engine.allowunlistedregions", "AGRISENSE_ALLOW_UNLISTED_REGIONS", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	if !logger.ValidLevel(value) {
		return fmt.Errorf("must be one of trace, debug, info, warn, error")
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvThreads(value string) error {
	threads, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid thread count: %w", err)
	}
	if threads < 0 {
		return fmt.Errorf("thread count cannot be negative, got %d", threads)
	}
	return nil
}

func validateEnvDuration(value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

func validateEnvArtifactPath(value string) error {
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("path contains a NUL byte")
	}
	if strings.HasPrefix(value, "s3://") && len(strings.TrimPrefix(value, "s3://")) == 0 {
		return fmt.Errorf("s3 path needs a bucket and key")
	}
	return nil
}

func validateEnvRefDataSource(value string) error {
	if !isValidRefDataSource(value) {
		return fmt.Errorf("must be one of %s", strings.Join(refDataSources, ", "))
	}
	return nil
}

func validateEnvWeatherProvider(value string) error {
	if !isValidWeatherProvider(value) {
		return fmt.Errorf("must be one of %s", strings.Join(weatherProviders, ", "))
	}
	return nil
}
