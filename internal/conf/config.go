// config.go: settings struct for agrisense and functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/agrisense/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings holds process-wide identity settings.
type MainSettings struct {
	Name    string // instance name reported in health output
	DataDir string // base directory for relative artifact paths
}

// WebServerSettings contains settings for the HTTP API.
type WebServerSettings struct {
	Enabled      bool          // true to serve the HTTP API
	Host         string        // listen address
	Port         string        // listen port
	ReadTimeout  time.Duration // http.Server read timeout
	WriteTimeout time.Duration // http.Server write timeout
	BodyLimit    string        // echo body limit, e.g. "10M" for image uploads
	CORSOrigins  []string      // allowed origins, empty disables CORS
}

// DiseaseModelSettings locates and configures the leaf image classifier.
type DiseaseModelSettings struct {
	Enabled bool      // false leaves diagnosis unavailable
	Path    string    // .tflite artifact, local path or s3://bucket/key
	Threads int       // interpreter threads, 0 = runtime.NumCPU()
	Layout  string    // tensor layout: NCHW or NHWC
	Mean    []float64 // per-channel normalization mean, empty = identity
	Std     []float64 // per-channel normalization std, empty = identity
}

// YieldModelSettings locates the yield ensemble and its manifest.
type YieldModelSettings struct {
	Enabled  bool   // false leaves forecasting unavailable
	Path     string // ensemble JSON artifact
	Manifest string // feature manifest YAML
}

// ModelSettings groups the two model artifacts.
type ModelSettings struct {
	Disease DiseaseModelSettings
	Yield   YieldModelSettings
}

// MySQLSettings contains connection settings for the MySQL reference store.
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// SQLiteSettings contains settings for the SQLite reference store.
type SQLiteSettings struct {
	Path string
}

// RefDataSettings selects where reference tables are read from.
type RefDataSettings struct {
	Source string // builtin, csv, sqlite or mysql
	Dir    string // directory holding the CSV tables
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// WeatherSettings configures the live weather provider.
type WeatherSettings struct {
	Provider string        // none or openweather
	APIKey   string        // OpenWeather API key
	Endpoint string        // OpenWeather current weather endpoint
	Country  string        // country code appended to the region query
	Timeout  time.Duration // HTTP timeout for provider requests
	CacheTTL time.Duration // how long a fetched observation is reused
}

// S3Settings configures the S3 artifact source.
type S3Settings struct {
	Region          string
	Endpoint        string // custom endpoint for MinIO and other S3 compatible stores
	UsePathStyle    bool
	AccessKeyID     string // empty uses the default credential chain
	SecretAccessKey string
}

// ArtifactSettings configures artifact fetching.
type ArtifactSettings struct {
	S3 S3Settings
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
}

// TelemetrySettings groups telemetry outputs.
type TelemetrySettings struct {
	Sentry  SentrySettings
	Metrics MetricsSettings
}

// EngineSettings contains request policy knobs.
type EngineSettings struct {
	AllowUnlistedRegions bool    // accept regions outside the reference tables when all overrides are supplied
	CropWaterNeedMM      float64 // default daily crop water need used for irrigation advice
}

// Settings contains all configuration options for agrisense.
type Settings struct {
	Debug bool

	Main      MainSettings
	Logging   logger.LoggingConfig
	WebServer WebServerSettings
	Models    ModelSettings
	RefData   RefDataSettings
	Weather   WeatherSettings
	Artifacts ArtifactSettings
	Telemetry TelemetrySettings
	Engine    EngineSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		// invalid env values are reported but do not stop startup;
		// ValidateSettings rejects values that would break the service
		fmt.Fprintln(os.Stderr, err)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// run on defaults and environment only
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// WriteDefaultConfig writes the embedded default config.yaml to path, creating
// parent directories. An existing file is left untouched.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading it on first use.
func Setting() *Settings {
	if s := GetSettings(); s != nil {
		return s
	}
	s, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading settings: %v\n", err)
		os.Exit(1)
	}
	return s
}
