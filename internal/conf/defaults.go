// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "agrisense")
	viper.SetDefault("main.datadir", "data")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/agrisense.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.host", "")
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.readtimeout", 30*time.Second)
	viper.SetDefault("webserver.writetimeout", 60*time.Second)
	viper.SetDefault("webserver.bodylimit", "10M")
	viper.SetDefault("webserver.corsorigins", []string{})

	viper.SetDefault("models.disease.enabled", true)
	viper.SetDefault("models.disease.path", "models/plant_disease.tflite")
	viper.SetDefault("models.disease.threads", 0)
	viper.SetDefault("models.disease.layout", "NCHW")
	viper.SetDefault("models.disease.mean", []float64{})
	viper.SetDefault("models.disease.std", []float64{})

	viper.SetDefault("models.yield.enabled", true)
	viper.SetDefault("models.yield.path", "models/yield_ensemble.json")
	viper.SetDefault("models.yield.manifest", "models/yield_manifest.yaml")

	viper.SetDefault("refdata.source", "builtin")
	viper.SetDefault("refdata.dir", "data")
	viper.SetDefault("refdata.sqlite.path", "data/agrisense.db")
	viper.SetDefault("refdata.mysql.host", "localhost")
	viper.SetDefault("refdata.mysql.port", "3306")
	viper.SetDefault("refdata.mysql.username", "")
	viper.SetDefault("refdata.mysql.password", "")
	viper.SetDefault("refdata.mysql.database", "agrisense")

	viper.SetDefault("weather.provider", "none")
	viper.SetDefault("weather.apikey", "")
	viper.SetDefault("weather.endpoint", "https://api.openweathermap.org/data/2.5/weather")
	viper.SetDefault("weather.country", "IN")
	viper.SetDefault("weather.timeout", 10*time.Second)
	viper.SetDefault("weather.cachettl", 30*time.Minute)

	viper.SetDefault("artifacts.s3.region", "us-east-1")
	viper.SetDefault("artifacts.s3.endpoint", "")
	viper.SetDefault("artifacts.s3.usepathstyle", false)
	viper.SetDefault("artifacts.s3.accesskeyid", "")
	viper.SetDefault("artifacts.s3.secretaccesskey", "")

	viper.SetDefault("telemetry.sentry.enabled", false)
	viper.SetDefault("telemetry.sentry.dsn", "")
	viper.SetDefault("telemetry.sentry.environment", "production")
	viper.SetDefault("telemetry.metrics.enabled", true)

	viper.SetDefault("engine.allowunlistedregions", false)
	viper.SetDefault("engine.cropwaterneedmm", 40.0)
}
