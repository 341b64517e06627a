// Package serve implements the HTTP API command.
package serve

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/agrisense/internal/api"
	"github.com/tphakala/agrisense/internal/artifacts"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/engine"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/observability"
	"github.com/tphakala/agrisense/internal/observability/metrics"
	"github.com/tphakala/agrisense/internal/weather"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the diagnosis and forecast API",
		Long:  "Load the models and reference data once and serve the JSON API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Address to listen on")
	cmd.Flags().StringVarP(&settings.WebServer.Port, "port", "p", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().BoolVar(&settings.Telemetry.Metrics.Enabled, "metrics", viper.GetBool("telemetry.metrics.enabled"), "Expose Prometheus metrics on /api/v2/metrics")

	for key, flag := range map[string]string{
		"webserver.host":            "host",
		"webserver.port":            "port",
		"telemetry.metrics.enabled": "metrics",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

func run(cmd *cobra.Command, settings *conf.Settings) error {
	ctx := cmd.Context()
	log := logger.Global().Module("serve")

	var (
		m        *observability.Metrics
		recorder metrics.Recorder
		weatherM *metrics.WeatherMetrics
	)
	if settings.Telemetry.Metrics.Enabled {
		var err error
		if m, err = observability.NewMetrics(); err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		recorder, weatherM = m.Engine, m.Weather
	}

	eng, err := engine.Load(ctx, settings, artifacts.New(settings), recorder)
	if err != nil {
		return fmt.Errorf("failed to load engine: %w", err)
	}

	svc, err := weather.NewService(settings, eng.Store(), weatherM)
	if err != nil {
		_ = eng.Close()
		return fmt.Errorf("failed to initialize weather service: %w", err)
	}

	opts := []api.ServerOption{api.WithEngine(eng), api.WithWeather(svc)}
	if m != nil {
		opts = append(opts, api.WithMetrics(m))
	}
	server, err := api.New(settings, opts...)
	if err != nil {
		_ = eng.Close()
		return err
	}

	h := eng.Health()
	log.Info("agrisense ready",
		logger.String("status", h.Status),
		logger.String("address", server.Config().Address()),
		logger.Int("regions", h.Regions))

	return server.StartWithGracefulShutdown(ctx)
}
