// Package telemetry wires opt-in Sentry error reporting into the errors package.
package telemetry

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// FlushTimeout bounds how long Close waits for queued events.
const FlushTimeout = 2 * time.Second

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("telemetry")
	})
	return pkgLogger
}

// InitSentry initializes the Sentry SDK when telemetry is enabled and routes
// enhanced errors to it. Telemetry is opt-in: with Sentry disabled the errors
// package keeps a disabled reporter and nothing leaves the process.
// The returned function flushes pending events and must be called on exit.
func InitSentry(settings *conf.Settings, version string) (func(), error) {
	sc := settings.Telemetry.Sentry
	errors.SetPrivacyScrubber(ScrubMessage)

	if !sc.Enabled {
		errors.SetTelemetryReporter(errors.NewSentryReporter(false))
		GetLogger().Debug("sentry telemetry is disabled (opt-in required)")
		return func() {}, nil
	}
	if sc.DSN == "" {
		return nil, errors.Newf("sentry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("setting", "telemetry.sentry.dsn").
			Build()
	}

	environment := sc.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              sc.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "", // no hostname leakage
		Release:          fmt.Sprintf("agrisense@%s", version),
		BeforeSend:       beforeSend,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("instance", settings.Main.Name)
		scope.SetContext("platform", map[string]any{
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"num_cpu":    runtime.NumCPU(),
			"go_version": runtime.Version(),
		})
	})
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))

	GetLogger().Info("sentry telemetry initialized", logger.String("environment", environment))
	return func() { sentry.Flush(FlushTimeout) }, nil
}

// beforeSend strips identifying data from every outgoing event.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	return applyPrivacyFilters(event)
}

func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// ScrubMessage masks credentials and uploaded-file paths in a message.
func ScrubMessage(message string) string {
	message = logger.RedactSensitiveData(message)
	return pathRegex.ReplaceAllString(message, "[PATH]")
}
