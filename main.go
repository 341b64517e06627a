package main

import (
	"fmt"
	"os"

	"github.com/tphakala/agrisense/cmd"
	"github.com/tphakala/agrisense/internal/buildinfo"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/telemetry"
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	if settings.Debug && settings.Logging.DefaultLevel == "" {
		settings.Logging.DefaultLevel = "debug"
	}
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		return 1
	}
	logger.SetGlobal(central)
	defer func() { _ = central.Close() }()

	build := buildinfo.Current()
	flush, err := telemetry.InitSentry(settings, build.GetVersion())
	if err != nil {
		// telemetry is optional, keep running without it
		central.Module("main").Warn("telemetry disabled", logger.Error(err))
		flush = func() {}
	}
	defer flush()

	root := cmd.RootCommand(settings, build)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
