package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/agrisense/cmd/configure"
	"github.com/tphakala/agrisense/cmd/diagnose"
	"github.com/tphakala/agrisense/cmd/forecast"
	"github.com/tphakala/agrisense/cmd/importdata"
	"github.com/tphakala/agrisense/cmd/regions"
	"github.com/tphakala/agrisense/cmd/serve"
	"github.com/tphakala/agrisense/internal/buildinfo"
	"github.com/tphakala/agrisense/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings, build buildinfo.BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "agrisense",
		Short:         "Crop disease diagnosis and yield forecasting",
		Version:       fmt.Sprintf("%s (built %s)", build.GetVersion(), build.GetBuildDate()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		forecast.Command(settings),
		diagnose.Command(settings),
		regions.Command(settings),
		importdata.Command(settings),
		configure.Command(),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Main.DataDir, "datadir", viper.GetString("main.datadir"), "Base directory for relative artifact paths")
	rootCmd.PersistentFlags().StringVar(&settings.RefData.Source, "refdata", viper.GetString("refdata.source"), "Reference data source: builtin, csv, sqlite or mysql")
	rootCmd.PersistentFlags().StringVar(&settings.RefData.Dir, "refdata-dir", viper.GetString("refdata.dir"), "Directory holding the reference CSV tables")

	// Flag names differ from the config keys they override.
	bindings := map[string]string{
		"debug":          "debug",
		"main.datadir":   "datadir",
		"refdata.source": "refdata",
		"refdata.dir":    "refdata-dir",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
