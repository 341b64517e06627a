// Package importdata implements the command that loads the CSV reference
// tables into the configured SQL database.
package importdata

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/datastore"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/refdata"
)

// Command creates the import command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import CSV reference tables into the database",
		Long: "Read the soil, weather, disease and supplement CSV tables and replace the " +
			"reference tables of the sqlite or mysql database configured under refdata.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings)
		},
	}

	cmd.Flags().StringVar(&settings.RefData.Dir, "dir", settings.RefData.Dir, "Directory holding the CSV tables")
	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings) error {
	log := logger.Global().Module("import")
	dir := settings.ResolvePath(settings.RefData.Dir)
	if dir == "" {
		return errors.Newf("no CSV directory given").
			Component("cli").
			Category(errors.CategoryConfiguration).
			Build()
	}

	tables, err := refdata.ReadCSV(os.DirFS(dir))
	if err != nil {
		return err
	}
	// Reject tables the engine would refuse to load.
	if _, err := refdata.New(tables); err != nil {
		return err
	}

	ds := datastore.New(settings)
	if ds == nil {
		return errors.Newf("refdata source %q is not a database, use sqlite or mysql", settings.RefData.Source).
			Component("cli").
			Category(errors.CategoryConfiguration).
			Context("source", settings.RefData.Source).
			Build()
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Warn("closing datastore failed", logger.Error(err))
		}
	}()

	if err := ds.ReplaceTables(cmd.Context(), tables); err != nil {
		return err
	}

	log.Info("reference data imported",
		logger.String("dir", dir),
		logger.String("source", settings.RefData.Source),
		logger.Int("soil", len(tables.Soil)),
		logger.Int("weather", len(tables.Weather)),
		logger.Int("diseases", len(tables.Diseases)),
		logger.Int("supplements", len(tables.Supplements)))
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d soil, %d weather, %d disease and %d supplement rows\n",
		len(tables.Soil), len(tables.Weather), len(tables.Diseases), len(tables.Supplements))
	return nil
}
