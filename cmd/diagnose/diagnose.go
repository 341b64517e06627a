// Package diagnose implements the offline leaf image diagnosis command.
package diagnose

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/agrisense/internal/artifacts"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/engine"
	"github.com/tphakala/agrisense/internal/errors"
)

// Command creates the diagnose command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose <image>",
		Short: "Diagnose a plant disease from a leaf image",
		Long:  "Classify a leaf photo and print the disease, its description, prevention steps and suggested supplement as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return errors.New(err).
					Component("cli").
					Category(errors.CategoryFileIO).
					FileContext(args[0], 0).
					Build()
			}

			eng, err := engine.Load(cmd.Context(), settings, artifacts.New(settings), nil)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			res, err := eng.Diagnose(cmd.Context(), image)
			if err != nil {
				return fmt.Errorf("diagnosis failed (%s): %w", engine.StateOf(err), err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
