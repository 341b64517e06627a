// Package regions implements the command listing the known regions.
package regions

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/refdata"
)

// Command creates the regions command.
func Command(settings *conf.Settings) *cobra.Command {
	var soil bool

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List the regions known to the reference data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := refdata.Load(cmd.Context(), settings)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, region := range store.ListRegions() {
				if !soil {
					fmt.Fprintln(out, region)
					continue
				}
				p, err := store.LookupSoil(region)
				if err != nil {
					fmt.Fprintf(out, "%-24s -\n", region)
					continue
				}
				fmt.Fprintf(out, "%-24s N=%.1f P=%.1f K=%.1f pH=%.2f (%s)\n",
					region, p.Nitrogen, p.Phosphorus, p.Potassium, p.PH, refdata.SoilTypeForPH(p.PH))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&soil, "soil", false, "Include each region's soil profile")
	return cmd
}
