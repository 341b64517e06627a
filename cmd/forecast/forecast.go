// Package forecast implements the offline yield forecast command.
package forecast

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tphakala/agrisense/internal/artifacts"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/engine"
	"github.com/tphakala/agrisense/internal/weather"
)

// options mirrors the numeric request fields; only flags the user set are
// copied into the request so the rest is filled from reference data.
type options struct {
	region        string
	crop          string
	n, p, k, ph   float64
	temp, rain    float64
	humidity      float64
	targetYield   float64
	year          int
	allowUnlisted bool
	liveWeather   bool
}

// Command creates the forecast command.
func Command(settings *conf.Settings) *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast the yield for a region",
		Long: "Estimate the crop yield for a region and print the derived soil, irrigation, " +
			"weather risk and fertilizer advice as JSON. Omitted measurements are taken from " +
			"the region's reference data.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings, &o)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.region, "region", "r", "", "Region (state) to forecast")
	f.StringVar(&o.crop, "crop", "", "Crop name, used for the irrigation need")
	f.Float64Var(&o.n, "n", 0, "Soil nitrogen, mg/kg")
	f.Float64Var(&o.p, "p", 0, "Soil phosphorus, mg/kg")
	f.Float64Var(&o.k, "k", 0, "Soil potassium, mg/kg")
	f.Float64Var(&o.ph, "ph", 0, "Soil pH")
	f.Float64Var(&o.temp, "temp", 0, "Average temperature, °C")
	f.Float64Var(&o.rain, "rain", 0, "Total rainfall, mm")
	f.Float64Var(&o.humidity, "humidity", 0, "Average relative humidity, %")
	f.Float64Var(&o.targetYield, "target-yield", 0, "Target yield for the fertilizer plan, kg/ha")
	f.IntVar(&o.year, "year", 0, "Season year")
	f.BoolVar(&o.allowUnlisted, "allow-unlisted", false, "Accept a region outside the reference tables when every measurement is given")
	f.BoolVar(&o.liveWeather, "live-weather", false, "Fill missing weather fields from the configured weather provider")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

// BuildRequest converts the flags the user set into a YieldRequest.
func (o *options) BuildRequest(flags *pflag.FlagSet) engine.YieldRequest {
	req := engine.YieldRequest{
		Region:        o.region,
		Crop:          o.crop,
		AllowUnlisted: o.allowUnlisted,
	}
	set := func(name string, v float64) *float64 {
		if !flags.Changed(name) {
			return nil
		}
		return &v
	}
	req.N = set("n", o.n)
	req.P = set("p", o.p)
	req.K = set("k", o.k)
	req.PH = set("ph", o.ph)
	req.AvgTempC = set("temp", o.temp)
	req.TotalRainfallMM = set("rain", o.rain)
	req.AvgHumidityPercent = set("humidity", o.humidity)
	req.TargetYield = set("target-yield", o.targetYield)
	if flags.Changed("year") {
		year := o.year
		req.Year = &year
	}
	return req
}

func run(cmd *cobra.Command, settings *conf.Settings, o *options) error {
	ctx := cmd.Context()

	eng, err := engine.Load(ctx, settings, artifacts.New(settings), nil)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	req := o.BuildRequest(cmd.Flags())
	if o.liveWeather {
		svc, err := weather.NewService(settings, eng.Store(), nil)
		if err != nil {
			return err
		}
		obs, err := svc.Current(ctx, req.Region, true)
		if err != nil {
			return err
		}
		fillWeather(&req, obs)
	}

	res, err := eng.ForecastYield(ctx, req)
	if err != nil {
		return fmt.Errorf("forecast failed (%s): %w", engine.StateOf(err), err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// fillWeather copies an observation into the weather fields the user left unset.
func fillWeather(req *engine.YieldRequest, obs weather.Observation) {
	if req.AvgTempC == nil {
		req.AvgTempC = &obs.AvgTempC
	}
	if req.TotalRainfallMM == nil {
		req.TotalRainfallMM = &obs.TotalRainfallMM
	}
	if req.AvgHumidityPercent == nil {
		req.AvgHumidityPercent = &obs.AvgHumidityPercent
	}
}
