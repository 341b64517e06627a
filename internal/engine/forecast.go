package engine

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/tphakala/agrisense/internal/advice"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/features"
	"github.com/tphakala/agrisense/internal/logger"
)

// Input sources reported per field in ResolvedInputs.
const (
	SourceRequest   = "request"
	SourceReference = "reference"
)

// YieldRequest is a yield forecast request. Nil numeric fields are filled
// from the reference tables of the region.
type YieldRequest struct {
	Region             string   `json:"state"`
	Crop               string   `json:"crop,omitempty"`
	N                  *float64 `json:"N,omitempty"`
	P                  *float64 `json:"P,omitempty"`
	K                  *float64 `json:"K,omitempty"`
	PH                 *float64 `json:"pH,omitempty"`
	AvgTempC           *float64 `json:"avg_temp_c,omitempty"`
	TotalRainfallMM    *float64 `json:"total_rainfall_mm,omitempty"`
	AvgHumidityPercent *float64 `json:"avg_humidity_percent,omitempty"`
	Year               *int     `json:"year,omitempty"`
	// TargetYield drives the fertilizer plan, the estimate is used when nil.
	TargetYield *float64 `json:"target_yield,omitempty"`
	// AllowUnlisted accepts a region outside the reference tables when every
	// numeric field is supplied and the engine policy permits it.
	AllowUnlisted bool `json:"allow_unlisted,omitempty"`
}

func (r YieldRequest) soilMissing() []string {
	var out []string
	if r.N == nil {
		out = append(out, features.ColN)
	}
	if r.P == nil {
		out = append(out, features.ColP)
	}
	if r.K == nil {
		out = append(out, features.ColK)
	}
	if r.PH == nil {
		out = append(out, features.ColPH)
	}
	return out
}

func (r YieldRequest) weatherMissing() []string {
	var out []string
	if r.AvgTempC == nil {
		out = append(out, features.ColTemp)
	}
	if r.TotalRainfallMM == nil {
		out = append(out, features.ColRainfall)
	}
	if r.AvgHumidityPercent == nil {
		out = append(out, features.ColHumidity)
	}
	return out
}

// ResolvedInputs are the values the forecast was computed from.
type ResolvedInputs struct {
	N                  float64           `json:"N"`
	P                  float64           `json:"P"`
	K                  float64           `json:"K"`
	PH                 float64           `json:"pH"`
	AvgTempC           float64           `json:"avg_temp_c"`
	TotalRainfallMM    float64           `json:"total_rainfall_mm"`
	AvgHumidityPercent float64           `json:"avg_humidity_percent"`
	Sources            map[string]string `json:"sources"`
}

// PredictionResult is a yield forecast with the derived recommendations.
type PredictionResult struct {
	RequestID      string                  `json:"request_id"`
	State          State                   `json:"state"`
	Region         string                  `json:"region"`
	Crop           string                  `json:"crop,omitempty"`
	EstimatedYield float64                 `json:"estimated_yield"`
	YieldCategory  string                  `json:"yield_category"`
	Soil           advice.SoilAssessment   `json:"soil_health"`
	Irrigation     advice.IrrigationAdvice `json:"irrigation"`
	CropCycle      string                  `json:"crop_cycle"`
	Risk           advice.RiskAssessment   `json:"weather_risks"`
	RiskFlags      []advice.RiskTag        `json:"risk_flags"`
	Tips           []string                `json:"tips"`
	Fertilizer     advice.FertilizerPlan   `json:"fertilizer"`
	Inputs         ResolvedInputs          `json:"inputs"`
	ModelKind      string                  `json:"model_kind"`
}

// ForecastYield estimates the yield for a region and derives the soil,
// irrigation, weather and fertilizer advice.
//
// A region missing from the reference tables is rejected with an
// unknown-region error unless the request sets AllowUnlisted, the engine
// policy allows unlisted regions, and all seven numeric fields are supplied.
// Reference data is never substituted from another region.
func (e *Engine) ForecastYield(ctx context.Context, req YieldRequest) (PredictionResult, error) {
	start := time.Now()
	t := newTracker(ctx, CapabilityForecast)

	res, err := e.forecast(t, req)
	e.finish(t, start, err)
	if err != nil {
		return PredictionResult{}, t.fail(err)
	}

	t.advance(StateReturned)
	res.RequestID = t.id
	res.State = t.state
	t.log.Debug("forecast returned",
		logger.String("region", res.Region),
		logger.Float64("estimated_yield", res.EstimatedYield),
		logger.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (e *Engine) forecast(t *tracker, req YieldRequest) (PredictionResult, error) {
	if e.yieldErr != nil {
		return PredictionResult{}, e.yieldErr
	}

	in, inputs, err := e.resolve(req)
	if err != nil {
		return PredictionResult{}, err
	}
	if err := features.Validate(in); err != nil {
		return PredictionResult{}, err
	}
	if req.TargetYield != nil {
		if v := *req.TargetYield; math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return PredictionResult{}, errors.Newf("target_yield must be a positive number").
				Component("engine").
				Category(errors.CategoryValidation).
				Context("fields", []string{"target_yield"}).
				Build()
		}
	}
	t.advance(StateValidated)

	vec, err := e.encoder.Encode(in)
	if err != nil {
		return PredictionResult{}, err
	}
	t.advance(StateEncoded)

	estimate, err := e.predictor.Predict(vec)
	if err != nil {
		return PredictionResult{}, err
	}
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) {
		return PredictionResult{}, errors.Newf("yield model produced a non-finite estimate").
			Component("engine").
			Category(errors.CategorySchemaMismatch).
			Build()
	}
	t.advance(StateInferred)

	res := e.derive(in, estimate, req.TargetYield)
	res.Inputs = inputs
	res.ModelKind = e.predictor.Kind()
	t.advance(StateDerived)
	return res, nil
}

// resolve applies the region policy and merges request overrides with the
// reference profiles.
func (e *Engine) resolve(req YieldRequest) (features.Input, ResolvedInputs, error) {
	region := strings.TrimSpace(req.Region)
	if region == "" {
		return features.Input{}, ResolvedInputs{}, errors.Newf("state is required").
			Component("engine").
			Category(errors.CategoryValidation).
			Context("fields", []string{"state"}).
			Build()
	}

	soilMissing, weatherMissing := req.soilMissing(), req.weatherMissing()
	canonical, known := e.store.CanonicalRegion(region)
	if !known {
		if !req.AllowUnlisted || !e.policy.AllowUnlistedRegions || len(soilMissing)+len(weatherMissing) > 0 {
			return features.Input{}, ResolvedInputs{}, unknownRegion(region, "region is not in the reference tables")
		}
		canonical = region
	}

	inputs := ResolvedInputs{Sources: make(map[string]string, 7)}
	pick := func(field string, override *float64, reference float64) float64 {
		if override != nil {
			inputs.Sources[field] = SourceRequest
			return *override
		}
		inputs.Sources[field] = SourceReference
		return reference
	}

	var soil struct{ n, p, k, ph float64 }
	if len(soilMissing) > 0 {
		prof, err := e.store.LookupSoil(canonical)
		if err != nil {
			return features.Input{}, ResolvedInputs{}, unknownRegion(region, "no soil reference data and soil fields not supplied")
		}
		soil.n, soil.p, soil.k, soil.ph = prof.Nitrogen, prof.Phosphorus, prof.Potassium, prof.PH
	}
	var weather struct{ temp, rain, humidity float64 }
	if len(weatherMissing) > 0 {
		prof, err := e.store.LookupWeather(canonical)
		if err != nil {
			return features.Input{}, ResolvedInputs{}, unknownRegion(region, "no weather reference data and weather fields not supplied")
		}
		weather.temp, weather.rain, weather.humidity = prof.AvgTempC, prof.TotalRainfallMM, prof.AvgHumidityPercent
	}

	inputs.N = pick(features.ColN, req.N, soil.n)
	inputs.P = pick(features.ColP, req.P, soil.p)
	inputs.K = pick(features.ColK, req.K, soil.k)
	inputs.PH = pick(features.ColPH, req.PH, soil.ph)
	inputs.AvgTempC = pick(features.ColTemp, req.AvgTempC, weather.temp)
	inputs.TotalRainfallMM = pick(features.ColRainfall, req.TotalRainfallMM, weather.rain)
	inputs.AvgHumidityPercent = pick(features.ColHumidity, req.AvgHumidityPercent, weather.humidity)

	in := features.Input{
		Region:             canonical,
		Crop:               strings.TrimSpace(req.Crop),
		N:                  inputs.N,
		P:                  inputs.P,
		K:                  inputs.K,
		PH:                 inputs.PH,
		AvgTempC:           inputs.AvgTempC,
		TotalRainfallMM:    inputs.TotalRainfallMM,
		AvgHumidityPercent: inputs.AvgHumidityPercent,
		Year:               req.Year,
	}
	return in, inputs, nil
}

func unknownRegion(region, reason string) error {
	return errors.Newf("unknown region %q: %s", region, reason).
		Component("engine").
		Category(errors.CategoryUnknownRegion).
		Context("region", region).
		Build()
}

// derive runs the recommendation rules over the merged inputs.
func (e *Engine) derive(in features.Input, estimate float64, target *float64) PredictionResult {
	fallback := e.policy.CropWaterNeedMM
	if fallback <= 0 {
		fallback = advice.DefaultCropWaterNeedMM
	}

	soil := advice.AssessSoil(in.N, in.P, in.K, in.PH)
	risk := advice.AssessRisk(in.AvgTempC, in.TotalRainfallMM, in.AvgHumidityPercent)
	irrigation := advice.AdviseIrrigation(in.TotalRainfallMM, advice.CropWaterNeed(in.Crop, fallback))

	targetYield := estimate
	if target != nil {
		targetYield = *target
	}

	return PredictionResult{
		Region:         in.Region,
		Crop:           in.Crop,
		EstimatedYield: estimate,
		YieldCategory:  advice.YieldCategory(estimate),
		Soil:           soil,
		Irrigation:     irrigation,
		CropCycle:      advice.SuggestCropCycle(in.AvgTempC, in.TotalRainfallMM),
		Risk:           risk,
		RiskFlags:      risk.Tags,
		Tips:           advice.Tips(soil, risk, irrigation),
		Fertilizer:     advice.FertilizerRequirement(in.N, in.P, in.K, targetYield),
	}
}
