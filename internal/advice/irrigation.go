package advice

import (
	"fmt"
	"math"
	"strings"
)

// DefaultCropWaterNeedMM is the daily water need used when the crop is
// unknown.
const DefaultCropWaterNeedMM = 40.0

// Irrigation directions. Rainfall exactly meeting the need counts as surplus.
const (
	DirectionDeficit = "deficit"
	DirectionSurplus = "surplus"
)

// marginalSurplus is the rainfall to need ratio below which a surplus is
// still worth monitoring.
const marginalSurplus = 1.2

// Magnitude bands of the gap between rainfall and need.
const (
	MagnitudeNone     = "none"
	MagnitudeMinor    = "minor"
	MagnitudeModerate = "moderate"
	MagnitudeSevere   = "severe"
)

// cropWaterNeedMM holds daily water needs on the same scale as the default.
var cropWaterNeedMM = map[string]float64{
	"rice":      50,
	"sugarcane": 55,
	"jute":      45,
	"banana":    45,
	"wheat":     30,
	"barley":    28,
	"maize":     35,
	"cotton":    35,
	"soybean":   32,
	"groundnut": 28,
	"pulses":    25,
	"sorghum":   22,
	"millets":   20,
}

// CropWaterNeed returns the daily water need of crop, falling back to
// fallback (or DefaultCropWaterNeedMM when fallback is not positive).
func CropWaterNeed(crop string, fallback float64) float64 {
	if need, ok := cropWaterNeedMM[strings.ToLower(strings.TrimSpace(crop))]; ok {
		return need
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultCropWaterNeedMM
}

// IrrigationAdvice compares rainfall with crop water need.
type IrrigationAdvice struct {
	DailyRainfallMM float64 `json:"daily_rainfall_mm"`
	CropNeedMM      float64 `json:"crop_need_mm"`
	GapMM           float64 `json:"gap_mm"` // positive when rainfall exceeds need
	RelativeGap     float64 `json:"relative_gap"`
	Direction       string  `json:"direction"`
	Magnitude       string  `json:"magnitude"`
	Message         string  `json:"message"`
}

func magnitudeBand(relative float64) string {
	switch {
	case relative <= 0.10:
		return MagnitudeNone
	case relative <= 0.30:
		return MagnitudeMinor
	case relative <= 0.60:
		return MagnitudeModerate
	}
	return MagnitudeSevere
}

// AdviseIrrigation spreads rainfall over 30 days and compares it with
// cropNeedMM. A non-positive need uses DefaultCropWaterNeedMM. Direction
// follows the sign of the gap; Magnitude is none for gaps up to 10% of the
// need.
func AdviseIrrigation(rainfallMM, cropNeedMM float64) IrrigationAdvice {
	if cropNeedMM <= 0 {
		cropNeedMM = DefaultCropWaterNeedMM
	}
	daily := rainfallMM / 30
	gap := daily - cropNeedMM
	relative := math.Abs(gap) / cropNeedMM

	a := IrrigationAdvice{
		DailyRainfallMM: daily,
		CropNeedMM:      cropNeedMM,
		GapMM:           gap,
		RelativeGap:     relative,
		Magnitude:       magnitudeBand(relative),
	}

	switch {
	case gap < 0:
		a.Direction = DirectionDeficit
		a.Message = fmt.Sprintf("Irrigation needed: %.1f mm more per day", -gap)
	case daily < cropNeedMM*marginalSurplus:
		a.Direction = DirectionSurplus
		a.Message = fmt.Sprintf("Monitor closely: %.1f mm rainfall (barely sufficient)", daily)
	default:
		a.Direction = DirectionSurplus
		a.Message = "No irrigation needed (rainfall sufficient)"
	}
	return a
}
