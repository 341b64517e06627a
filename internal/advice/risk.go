package advice

import "slices"

// RiskTag names a weather condition outside its safe range.
type RiskTag string

// Risk tags.
const (
	RiskFrost           RiskTag = "frost"
	RiskExtremeHeat     RiskTag = "extreme_heat"
	RiskHighTemperature RiskTag = "high_temperature"
	RiskDrought         RiskTag = "drought"
	RiskExcessRainfall  RiskTag = "excess_rainfall"
	RiskHighRainfall    RiskTag = "high_rainfall"
	RiskFungalHumidity  RiskTag = "fungal_humidity"
	RiskLowHumidity     RiskTag = "low_humidity"
	RiskHotHumid        RiskTag = "hot_humid"
)

// Risk levels.
const (
	RiskLevelLow    = "Low"
	RiskLevelMedium = "Medium"
	RiskLevelHigh   = "High"
)

// RiskAssessment is the weather risk picture for one set of conditions.
type RiskAssessment struct {
	AvgTempC           float64   `json:"avg_temp_c"`
	TotalRainfallMM    float64   `json:"total_rainfall_mm"`
	AvgHumidityPercent float64   `json:"avg_humidity_percent"`
	Tags               []RiskTag `json:"risk_flags"`
	Level              string    `json:"risk_level"`
	Risks              []string  `json:"risks"`
	Recommendations    []string  `json:"recommendations"`
}

// Has reports whether tag is set.
func (r RiskAssessment) Has(tag RiskTag) bool {
	return slices.Contains(r.Tags, tag)
}

type riskRule struct {
	tag     RiskTag
	level   string
	message string
	match   func(temp, rain, humidity float64) bool
}

var riskRules = []riskRule{
	{RiskFrost, RiskLevelHigh, "Frost risk - protect sensitive crops",
		func(t, _, _ float64) bool { return t < 10 }},
	{RiskExtremeHeat, RiskLevelHigh, "Heat stress - provide shade/irrigation",
		func(t, _, _ float64) bool { return t > 40 }},
	{RiskHighTemperature, RiskLevelMedium, "High temperature - monitor crop stress",
		func(t, _, _ float64) bool { return t > 35 && t <= 40 }},
	{RiskDrought, RiskLevelHigh, "Drought conditions - irrigation critical",
		func(_, r, _ float64) bool { return r < 500 }},
	{RiskExcessRainfall, RiskLevelHigh, "Excess rainfall - drainage and fungal disease risk",
		func(_, r, _ float64) bool { return r > 2500 }},
	{RiskHighRainfall, RiskLevelMedium, "High rainfall - monitor for waterlogging",
		func(_, r, _ float64) bool { return r > 2000 && r <= 2500 }},
	{RiskFungalHumidity, RiskLevelMedium, "High humidity - fungal disease risk",
		func(_, _, h float64) bool { return h > 85 }},
	{RiskLowHumidity, RiskLevelMedium, "Low humidity - plant water stress",
		func(_, _, h float64) bool { return h < 30 }},
	{RiskHotHumid, RiskLevelHigh, "Hot & humid - pest and disease pressure",
		func(t, _, h float64) bool { return t > 30 && h > 80 }},
}

const favorableWeather = "Favorable weather conditions"

type recommendationRule struct {
	match  func(temp, rain, humidity float64) bool
	advice []string
}

var weatherRecommendations = []recommendationRule{
	{func(t, _, _ float64) bool { return t > 35 }, []string{
		"Install shade nets or increase irrigation frequency",
		"Schedule field operations for early morning or late evening",
	}},
	{func(_, r, _ float64) bool { return r < 600 }, []string{
		"Install drip irrigation system for water efficiency",
		"Apply mulch to conserve soil moisture",
	}},
	{func(_, r, _ float64) bool { return r > 2000 }, []string{
		"Ensure proper field drainage",
		"Apply preventive fungicide sprays",
	}},
	{func(_, _, h float64) bool { return h > 80 }, []string{
		"Improve air circulation between crop rows",
		"Monitor for pest and disease outbreak",
	}},
	{func(t, _, _ float64) bool { return t < 15 }, []string{
		"Use row covers or polytunnels for protection",
		"Delay sowing until soil temperature rises",
	}},
}

func levelRank(level string) int {
	switch level {
	case RiskLevelHigh:
		return 2
	case RiskLevelMedium:
		return 1
	}
	return 0
}

// AssessRisk evaluates every risk rule independently. Tags are a sorted set;
// the overall level is the highest level of any triggered rule.
func AssessRisk(temp, rainfall, humidity float64) RiskAssessment {
	a := RiskAssessment{
		AvgTempC:           temp,
		TotalRainfallMM:    rainfall,
		AvgHumidityPercent: humidity,
		Tags:               []RiskTag{},
		Level:              RiskLevelLow,
		Risks:              []string{},
		Recommendations:    []string{},
	}

	for _, r := range riskRules {
		if !r.match(temp, rainfall, humidity) {
			continue
		}
		a.Tags = append(a.Tags, r.tag)
		a.Risks = append(a.Risks, r.message)
		if levelRank(r.level) > levelRank(a.Level) {
			a.Level = r.level
		}
	}
	if len(a.Risks) == 0 {
		a.Risks = append(a.Risks, favorableWeather)
	}
	slices.Sort(a.Tags)
	a.Tags = slices.Compact(a.Tags)

	for _, r := range weatherRecommendations {
		if r.match(temp, rainfall, humidity) {
			a.Recommendations = append(a.Recommendations, r.advice...)
		}
	}
	return a
}
