package advice

import (
	"fmt"
	"slices"
)

var generalTips = []string{
	"Plan crop rotation to maintain soil health and reduce pest buildup",
	"Use certified seeds and follow recommended spacing for optimal yield",
}

// nutrientTips holds the low and high band tip of each nutrient.
var nutrientTips = []struct {
	status    func(SoilAssessment) NutrientStatus
	low, high string
}{
	{func(s SoilAssessment) NutrientStatus { return s.Nitrogen },
		"Consider organic nitrogen sources like compost or vermicompost for sustainable soil improvement",
		"Split the remaining nitrogen doses and hold back urea until levels fall"},
	{func(s SoilAssessment) NutrientStatus { return s.Phosphorus },
		"Incorporate rock phosphate or bone meal and keep pH near neutral to improve phosphorus uptake",
		"Skip phosphorus fertilizer this season and supply zinc to offset induced deficiency"},
	{func(s SoilAssessment) NutrientStatus { return s.Potassium },
		"Apply potash and return crop residues to the field to build potassium reserves",
		"Cut back potassium fertilizer, excess potassium limits magnesium uptake"},
}

// riskTips is ordered like riskRules; tips follow this order, not tag order.
var riskTips = []struct {
	tag RiskTag
	tip string
}{
	{RiskFrost, "Protect seedlings from frost with mulch or row covers and irrigate lightly before cold nights"},
	{RiskExtremeHeat, "Irrigate during the cooler hours and use shade nets to limit heat stress"},
	{RiskHighTemperature, "Choose heat tolerant varieties and keep soil moisture steady during hot spells"},
	{RiskDrought, "Reserve scarce water for flowering and grain filling"},
	{RiskExcessRainfall, "Clear field drains before heavy rain and watch for root rot"},
	{RiskHighRainfall, "Check low lying plots for standing water after rain"},
	{RiskFungalHumidity, "Scout weekly for fungal leaf spots and spray preventive fungicide when they appear"},
	{RiskLowHumidity, "Mulch and irrigate more often to reduce plant water stress in dry air"},
	{RiskHotHumid, "Space plants for airflow and watch for pest outbreaks in hot humid weather"},
}

// Tips assembles farming tips in a fixed priority order: soil issues
// (nutrients, then pH), then weather issues (temperature and rainfall
// conditions, each risk tag, an irrigation deficit), then general tips.
// Identical input yields the identical sequence.
func Tips(soil SoilAssessment, risk RiskAssessment, irrigation IrrigationAdvice) []string {
	var tips []string

	for _, n := range nutrientTips {
		switch n.status(soil).Band {
		case BandLow:
			tips = append(tips, n.low)
		case BandHigh:
			tips = append(tips, n.high)
		}
	}
	switch ph := soil.PH.Value; {
	case ph < 6.0:
		tips = append(tips, "Apply agricultural lime 2-3 months before planting to improve soil pH")
	case ph > 8.0:
		tips = append(tips, "Add organic matter or sulfur to reduce soil alkalinity")
	}

	if risk.AvgTempC > 32 && risk.AvgHumidityPercent > 75 {
		tips = append(tips, "High temperature and humidity favor disease development - ensure good field ventilation")
	}
	switch rain := risk.TotalRainfallMM; {
	case rain < 700:
		tips = append(tips, "Consider drought-tolerant crop varieties and water-efficient irrigation methods")
	case rain > 1800:
		tips = append(tips, "Ensure adequate drainage and consider raised bed cultivation")
	}
	for _, r := range riskTips {
		if risk.Has(r.tag) {
			tips = append(tips, r.tip)
		}
	}
	if irrigation.Direction == DirectionDeficit {
		tips = append(tips, fmt.Sprintf("Plan supplemental irrigation of about %.1f mm per day", -irrigation.GapMM))
	}

	tips = append(tips, generalTips...)
	return slices.Compact(tips)
}
