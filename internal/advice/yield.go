package advice

import "math"

// Yield categories.
const (
	YieldLow       = "Low Yield"
	YieldMedium    = "Medium Yield"
	YieldGood      = "Good Yield"
	YieldExcellent = "Excellent Yield"
)

// YieldCategory buckets a yield estimate.
func YieldCategory(y float64) string {
	switch {
	case y < 1500:
		return YieldLow
	case y < 3000:
		return YieldMedium
	case y < 4500:
		return YieldGood
	}
	return YieldExcellent
}

// FertilizerTiming gives the application schedule per nutrient.
type FertilizerTiming struct {
	Nitrogen   string `json:"nitrogen"`
	Phosphorus string `json:"phosphorus"`
	Potassium  string `json:"potassium"`
}

// FertilizerPlan is the fertilizer needed to reach a target yield, in kg/ha.
type FertilizerPlan struct {
	NitrogenKgPerHa   float64          `json:"nitrogen_kg_per_ha"`
	PhosphorusKgPerHa float64          `json:"phosphorus_kg_per_ha"`
	PotassiumKgPerHa  float64          `json:"potassium_kg_per_ha"`
	TotalCostEstimate float64          `json:"total_cost_estimate"`
	Timing            FertilizerTiming `json:"application_timing"`
}

// Fertilizer model constants: base doses for an average yield and the
// factors converting soil mg/kg to kg/ha already available.
const (
	averageYield = 3000.0

	baseNitrogen   = 120.0
	basePhosphorus = 60.0
	basePotassium  = 40.0

	nitrogenCredit   = 0.1
	phosphorusCredit = 0.2
	potassiumCredit  = 0.15

	nitrogenPrice   = 25.0
	phosphorusPrice = 35.0
	potassiumPrice  = 20.0
)

var defaultTiming = FertilizerTiming{
	Nitrogen:   "Split application: 50% at sowing, 25% at tillering, 25% at flowering",
	Phosphorus: "Full dose at sowing/transplanting",
	Potassium:  "Split application: 50% at sowing, 50% at flowering",
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// FertilizerRequirement scales the base doses by targetYield and credits the
// nutrients already in the soil.
func FertilizerRequirement(n, p, k, targetYield float64) FertilizerPlan {
	factor := targetYield / averageYield
	nReq := max(0, baseNitrogen*factor-n*nitrogenCredit)
	pReq := max(0, basePhosphorus*factor-p*phosphorusCredit)
	kReq := max(0, basePotassium*factor-k*potassiumCredit)

	return FertilizerPlan{
		NitrogenKgPerHa:   round(nReq, 1),
		PhosphorusKgPerHa: round(pReq, 1),
		PotassiumKgPerHa:  round(kReq, 1),
		TotalCostEstimate: round(nReq*nitrogenPrice+pReq*phosphorusPrice+kReq*potassiumPrice, 2),
		Timing:            defaultTiming,
	}
}
