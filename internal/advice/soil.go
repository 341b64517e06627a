// Package advice derives farming recommendations from soil and weather
// values and a yield estimate. Every function is pure and deterministic.
package advice

// Nutrient bands.
const (
	BandLow      = "Low"
	BandAdequate = "Adequate"
	BandHigh     = "High"
)

// pH bands.
const (
	PHTooAcidic   = "Too Acidic"
	PHAcceptable  = "Acceptable"
	PHOptimal     = "Optimal"
	PHTooAlkaline = "Too Alkaline"
)

// Composite soil grades.
const (
	GradeGood     = "Good"
	GradeFair     = "Fair"
	GradePoor     = "Poor"
	GradeCritical = "Critical"
)

// NutrientStatus is a measured value and its band.
type NutrientStatus struct {
	Value float64 `json:"value"`
	Band  string  `json:"band"`
}

// SoilAssessment grades a soil sample.
type SoilAssessment struct {
	Nitrogen        NutrientStatus `json:"nitrogen"`
	Phosphorus      NutrientStatus `json:"phosphorus"`
	Potassium       NutrientStatus `json:"potassium"`
	PH              NutrientStatus `json:"ph"`
	DeficiencyScore int            `json:"deficiency_score"`
	Grade           string         `json:"grade"`
	Recommendations []string       `json:"recommendations"`
}

type nutrientRule struct {
	low, high             float64
	lowAdvice, highAdvice string
}

var (
	nitrogenRule = nutrientRule{200, 400,
		"Add nitrogen fertilizers (urea/ammonium sulfate)",
		"Reduce nitrogen fertilizer, risk of leaf burn"}
	phosphorusRule = nutrientRule{15, 50,
		"Add phosphorus fertilizers (DAP/SSP)",
		"Reduce phosphorus, may cause zinc deficiency"}
	potassiumRule = nutrientRule{150, 300,
		"Add potassium fertilizers (MOP/SOP)",
		"Reduce potassium fertilizer application"}
)

// band returns the nutrient band, its score contribution and advice.
func (r nutrientRule) band(v float64) (string, int, string) {
	switch {
	case v < r.low:
		return BandLow, 2, r.lowAdvice
	case v > r.high:
		return BandHigh, 1, r.highAdvice
	}
	return BandAdequate, 0, ""
}

func phBand(ph float64) (string, int, string) {
	switch {
	case ph < 5.5:
		return PHTooAcidic, 2, "Add lime to increase pH (target: 6.0-7.0)"
	case ph > 8.5:
		return PHTooAlkaline, 2, "Add sulfur or organic matter to reduce pH"
	case ph >= 6.0 && ph <= 7.5:
		return PHOptimal, 0, ""
	}
	return PHAcceptable, 1, ""
}

// GradeForScore maps an additive deficiency score to a grade.
func GradeForScore(score int) string {
	switch {
	case score == 0:
		return GradeGood
	case score <= 2:
		return GradeFair
	case score <= 4:
		return GradePoor
	}
	return GradeCritical
}

// AssessSoil bands each nutrient and the pH and sums the deficiencies into
// a composite grade: a low nutrient or an extreme pH scores 2, a high
// nutrient or a merely acceptable pH scores 1.
func AssessSoil(n, p, k, ph float64) SoilAssessment {
	a := SoilAssessment{Recommendations: []string{}}

	add := func(v float64, band string, score int, advice string) NutrientStatus {
		a.DeficiencyScore += score
		if advice != "" {
			a.Recommendations = append(a.Recommendations, advice)
		}
		return NutrientStatus{Value: v, Band: band}
	}

	b, s, adv := nitrogenRule.band(n)
	a.Nitrogen = add(n, b, s, adv)
	b, s, adv = phosphorusRule.band(p)
	a.Phosphorus = add(p, b, s, adv)
	b, s, adv = potassiumRule.band(k)
	a.Potassium = add(k, b, s, adv)
	b, s, adv = phBand(ph)
	a.PH = add(ph, b, s, adv)

	a.Grade = GradeForScore(a.DeficiencyScore)
	return a
}
