package advice

type cropCycleRule struct {
	match  func(temp, rain float64) bool
	advice string
}

// cropCycleRules are evaluated in order; the first match wins.
var cropCycleRules = []cropCycleRule{
	{func(t, r float64) bool { return t < 20 && r < 800 },
		"Winter Wheat → Plant in Nov-Dec, Harvest in Mar-Apr"},
	{func(t, r float64) bool { return t >= 20 && t < 25 && r >= 800 && r < 1200 },
		"Mixed Crops → Wheat/Barley in winter, Maize in summer"},
	{func(t, r float64) bool { return t >= 25 && t < 30 && r >= 1000 && r < 1800 },
		"Rice/Maize → Plant in Jun-Jul, Harvest in Oct-Nov"},
	{func(t, r float64) bool { return t >= 30 && r >= 1200 },
		"Rice (Intensive) → Kharif: Jun-Oct, Rabi: Nov-Mar"},
	{func(t, r float64) bool { return t >= 28 && r < 1000 },
		"Drought-Resistant → Millets, Sorghum, Cotton"},
	{func(t, r float64) bool { return t < 25 && r >= 1500 },
		"High-Moisture Crops → Rice, Sugarcane, Jute"},
}

const defaultCropCycle = "Variable Conditions → Consult local agricultural extension office"

// SuggestCropCycle proposes a cropping pattern for the climate.
func SuggestCropCycle(temp, rainfall float64) string {
	for _, r := range cropCycleRules {
		if r.match(temp, rainfall) {
			return r.advice
		}
	}
	return defaultCropCycle
}
