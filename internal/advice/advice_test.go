package advice

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssessSoil(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		n, p, k   float64
		ph        float64
		wantScore int
		wantGrade string
		wantBands [4]string
		wantRecs  []string
	}{
		{
			name: "all optimal", n: 300, p: 30, k: 200, ph: 6.8,
			wantScore: 0, wantGrade: GradeGood,
			wantBands: [4]string{BandAdequate, BandAdequate, BandAdequate, PHOptimal},
			wantRecs:  []string{},
		},
		{
			name: "single low nutrient", n: 150, p: 30, k: 200, ph: 7.0,
			wantScore: 2, wantGrade: GradeFair,
			wantBands: [4]string{BandLow, BandAdequate, BandAdequate, PHOptimal},
			wantRecs:  []string{"Add nitrogen fertilizers (urea/ammonium sulfate)"},
		},
		{
			name: "high plus acceptable pH", n: 450, p: 30, k: 200, ph: 5.8,
			wantScore: 2, wantGrade: GradeFair,
			wantBands: [4]string{BandHigh, BandAdequate, BandAdequate, PHAcceptable},
			wantRecs:  []string{"Reduce nitrogen fertilizer, risk of leaf burn"},
		},
		{
			name: "two lows", n: 150, p: 10, k: 200, ph: 6.5,
			wantScore: 4, wantGrade: GradePoor,
			wantBands: [4]string{BandLow, BandLow, BandAdequate, PHOptimal},
			wantRecs: []string{
				"Add nitrogen fertilizers (urea/ammonium sulfate)",
				"Add phosphorus fertilizers (DAP/SSP)",
			},
		},
		{
			name: "everything wrong", n: 100, p: 60, k: 100, ph: 9.0,
			wantScore: 7, wantGrade: GradeCritical,
			wantBands: [4]string{BandLow, BandHigh, BandLow, PHTooAlkaline},
			wantRecs: []string{
				"Add nitrogen fertilizers (urea/ammonium sulfate)",
				"Reduce phosphorus, may cause zinc deficiency",
				"Add potassium fertilizers (MOP/SOP)",
				"Add sulfur or organic matter to reduce pH",
			},
		},
		{
			name: "band boundaries are adequate", n: 200, p: 50, k: 300, ph: 7.5,
			wantScore: 0, wantGrade: GradeGood,
			wantBands: [4]string{BandAdequate, BandAdequate, BandAdequate, PHOptimal},
			wantRecs:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AssessSoil(tt.n, tt.p, tt.k, tt.ph)
			assert.Equal(t, tt.wantScore, got.DeficiencyScore)
			assert.Equal(t, tt.wantGrade, got.Grade)
			bands := [4]string{got.Nitrogen.Band, got.Phosphorus.Band, got.Potassium.Band, got.PH.Band}
			assert.Equal(t, tt.wantBands, bands)
			if diff := cmp.Diff(tt.wantRecs, got.Recommendations); diff != "" {
				t.Errorf("recommendations mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssessSoilPHBands(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{
		5.49: PHTooAcidic,
		5.5:  PHAcceptable,
		5.99: PHAcceptable,
		6.0:  PHOptimal,
		7.5:  PHOptimal,
		7.51: PHAcceptable,
		8.5:  PHAcceptable,
		8.51: PHTooAlkaline,
	}
	for ph, want := range cases {
		assert.Equal(t, want, AssessSoil(300, 30, 200, ph).PH.Band, "pH %v", ph)
	}
}

func TestGradeForScore(t *testing.T) {
	t.Parallel()

	want := []string{GradeGood, GradeFair, GradeFair, GradePoor, GradePoor, GradeCritical, GradeCritical}
	for score, grade := range want {
		assert.Equal(t, grade, GradeForScore(score), "score %d", score)
	}
}

func TestAdviseIrrigation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		rainfall      float64
		need          float64
		wantDirection string
		wantMagnitude string
		wantMessage   string
	}{
		{"severe deficit", 300, 40, DirectionDeficit, MagnitudeSevere, "Irrigation needed: 30.0 mm more per day"},
		{"moderate deficit", 600, 40, DirectionDeficit, MagnitudeModerate, "Irrigation needed: 20.0 mm more per day"},
		{"minor deficit", 1050, 40, DirectionDeficit, MagnitudeMinor, "Irrigation needed: 5.0 mm more per day"},
		{"small deficit keeps direction", 1140, 40, DirectionDeficit, MagnitudeNone, "Irrigation needed: 2.0 mm more per day"},
		{"small surplus keeps direction", 1296, 40, DirectionSurplus, MagnitudeNone, "Monitor closely: 43.2 mm rainfall (barely sufficient)"},
		{"marginal surplus", 1230, 40, DirectionSurplus, MagnitudeNone, "Monitor closely: 41.0 mm rainfall (barely sufficient)"},
		{"need exactly met", 1200, 40, DirectionSurplus, MagnitudeNone, "Monitor closely: 40.0 mm rainfall (barely sufficient)"},
		{"surplus above monitoring margin", 1500, 40, DirectionSurplus, MagnitudeMinor, "No irrigation needed (rainfall sufficient)"},
		{"surplus", 1800, 40, DirectionSurplus, MagnitudeModerate, "No irrigation needed (rainfall sufficient)"},
		{"default need", 1800, 0, DirectionSurplus, MagnitudeModerate, "No irrigation needed (rainfall sufficient)"},
		{"no rain", 0, 40, DirectionDeficit, MagnitudeSevere, "Irrigation needed: 40.0 mm more per day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := AdviseIrrigation(tt.rainfall, tt.need)
			assert.Equal(t, tt.wantDirection, got.Direction)
			assert.Equal(t, tt.wantMagnitude, got.Magnitude)
			assert.Equal(t, tt.wantMessage, got.Message)
			assert.InDelta(t, tt.rainfall/30, got.DailyRainfallMM, 1e-9)
		})
	}
}

func TestCropWaterNeed(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 50.0, CropWaterNeed(" Rice ", 0), 1e-9)
	assert.InDelta(t, DefaultCropWaterNeedMM, CropWaterNeed("dragonfruit", 0), 1e-9)
	assert.InDelta(t, 33.0, CropWaterNeed("", 33), 1e-9)
}

func TestSuggestCropCycle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		temp, rain float64
		want       string
	}{
		{15, 600, "Winter Wheat → Plant in Nov-Dec, Harvest in Mar-Apr"},
		{22, 1000, "Mixed Crops → Wheat/Barley in winter, Maize in summer"},
		{27, 1500, "Rice/Maize → Plant in Jun-Jul, Harvest in Oct-Nov"},
		{31, 2000, "Rice (Intensive) → Kharif: Jun-Oct, Rabi: Nov-Mar"},
		{29, 700, "Drought-Resistant → Millets, Sorghum, Cotton"},
		{18, 2000, "High-Moisture Crops → Rice, Sugarcane, Jute"},
		{22, 500, defaultCropCycle},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuggestCropCycle(tt.temp, tt.rain), "temp=%v rain=%v", tt.temp, tt.rain)
	}
}

func TestAssessRisk(t *testing.T) {
	t.Parallel()

	t.Run("favorable", func(t *testing.T) {
		t.Parallel()
		got := AssessRisk(25, 1200, 60)
		assert.Empty(t, got.Tags)
		assert.Equal(t, RiskLevelLow, got.Level)
		assert.Equal(t, []string{favorableWeather}, got.Risks)
		assert.Empty(t, got.Recommendations)
	})

	t.Run("hot humid and wet", func(t *testing.T) {
		t.Parallel()
		got := AssessRisk(36, 2600, 90)
		want := []RiskTag{RiskExcessRainfall, RiskFungalHumidity, RiskHighTemperature, RiskHotHumid}
		if diff := cmp.Diff(want, got.Tags); diff != "" {
			t.Errorf("tags mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, RiskLevelHigh, got.Level)
		assert.True(t, got.Has(RiskHotHumid))
		assert.False(t, got.Has(RiskDrought))
		assert.Equal(t, []string{
			"Install shade nets or increase irrigation frequency",
			"Schedule field operations for early morning or late evening",
			"Ensure proper field drainage",
			"Apply preventive fungicide sprays",
			"Improve air circulation between crop rows",
			"Monitor for pest and disease outbreak",
		}, got.Recommendations)
	})

	t.Run("medium only", func(t *testing.T) {
		t.Parallel()
		got := AssessRisk(25, 2200, 25)
		assert.Equal(t, []RiskTag{RiskHighRainfall, RiskLowHumidity}, got.Tags)
		assert.Equal(t, RiskLevelMedium, got.Level)
		assert.Len(t, got.Risks, 2)
	})

	t.Run("exclusive temperature bands", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []RiskTag{RiskExtremeHeat}, AssessRisk(41, 1200, 50).Tags)
		assert.Equal(t, []RiskTag{RiskFrost}, AssessRisk(5, 1200, 50).Tags)
	})

	t.Run("tags sorted and unique", func(t *testing.T) {
		t.Parallel()
		got := AssessRisk(5, 100, 20)
		assert.Equal(t, []RiskTag{RiskDrought, RiskFrost, RiskLowHumidity}, got.Tags)
	})
}

func TestTips(t *testing.T) {
	t.Parallel()

	t.Run("priority order", func(t *testing.T) {
		t.Parallel()
		soil := AssessSoil(150, 30, 200, 5.2)
		risk := AssessRisk(34, 600, 80)
		want := []string{
			"Consider organic nitrogen sources like compost or vermicompost for sustainable soil improvement",
			"Apply agricultural lime 2-3 months before planting to improve soil pH",
			"High temperature and humidity favor disease development - ensure good field ventilation",
			"Consider drought-tolerant crop varieties and water-efficient irrigation methods",
			"Plan supplemental irrigation of about 20.0 mm per day",
			"Plan crop rotation to maintain soil health and reduce pest buildup",
			"Use certified seeds and follow recommended spacing for optimal yield",
		}
		if diff := cmp.Diff(want, Tips(soil, risk, AdviseIrrigation(600, 40))); diff != "" {
			t.Errorf("tips mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("every trigger contributes in fixed order", func(t *testing.T) {
		t.Parallel()
		soil := AssessSoil(100, 60, 350, 8.8)
		risk := AssessRisk(42, 400, 20)
		require.Equal(t, []RiskTag{RiskDrought, RiskExtremeHeat, RiskLowHumidity}, risk.Tags)

		want := []string{
			"Consider organic nitrogen sources like compost or vermicompost for sustainable soil improvement",
			"Skip phosphorus fertilizer this season and supply zinc to offset induced deficiency",
			"Cut back potassium fertilizer, excess potassium limits magnesium uptake",
			"Add organic matter or sulfur to reduce soil alkalinity",
			"Consider drought-tolerant crop varieties and water-efficient irrigation methods",
			"Irrigate during the cooler hours and use shade nets to limit heat stress",
			"Reserve scarce water for flowering and grain filling",
			"Mulch and irrigate more often to reduce plant water stress in dry air",
			"Plan supplemental irrigation of about 26.7 mm per day",
			"Plan crop rotation to maintain soil health and reduce pest buildup",
			"Use certified seeds and follow recommended spacing for optimal yield",
		}
		if diff := cmp.Diff(want, Tips(soil, risk, AdviseIrrigation(400, 40))); diff != "" {
			t.Errorf("tips mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("low potassium and frost", func(t *testing.T) {
		t.Parallel()
		got := Tips(AssessSoil(250, 30, 100, 6.8), AssessRisk(5, 900, 60), AdviseIrrigation(900, 40))
		want := []string{
			"Apply potash and return crop residues to the field to build potassium reserves",
			"Protect seedlings from frost with mulch or row covers and irrigate lightly before cold nights",
			"Plan supplemental irrigation of about 10.0 mm per day",
			"Plan crop rotation to maintain soil health and reduce pest buildup",
			"Use certified seeds and follow recommended spacing for optimal yield",
		}
		assert.Equal(t, want, got)
	})

	t.Run("each risk tag has a tip", func(t *testing.T) {
		t.Parallel()
		covered := make(map[RiskTag]bool, len(riskTips))
		for _, rt := range riskTips {
			covered[rt.tag] = true
		}
		for _, r := range riskRules {
			assert.True(t, covered[r.tag], "no tip for %s", r.tag)
		}
	})

	t.Run("general only", func(t *testing.T) {
		t.Parallel()
		got := Tips(AssessSoil(300, 30, 200, 7.0), AssessRisk(25, 1200, 60), AdviseIrrigation(1200, 40))
		assert.Equal(t, generalTips, got)
	})

	t.Run("alkaline and wet", func(t *testing.T) {
		t.Parallel()
		got := Tips(AssessSoil(300, 30, 200, 8.2), AssessRisk(25, 2000, 60), AdviseIrrigation(2000, 40))
		require.Len(t, got, 4)
		assert.Equal(t, "Add organic matter or sulfur to reduce soil alkalinity", got[0])
		assert.Equal(t, "Ensure adequate drainage and consider raised bed cultivation", got[1])
	})
}

func TestYieldCategory(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{
		0:      YieldLow,
		1499.9: YieldLow,
		1500:   YieldMedium,
		2999:   YieldMedium,
		3000:   YieldGood,
		4499:   YieldGood,
		4500:   YieldExcellent,
		9000:   YieldExcellent,
	}
	for y, want := range cases {
		assert.Equal(t, want, YieldCategory(y), "yield %v", y)
	}
}

func TestFertilizerRequirement(t *testing.T) {
	t.Parallel()

	got := FertilizerRequirement(200, 20, 100, 3000)
	want := FertilizerPlan{
		NitrogenKgPerHa:   100,
		PhosphorusKgPerHa: 56,
		PotassiumKgPerHa:  25,
		TotalCostEstimate: 100*25 + 56*35 + 25*20,
		Timing:            defaultTiming,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}

	rich := FertilizerRequirement(5000, 1000, 1000, 1500)
	assert.Zero(t, rich.NitrogenKgPerHa)
	assert.Zero(t, rich.PhosphorusKgPerHa)
	assert.Zero(t, rich.PotassiumKgPerHa)
	assert.Zero(t, rich.TotalCostEstimate)

	scaled := FertilizerRequirement(0, 0, 0, 4500)
	assert.InDelta(t, 180.0, scaled.NitrogenKgPerHa, 1e-9)
	assert.InDelta(t, 90.0, scaled.PhosphorusKgPerHa, 1e-9)
	assert.InDelta(t, 60.0, scaled.PotassiumKgPerHa, 1e-9)
}
