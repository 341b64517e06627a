// Package refdata holds the read-only reference tables: per-region soil and
// weather profiles, disease metadata and the supplement catalog.
//
// A Store is built once at startup from CSV files, a SQL database or the
// embedded defaults and is safe for concurrent use since it is never mutated.
package refdata

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tphakala/agrisense/internal/datastore"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// RegionProfile is the soil composition of a region. Nutrients are mg/kg.
type RegionProfile struct {
	Region     string  `json:"region"`
	Nitrogen   float64 `json:"nitrogen"`
	Phosphorus float64 `json:"phosphorus"`
	Potassium  float64 `json:"potassium"`
	PH         float64 `json:"ph"`
}

// WeatherProfile is the long-run average weather of a region.
type WeatherProfile struct {
	Region             string  `json:"region"`
	AvgTempC           float64 `json:"avg_temp_c"`
	TotalRainfallMM    float64 `json:"total_rainfall_mm"`
	AvgHumidityPercent float64 `json:"avg_humidity_percent"`
}

// DiseaseRecord describes one classifier output class.
type DiseaseRecord struct {
	Index        int    `json:"index"`
	Name         string `json:"disease_name"`
	Crop         string `json:"crop,omitempty"`
	Description  string `json:"description"`
	Prevention   string `json:"prevention"`
	ImageURL     string `json:"image_url,omitempty"`
	SupplementID int    `json:"supplement_id"`
}

// SupplementRecord is a product suggested for a disease.
type SupplementRecord struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
	BuyLink  string `json:"buy_link,omitempty"`
}

// Store is the immutable set of reference tables.
type Store struct {
	soil        map[string]RegionProfile
	weather     map[string]WeatherProfile
	regions     []string
	diseases    []DiseaseRecord
	supplements map[int]SupplementRecord
}

var fold = cases.Fold()

// normalizeRegion returns the lookup key for a region name.
func normalizeRegion(region string) string {
	return fold.String(strings.Join(strings.Fields(region), " "))
}

// New validates t and builds a Store. Yearly weather rows are averaged per
// region.
func New(t *datastore.Tables) (*Store, error) {
	if t == nil {
		t = &datastore.Tables{}
	}

	s := &Store{
		soil:        make(map[string]RegionProfile, len(t.Soil)),
		weather:     make(map[string]WeatherProfile),
		supplements: make(map[int]SupplementRecord, len(t.Supplements)),
	}
	var problems []string

	for i, row := range t.Soil {
		name := strings.TrimSpace(row.State)
		if name == "" {
			problems = append(problems, fmt.Sprintf("soil row %d: empty region", i+1))
			continue
		}
		if msg := checkSoil(row); msg != "" {
			problems = append(problems, fmt.Sprintf("soil %s: %s", name, msg))
			continue
		}
		key := normalizeRegion(name)
		if _, dup := s.soil[key]; dup {
			problems = append(problems, fmt.Sprintf("soil %s: duplicate region", name))
			continue
		}
		s.soil[key] = RegionProfile{Region: name, Nitrogen: row.N, Phosphorus: row.P, Potassium: row.K, PH: row.PH}
	}

	weather, weatherProblems := averageWeather(t.Weather)
	s.weather = weather
	problems = append(problems, weatherProblems...)

	diseases, diseaseProblems := buildDiseases(t.Diseases)
	s.diseases = diseases
	problems = append(problems, diseaseProblems...)

	for _, row := range t.Supplements {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		s.supplements[row.Index] = SupplementRecord{
			ID:       row.Index,
			Name:     strings.TrimSpace(row.Name),
			ImageURL: strings.TrimSpace(row.ImageURL),
			BuyLink:  strings.TrimSpace(row.BuyLink),
		}
	}

	if len(problems) > 0 {
		return nil, errors.Newf("invalid reference data: %s", strings.Join(problems, "; ")).
			Component("refdata").
			Category(errors.CategoryValidation).
			Context("problem_count", len(problems)).
			Build()
	}

	s.regions = s.collectRegions()

	GetLogger().Debug("reference store built",
		logger.Int("soil_regions", len(s.soil)),
		logger.Int("weather_regions", len(s.weather)),
		logger.Int("diseases", len(s.diseases)),
		logger.Int("supplements", len(s.supplements)))
	return s, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func checkSoil(row datastore.StateSoil) string {
	switch {
	case !finite(row.N, row.P, row.K, row.PH):
		return "non-finite value"
	case row.N < 0 || row.P < 0 || row.K < 0:
		return "negative nutrient value"
	case row.PH < 0 || row.PH > 14:
		return fmt.Sprintf("pH %.2f outside [0,14]", row.PH)
	}
	return ""
}

type weatherSum struct {
	name                 string
	temp, rain, humidity float64
	n                    int
}

func averageWeather(rows []datastore.StateWeather) (map[string]WeatherProfile, []string) {
	var problems []string
	sums := make(map[string]*weatherSum)
	for i, row := range rows {
		name := strings.TrimSpace(row.State)
		if name == "" {
			problems = append(problems, fmt.Sprintf("weather row %d: empty region", i+1))
			continue
		}
		if !finite(row.AvgTempC, row.TotalRainfallMM, row.AvgHumidityPercent) {
			problems = append(problems, fmt.Sprintf("weather %s: non-finite value", name))
			continue
		}
		if row.TotalRainfallMM < 0 || row.AvgHumidityPercent < 0 || row.AvgHumidityPercent > 100 {
			problems = append(problems, fmt.Sprintf("weather %s: rainfall or humidity out of range", name))
			continue
		}
		key := normalizeRegion(name)
		sum, ok := sums[key]
		if !ok {
			sum = &weatherSum{name: name}
			sums[key] = sum
		}
		sum.temp += row.AvgTempC
		sum.rain += row.TotalRainfallMM
		sum.humidity += row.AvgHumidityPercent
		sum.n++
	}

	out := make(map[string]WeatherProfile, len(sums))
	for key, sum := range sums {
		n := float64(sum.n)
		out[key] = WeatherProfile{
			Region:             sum.name,
			AvgTempC:           sum.temp / n,
			TotalRainfallMM:    sum.rain / n,
			AvgHumidityPercent: sum.humidity / n,
		}
	}
	return out, problems
}

// buildDiseases orders the disease rows by index and requires the indices to
// be exactly 0..n-1 so the table mirrors the classifier output space.
func buildDiseases(rows []datastore.DiseaseInfo) ([]DiseaseRecord, []string) {
	if len(rows) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(rows)
	slices.SortFunc(sorted, func(a, b datastore.DiseaseInfo) int { return a.Index - b.Index })

	var problems []string
	out := make([]DiseaseRecord, 0, len(sorted))
	for i, row := range sorted {
		if row.Index != i {
			problems = append(problems, fmt.Sprintf("disease table index %d found where %d expected", row.Index, i))
			break
		}
		name := strings.TrimSpace(row.DiseaseName)
		if name == "" {
			problems = append(problems, fmt.Sprintf("disease %d: empty name", row.Index))
			continue
		}
		crop, _, found := strings.Cut(name, " : ")
		if !found {
			crop = ""
		}
		out = append(out, DiseaseRecord{
			Index:        row.Index,
			Name:         name,
			Crop:         strings.TrimSpace(crop),
			Description:  cleanText(row.Description),
			Prevention:   cleanText(row.Prevention),
			ImageURL:     strings.TrimSpace(row.ImageURL),
			SupplementID: row.Index,
		})
	}
	return out, problems
}

func (s *Store) collectRegions() []string {
	seen := make(map[string]string, len(s.soil)+len(s.weather))
	for key, p := range s.soil {
		seen[key] = p.Region
	}
	for key, w := range s.weather {
		if _, ok := seen[key]; !ok {
			seen[key] = w.Region
		}
	}
	regions := make([]string, 0, len(seen))
	for _, name := range seen {
		regions = append(regions, name)
	}
	slices.Sort(regions)
	return regions
}

func notFound(kind, key string) error {
	return errors.Newf("no %s reference data for %q", kind, key).
		Component("refdata").
		Category(errors.CategoryNotFound).
		Context("table", kind).
		Build()
}

// LookupSoil returns the soil profile of region. A missing region yields an
// error in the not-found category.
func (s *Store) LookupSoil(region string) (RegionProfile, error) {
	p, ok := s.soil[normalizeRegion(region)]
	if !ok {
		return RegionProfile{}, notFound("soil", region)
	}
	return p, nil
}

// LookupWeather returns the averaged weather profile of region.
func (s *Store) LookupWeather(region string) (WeatherProfile, error) {
	w, ok := s.weather[normalizeRegion(region)]
	if !ok {
		return WeatherProfile{}, notFound("weather", region)
	}
	return w, nil
}

// HasRegion reports whether region appears in either the soil or the weather table.
func (s *Store) HasRegion(region string) bool {
	key := normalizeRegion(region)
	_, soil := s.soil[key]
	_, weather := s.weather[key]
	return soil || weather
}

// CanonicalRegion returns the display name stored for region.
func (s *Store) CanonicalRegion(region string) (string, bool) {
	key := normalizeRegion(region)
	if p, ok := s.soil[key]; ok {
		return p.Region, true
	}
	if w, ok := s.weather[key]; ok {
		return w.Region, true
	}
	return "", false
}

// ListRegions returns the sorted union of soil and weather regions.
func (s *Store) ListRegions() []string {
	return slices.Clone(s.regions)
}

// Disease returns the record for a classifier class index.
func (s *Store) Disease(index int) (DiseaseRecord, error) {
	if index < 0 || index >= len(s.diseases) {
		return DiseaseRecord{}, errors.Newf("class index %d outside disease table of %d entries", index, len(s.diseases)).
			Component("refdata").
			Category(errors.CategorySchemaMismatch).
			Build()
	}
	return s.diseases[index], nil
}

// DiseaseCount returns the number of disease classes.
func (s *Store) DiseaseCount() int { return len(s.diseases) }

// Diseases returns a copy of the disease table in class order.
func (s *Store) Diseases() []DiseaseRecord { return slices.Clone(s.diseases) }

// Supplement returns the supplement with the given id. A missing supplement
// is not an error.
func (s *Store) Supplement(id int) (SupplementRecord, bool) {
	sup, ok := s.supplements[id]
	return sup, ok
}

// Supplements returns the catalog ordered by id.
func (s *Store) Supplements() []SupplementRecord {
	out := make([]SupplementRecord, 0, len(s.supplements))
	for _, sup := range s.supplements {
		out = append(out, sup)
	}
	slices.SortFunc(out, func(a, b SupplementRecord) int { return a.ID - b.ID })
	return out
}
