package refdata

import (
	"fmt"

	"github.com/tphakala/agrisense/internal/errors"
)

type boundingBox struct {
	region                         string
	minLat, maxLat, minLon, maxLon float64
}

// regionBoxes is an approximate state lookup for India. The first matching
// box wins.
var regionBoxes = []boundingBox{
	{"Maharashtra", 15, 22, 72, 80},
	{"Punjab", 28, 32, 74, 77},
	{"Kerala", 9, 12, 75, 78},
	{"West Bengal", 22, 27, 84, 88},
	{"Tamil Nadu", 10, 14, 76, 80},
	{"Uttar Pradesh", 23, 27, 80, 84},
	{"Karnataka", 12, 19, 74, 78},
	{"Gujarat", 20, 24, 72, 74},
	{"Maharashtra", 18, 20, 73, 75},
}

var textures = map[string]string{
	"Maharashtra":   "Black Soil / Regur",
	"Punjab":        "Alluvial",
	"Kerala":        "Laterite",
	"West Bengal":   "Alluvial",
	"Tamil Nadu":    "Red Soil",
	"Uttar Pradesh": "Alluvial",
	"Karnataka":     "Red Soil",
	"Gujarat":       "Black Soil",
}

// SoilSummary is the soil description returned for a coordinate lookup.
type SoilSummary struct {
	Region        string  `json:"state"`
	SoilType      string  `json:"soil_type"`
	Texture       string  `json:"texture"`
	PH            float64 `json:"ph"`
	OrganicCarbon float64 `json:"organic_carbon"`
	Nitrogen      float64 `json:"nitrogen"`
	Phosphorus    float64 `json:"phosphorus"`
	Potassium     float64 `json:"potassium"`
}

// RegionForCoordinates maps a latitude/longitude pair to a region name.
// Coordinates outside every known box are rejected.
func RegionForCoordinates(lat, lon float64) (string, error) {
	if !finite(lat, lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", errors.Newf("coordinates (%g, %g) out of range", lat, lon).
			Component("refdata").
			Category(errors.CategoryValidation).
			Build()
	}
	for _, b := range regionBoxes {
		if lat >= b.minLat && lat <= b.maxLat && lon >= b.minLon && lon <= b.maxLon {
			return b.region, nil
		}
	}
	return "", errors.Newf("no known region at (%g, %g)", lat, lon).
		Component("refdata").
		Category(errors.CategoryUnknownRegion).
		Build()
}

// SoilTypeForPH names the soil reaction class of a pH value.
func SoilTypeForPH(ph float64) string {
	switch {
	case ph < 5.5:
		return "Acidic"
	case ph < 6.5:
		return "Slightly Acidic"
	case ph <= 7.5:
		return "Neutral"
	case ph <= 8.5:
		return "Alkaline"
	default:
		return "Highly Alkaline"
	}
}

// SoilSummary describes the soil at the given coordinates.
func (s *Store) SoilSummary(lat, lon float64) (SoilSummary, error) {
	region, err := RegionForCoordinates(lat, lon)
	if err != nil {
		return SoilSummary{}, err
	}
	p, err := s.LookupSoil(region)
	if err != nil {
		return SoilSummary{}, fmt.Errorf("soil at (%g, %g): %w", lat, lon, err)
	}

	texture, ok := textures[region]
	if !ok {
		texture = "Mixed"
	}
	return SoilSummary{
		Region:        p.Region,
		SoilType:      SoilTypeForPH(p.PH),
		Texture:       texture,
		PH:            p.PH,
		OrganicCarbon: p.Nitrogen / 10,
		Nitrogen:      p.Nitrogen,
		Phosphorus:    p.Phosphorus,
		Potassium:     p.Potassium,
	}, nil
}
