// Package features turns a yield request into the scaled numeric vector the
// yield model was trained on.
package features

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tphakala/agrisense/internal/errors"
)

// Column names understood by the encoder.
const (
	ColState                   = "state"
	ColRegion                  = "region"
	ColCrop                    = "crop"
	ColYear                    = "year"
	ColN                       = "N"
	ColP                       = "P"
	ColK                       = "K"
	ColPH                      = "pH"
	ColTemp                    = "avg_temp_c"
	ColRainfall                = "total_rainfall_mm"
	ColHumidity                = "avg_humidity_percent"
	ColNPKRatio                = "NPK_ratio"
	ColSoilFertilityIndex      = "soil_fertility_index"
	ColTempRainfallInteraction = "temp_rainfall_interaction"
)

func isCategoricalColumn(col string) bool {
	return col == ColState || col == ColRegion || col == ColCrop
}

// Input is one yield request after reference data has been merged in.
type Input struct {
	Region             string
	Crop               string
	N                  float64
	P                  float64
	K                  float64
	PH                 float64
	AvgTempC           float64
	TotalRainfallMM    float64
	AvgHumidityPercent float64
	Year               *int
}

// Vector is an ordered, named feature vector.
type Vector struct {
	Columns []string
	Values  []float64
}

// Len returns the number of features.
func (v Vector) Len() int { return len(v.Values) }

// Value returns the value of a named column.
func (v Vector) Value(column string) (float64, bool) {
	i := slices.Index(v.Columns, column)
	if i < 0 || i >= len(v.Values) {
		return 0, false
	}
	return v.Values[i], true
}

// CategoryEncoder maps category strings to the integer codes fixed at
// training time. Codes are positions in the sorted class list.
type CategoryEncoder struct {
	column  string
	classes []string
	codes   map[string]int
}

var fold = cases.Fold()

func categoryKey(s string) string {
	return fold.String(strings.Join(strings.Fields(s), " "))
}

// NewCategoryEncoder builds an encoder from the fitted classes.
func NewCategoryEncoder(column string, classes []string) (*CategoryEncoder, error) {
	if !slices.IsSorted(classes) {
		return nil, schemaError("classes of %q are not sorted", column)
	}
	e := &CategoryEncoder{
		column:  column,
		classes: slices.Clone(classes),
		codes:   make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		key := categoryKey(c)
		if _, dup := e.codes[key]; dup {
			return nil, schemaError("class %q of %q is not unique", c, column)
		}
		e.codes[key] = i
	}
	return e, nil
}

// Encode returns the code of value. Unseen values are an error in the
// unknown-category category, never a default code.
func (e *CategoryEncoder) Encode(value string) (int, error) {
	code, ok := e.codes[categoryKey(value)]
	if !ok {
		return 0, errors.Newf("unknown %s %q", e.column, value).
			Component("features").
			Category(errors.CategoryUnknownCategory).
			Context("column", e.column).
			Build()
	}
	return code, nil
}

// Classes returns the fitted classes in code order.
func (e *CategoryEncoder) Classes() []string { return slices.Clone(e.classes) }

// Encoder builds feature vectors for one manifest. It is immutable and safe
// for concurrent use.
type Encoder struct {
	manifest *Manifest
	encoders map[string]*CategoryEncoder
	scaler   scaler
}

// NewEncoder checks that every manifest column can be populated and prepares
// the category encoders and the scaler.
func NewEncoder(m *Manifest) (*Encoder, error) {
	if err := m.Check(); err != nil {
		return nil, err
	}

	e := &Encoder{manifest: m, encoders: make(map[string]*CategoryEncoder, len(m.Categorical))}
	for col, classes := range m.Categorical {
		enc, err := NewCategoryEncoder(col, classes)
		if err != nil {
			return nil, err
		}
		e.encoders[col] = enc
	}

	for _, col := range m.FeatureColumns {
		if _, ok := m.Defaults[col]; ok {
			continue
		}
		if !knownColumn(col) {
			return nil, schemaError("encoder cannot populate feature column %q", col)
		}
	}

	s, err := newScaler(m.Scaler)
	if err != nil {
		return nil, err
	}
	e.scaler = s
	return e, nil
}

func knownColumn(col string) bool {
	switch col {
	case ColState, ColRegion, ColCrop, ColYear, ColN, ColP, ColK, ColPH,
		ColTemp, ColRainfall, ColHumidity,
		ColNPKRatio, ColSoilFertilityIndex, ColTempRainfallInteraction:
		return true
	}
	return false
}

// Columns returns the ordered feature columns.
func (e *Encoder) Columns() []string { return slices.Clone(e.manifest.FeatureColumns) }

// Manifest returns the manifest the encoder was built from.
func (e *Encoder) Manifest() *Manifest { return e.manifest }

// CategoryEncoder returns the encoder for a categorical column.
func (e *Encoder) CategoryEncoder(column string) (*CategoryEncoder, bool) {
	enc, ok := e.encoders[column]
	return enc, ok
}

// Encode validates in and returns the scaled vector in manifest order.
func (e *Encoder) Encode(in Input) (Vector, error) {
	if err := Validate(in); err != nil {
		return Vector{}, err
	}

	cols := e.manifest.FeatureColumns
	values := make([]float64, len(cols))
	for i, col := range cols {
		v, err := e.column(col, in)
		if err != nil {
			return Vector{}, err
		}
		values[i] = v
	}

	if err := e.scaler.transform(values); err != nil {
		return Vector{}, err
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Vector{}, schemaError("feature %q is not finite after scaling", cols[i])
		}
	}
	return Vector{Columns: slices.Clone(cols), Values: values}, nil
}

func (e *Encoder) column(col string, in Input) (float64, error) {
	if enc, ok := e.encoders[col]; ok {
		value := in.Region
		if col == ColCrop {
			if strings.TrimSpace(in.Crop) == "" {
				return 0, errors.Newf("crop is required by the yield model").
					Component("features").
					Category(errors.CategoryValidation).
					Context("fields", []string{ColCrop}).
					Build()
			}
			value = in.Crop
		}
		code, err := enc.Encode(value)
		return float64(code), err
	}

	switch col {
	case ColN:
		return in.N, nil
	case ColP:
		return in.P, nil
	case ColK:
		return in.K, nil
	case ColPH:
		return in.PH, nil
	case ColTemp:
		return in.AvgTempC, nil
	case ColRainfall:
		return in.TotalRainfallMM, nil
	case ColHumidity:
		return in.AvgHumidityPercent, nil
	case ColNPKRatio:
		return in.N / (in.P + in.K + 1), nil
	case ColSoilFertilityIndex:
		return (in.N + in.P + in.K) / 3, nil
	case ColTempRainfallInteraction:
		return in.AvgTempC * in.TotalRainfallMM / 1000, nil
	case ColYear:
		if in.Year != nil {
			return float64(*in.Year), nil
		}
	}

	if v, ok := e.manifest.Defaults[col]; ok {
		return v, nil
	}
	if col == ColYear {
		return 0, errors.Newf("year is required by the yield model").
			Component("features").
			Category(errors.CategoryValidation).
			Context("fields", []string{ColYear}).
			Build()
	}
	return 0, schemaError("no value for feature column %q", col)
}

// Range is an inclusive bound on an input field.
type Range struct {
	Field    string
	Min, Max float64
	Unit     string
}

// InputRanges are the accepted ranges of the numeric request fields.
var InputRanges = []Range{
	{Field: "N", Min: 0, Max: 1000, Unit: "mg/kg"},
	{Field: "P", Min: 0, Max: 200, Unit: "mg/kg"},
	{Field: "K", Min: 0, Max: 1000, Unit: "mg/kg"},
	{Field: "pH", Min: 0, Max: 14},
	{Field: "avg_temp_c", Min: -10, Max: 60, Unit: "°C"},
	{Field: "total_rainfall_mm", Min: 0, Max: 5000, Unit: "mm"},
	{Field: "avg_humidity_percent", Min: 0, Max: 100, Unit: "%"},
}

func (in Input) numeric() []float64 {
	return []float64{in.N, in.P, in.K, in.PH, in.AvgTempC, in.TotalRainfallMM, in.AvgHumidityPercent}
}

// Validate checks every numeric field is finite and inside InputRanges.
// Out of range values are rejected, never clamped. The error lists every
// violated field.
func Validate(in Input) error {
	var problems, fields []string
	for i, v := range in.numeric() {
		r := InputRanges[i]
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			problems = append(problems, fmt.Sprintf("%s must be a finite number", r.Field))
		case v < r.Min || v > r.Max:
			problems = append(problems, fmt.Sprintf("%s %g outside [%g, %g]%s", r.Field, v, r.Min, r.Max, unitSuffix(r.Unit)))
		default:
			continue
		}
		fields = append(fields, r.Field)
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid input: %s", strings.Join(problems, "; ")).
		Component("features").
		Category(errors.CategoryValidation).
		Context("fields", fields).
		Build()
}

func unitSuffix(unit string) string {
	if unit == "" {
		return ""
	}
	return " " + unit
}
