package refdata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/k3a/html2text"
	"golang.org/x/text/encoding/charmap"

	"github.com/tphakala/agrisense/internal/datastore"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// Reference table file names.
const (
	SoilFile       = "state_soil_data.csv"
	WeatherFile    = "state_weather_data.csv"
	DiseaseFile    = "disease_info.csv"
	SupplementFile = "supplement_info.csv"
)

// LoadCSV builds a Store from the CSV tables in dir.
func LoadCSV(dir string) (*Store, error) {
	t, err := ReadCSV(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	return New(t)
}

// ReadCSV parses the four reference tables from fsys without validating
// them. The soil and weather tables are required, the disease and supplement
// tables are optional.
func ReadCSV(fsys fs.FS) (*datastore.Tables, error) {
	t := &datastore.Tables{}
	var err error

	if t.Soil, err = readTable(fsys, SoilFile, true, parseSoil); err != nil {
		return nil, err
	}
	if t.Weather, err = readTable(fsys, WeatherFile, true, parseWeather); err != nil {
		return nil, err
	}
	if t.Diseases, err = readTable(fsys, DiseaseFile, false, parseDisease); err != nil {
		return nil, err
	}
	if t.Supplements, err = readTable(fsys, SupplementFile, false, parseSupplement); err != nil {
		return nil, err
	}

	GetLogger().Debug("reference CSV read",
		logger.Int("soil_rows", len(t.Soil)),
		logger.Int("weather_rows", len(t.Weather)),
		logger.Int("disease_rows", len(t.Diseases)),
		logger.Int("supplement_rows", len(t.Supplements)))
	return t, nil
}

// row gives named access to one CSV record.
type row struct {
	cols   map[string]int
	record []string
	line   int
}

func (r row) str(names ...string) string {
	for _, name := range names {
		if i, ok := r.cols[name]; ok && i < len(r.record) {
			return strings.TrimSpace(r.record[i])
		}
	}
	return ""
}

func (r row) number(name string) (float64, error) {
	raw := r.str(name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: invalid number %q", r.line, name, raw)
	}
	return v, nil
}

func (r row) integer(names ...string) (int, error) {
	raw := r.str(names...)
	v, err := strconv.Atoi(raw)
	if err != nil {
		// pandas exports integer columns as 1.0 when a column contained NaN
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("line %d: column %s: invalid integer %q", r.line, names[0], raw)
		}
		v = int(f)
	}
	return v, nil
}

func headerKey(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func readTable[T any](fsys fs.FS, name string, required bool, parse func(row) (T, error)) ([]T, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("refdata").
			Category(errors.CategoryFileIO).
			Context("file", name).
			Build()
	}

	r := csv.NewReader(decodeText(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, tableError(name, err)
	}
	if len(records) == 0 {
		return nil, tableError(name, fmt.Errorf("missing header row"))
	}

	cols := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		cols[headerKey(h)] = i
	}

	out := make([]T, 0, len(records)-1)
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		v, err := parse(row{cols: cols, record: rec, line: i + 2})
		if err != nil {
			return nil, tableError(name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func tableError(name string, err error) error {
	return errors.New(err).
		Component("refdata").
		Category(errors.CategoryValidation).
		Context("file", name).
		Build()
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// decodeText returns a reader over data as UTF-8. The disease tables are
// distributed in Windows-1252.
func decodeText(data []byte) io.Reader {
	if utf8.Valid(data) {
		return bytes.NewReader(data)
	}
	return charmap.Windows1252.NewDecoder().Reader(bytes.NewReader(data))
}

// cleanText strips HTML markup and surrounding whitespace.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "<&") {
		return s
	}
	return strings.TrimSpace(html2text.HTML2Text(s))
}

func parseSoil(r row) (datastore.StateSoil, error) {
	var s datastore.StateSoil
	var err error
	s.State = r.str("state")
	if s.N, err = r.number("n"); err != nil {
		return s, err
	}
	if s.P, err = r.number("p"); err != nil {
		return s, err
	}
	if s.K, err = r.number("k"); err != nil {
		return s, err
	}
	s.PH, err = r.number("ph")
	return s, err
}

func parseWeather(r row) (datastore.StateWeather, error) {
	var w datastore.StateWeather
	var err error
	w.State = r.str("state")
	if r.str("year") != "" {
		if w.Year, err = r.integer("year"); err != nil {
			return w, err
		}
	}
	if w.AvgTempC, err = r.number("avg_temp_c"); err != nil {
		return w, err
	}
	if w.TotalRainfallMM, err = r.number("total_rainfall_mm"); err != nil {
		return w, err
	}
	w.AvgHumidityPercent, err = r.number("avg_humidity_percent")
	return w, err
}

func parseDisease(r row) (datastore.DiseaseInfo, error) {
	idx, err := r.integer("index", "idx")
	if err != nil {
		return datastore.DiseaseInfo{}, err
	}
	return datastore.DiseaseInfo{
		Index:       idx,
		DiseaseName: r.str("disease_name"),
		Description: r.str("description"),
		Prevention:  r.str("possible steps", "prevention"),
		ImageURL:    r.str("image_url"),
	}, nil
}

func parseSupplement(r row) (datastore.SupplementInfo, error) {
	idx, err := r.integer("index", "idx")
	if err != nil {
		return datastore.SupplementInfo{}, err
	}
	return datastore.SupplementInfo{
		Index:       idx,
		DiseaseName: r.str("disease_name"),
		Name:        r.str("supplement name", "name"),
		ImageURL:    r.str("supplement image", "image_url"),
		BuyLink:     r.str("buy link", "buy_link"),
	}, nil
}
