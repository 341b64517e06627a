package features

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// CurrentSchemaVersion is the newest manifest layout this package reads.
const CurrentSchemaVersion = 1

// Scaler kinds.
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
	ScalerNone     = "none"
)

// Manifest describes how the yield model was trained: the ordered feature
// columns, the fitted categorical encoders and the fitted scaler.
type Manifest struct {
	SchemaVersion  int                 `yaml:"schema_version" json:"schema_version"`
	FeatureColumns []string            `yaml:"feature_columns" json:"feature_columns"`
	Categorical    map[string][]string `yaml:"categorical" json:"categorical,omitempty"`
	// Defaults supplies constant values for columns the request does not
	// carry, e.g. the year when the caller omits it.
	Defaults map[string]float64 `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Scaler   ScalerParams       `yaml:"scaler" json:"scaler"`
	Model    ModelSpec          `yaml:"model" json:"model"`
	Compat   Compat             `yaml:"compat" json:"compat"`
}

// ScalerParams are the fitted scaler attributes.
type ScalerParams struct {
	Kind         string    `yaml:"kind" json:"kind"`
	Mean         []float64 `yaml:"mean,omitempty" json:"mean,omitempty"`
	Scale        []float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Min          []float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max          []float64 `yaml:"max,omitempty" json:"max,omitempty"`
	FeatureRange []float64 `yaml:"feature_range,omitempty" json:"feature_range,omitempty"`
}

// ModelSpec identifies the model artifact the manifest belongs to.
type ModelSpec struct {
	Path         string `yaml:"path" json:"path"`
	Format       string `yaml:"format" json:"format"`
	FeatureCount int    `yaml:"feature_count" json:"feature_count"`
}

// Compat carries the version requirements checked at load time.
type Compat struct {
	MinManifestVersion int `yaml:"min_manifest_version" json:"min_manifest_version"`
	ModelFormatVersion int `yaml:"model_format_version" json:"model_format_version"`
}

func schemaError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("features").
		Category(errors.CategorySchemaMismatch).
		Build()
}

// LoadManifest reads and checks a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("features").
			Category(errors.CategoryModelUnavailable).
			FileContext(path, 0).
			Build()
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	GetLogger().Info("feature manifest loaded",
		logger.String("path", path),
		logger.Int("schema_version", m.SchemaVersion),
		logger.Int("features", len(m.FeatureColumns)),
		logger.String("scaler", m.Scaler.Kind))
	return m, nil
}

// ParseManifest decodes a manifest and runs Check on it. Unknown keys are
// rejected so a manifest written for a newer layout fails loudly.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, errors.New(fmt.Errorf("decoding feature manifest: %w", err)).
			Component("features").
			Category(errors.CategoryModelUnavailable).
			Build()
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Check validates the internal consistency of the manifest.
func (m *Manifest) Check() error {
	if m.SchemaVersion < 1 || m.SchemaVersion > CurrentSchemaVersion {
		return schemaError("unsupported manifest schema version %d (supported 1..%d)", m.SchemaVersion, CurrentSchemaVersion)
	}
	if m.Compat.MinManifestVersion > m.SchemaVersion {
		return schemaError("model requires manifest version %d, manifest is version %d", m.Compat.MinManifestVersion, m.SchemaVersion)
	}

	n := len(m.FeatureColumns)
	if n == 0 {
		return schemaError("manifest lists no feature columns")
	}
	seen := make(map[string]bool, n)
	for _, c := range m.FeatureColumns {
		if seen[c] {
			return schemaError("feature column %q listed twice", c)
		}
		seen[c] = true
	}
	if m.Model.FeatureCount != 0 && m.Model.FeatureCount != n {
		return schemaError("model expects %d features, manifest lists %d", m.Model.FeatureCount, n)
	}

	for col, classes := range m.Categorical {
		if !seen[col] {
			return schemaError("categorical column %q is not a feature column", col)
		}
		if !isCategoricalColumn(col) {
			return schemaError("column %q cannot be encoded as a category", col)
		}
		if len(classes) == 0 {
			return schemaError("categorical column %q has no classes", col)
		}
	}
	for _, col := range m.FeatureColumns {
		if isCategoricalColumn(col) {
			if _, ok := m.Categorical[col]; !ok {
				return schemaError("categorical column %q has no fitted classes", col)
			}
		}
	}

	return m.Scaler.check(n)
}

func (p ScalerParams) check(n int) error {
	switch p.Kind {
	case ScalerStandard:
		if len(p.Mean) != n || len(p.Scale) != n {
			return schemaError("standard scaler has %d means and %d scales for %d columns", len(p.Mean), len(p.Scale), n)
		}
	case ScalerMinMax:
		if len(p.Min) != n || len(p.Max) != n {
			return schemaError("minmax scaler has %d minimums and %d maximums for %d columns", len(p.Min), len(p.Max), n)
		}
		if len(p.FeatureRange) != 0 && len(p.FeatureRange) != 2 {
			return schemaError("minmax feature_range must have two values")
		}
		if len(p.FeatureRange) == 2 && p.FeatureRange[0] >= p.FeatureRange[1] {
			return schemaError("minmax feature_range %v is empty", p.FeatureRange)
		}
	case ScalerNone:
	default:
		return schemaError("unknown scaler kind %q", p.Kind)
	}
	return nil
}

// ColumnsEqual reports whether columns matches the manifest column order.
func (m *Manifest) ColumnsEqual(columns []string) bool {
	return slices.Equal(m.FeatureColumns, columns)
}
