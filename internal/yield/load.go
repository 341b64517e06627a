package yield

import (
	"bytes"
	"time"

	"github.com/tphakala/agrisense/internal/features"
	"github.com/tphakala/agrisense/internal/logger"
)

// Model formats accepted in the manifest.
var supportedFormats = map[string]bool{
	"":              true,
	"xgboost-json":  true,
	"ensemble-json": true,
}

// Load parses the ensemble artifact and checks it against the manifest the
// encoder was built from.
func Load(data []byte, m *features.Manifest) (*Ensemble, error) {
	start := time.Now()
	if len(data) == 0 {
		return nil, unavailable("empty yield model artifact")
	}
	if !supportedFormats[m.Model.Format] {
		return nil, mismatch("unsupported yield model format %q", m.Model.Format)
	}
	if v := m.Compat.ModelFormatVersion; v != 0 && v != SupportedFormatVersion {
		return nil, mismatch("manifest requires model format version %d, supported is %d", v, SupportedFormatVersion)
	}

	e, err := LoadEnsemble(bytes.NewReader(data), m.FeatureColumns)
	if err != nil {
		return nil, err
	}

	logger.Global().Module("yield").Info("yield model loaded",
		logger.String("kind", e.Kind()),
		logger.Int("trees", e.NumTrees()),
		logger.Int("features", e.NumFeatures()),
		logger.Duration("load_time", time.Since(start)))
	return e, nil
}
