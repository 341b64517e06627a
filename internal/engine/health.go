package engine

import (
	"slices"
	"time"
)

// Overall health values.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthSummary reports which capabilities are available and how each
// artifact fared at startup.
type HealthSummary struct {
	Status             string           `json:"status"`
	Name               string           `json:"name,omitempty"`
	DiseaseModelLoaded bool             `json:"disease_model_loaded"`
	YieldModelLoaded   bool             `json:"yield_model_loaded"`
	SchemaVersion      int              `json:"schema_version"`
	Regions            int              `json:"regions"`
	DiseaseClasses     int              `json:"disease_classes"`
	Artifacts          []ArtifactStatus `json:"artifacts"`
	Uptime             time.Duration    `json:"uptime_ns"`
}

// Health returns the capability and artifact summary.
func (e *Engine) Health() HealthSummary {
	h := HealthSummary{
		Status:             HealthOK,
		Name:               e.name,
		DiseaseModelLoaded: e.DiagnosisAvailable(),
		YieldModelLoaded:   e.ForecastAvailable(),
		Regions:            len(e.store.ListRegions()),
		DiseaseClasses:     e.store.DiseaseCount(),
		Artifacts:          slices.Clone(e.artifacts),
		Uptime:             time.Since(e.startedAt),
	}
	if h.Artifacts == nil {
		h.Artifacts = []ArtifactStatus{}
	}
	if e.encoder != nil {
		h.SchemaVersion = e.encoder.Manifest().SchemaVersion
	}
	if !h.DiseaseModelLoaded || !h.YieldModelLoaded {
		h.Status = HealthDegraded
	}
	return h
}

// DiseaseModelInfo describes the loaded classifier.
type DiseaseModelInfo struct {
	Loaded     bool   `json:"loaded"`
	NumClasses int    `json:"num_classes"`
	InputSize  []int  `json:"input_shape,omitempty"`
	Layout     string `json:"layout,omitempty"`
	Error      string `json:"error,omitempty"`
}

// YieldModelInfo describes the loaded yield model and its feature schema.
type YieldModelInfo struct {
	Loaded         bool                `json:"loaded"`
	Kind           string              `json:"model_kind,omitempty"`
	NumFeatures    int                 `json:"num_features"`
	SchemaVersion  int                 `json:"schema_version"`
	FeatureColumns []string            `json:"feature_columns"`
	Categorical    map[string][]string `json:"categorical,omitempty"`
	Scaler         string              `json:"scaler,omitempty"`
	Error          string              `json:"error,omitempty"`
}

// ModelInfo is the model description served by the model-info endpoint.
type ModelInfo struct {
	Disease DiseaseModelInfo `json:"disease"`
	Yield   YieldModelInfo   `json:"yield"`
}

// ModelInfo describes both models, including why an unavailable one failed.
func (e *Engine) ModelInfo() ModelInfo {
	var info ModelInfo

	info.Disease.NumClasses = e.store.DiseaseCount()
	if e.classifier != nil {
		spec := e.classifier.Input()
		info.Disease.NumClasses = e.classifier.NumClasses()
		info.Disease.InputSize = spec.Shape()
		info.Disease.Layout = spec.Layout
	}
	if e.diseaseErr != nil {
		info.Disease.Error = e.diseaseErr.Error()
	} else {
		info.Disease.Loaded = true
	}

	info.Yield.FeatureColumns = []string{}
	if e.encoder != nil {
		m := e.encoder.Manifest()
		info.Yield.SchemaVersion = m.SchemaVersion
		info.Yield.FeatureColumns = e.encoder.Columns()
		info.Yield.Scaler = m.Scaler.Kind
		if len(m.Categorical) > 0 {
			info.Yield.Categorical = make(map[string][]string, len(m.Categorical))
			for col := range m.Categorical {
				if enc, ok := e.encoder.CategoryEncoder(col); ok {
					info.Yield.Categorical[col] = enc.Classes()
				}
			}
		}
	}
	if e.predictor != nil {
		info.Yield.Kind = e.predictor.Kind()
		info.Yield.NumFeatures = e.predictor.NumFeatures()
	}
	if e.yieldErr != nil {
		info.Yield.Error = e.yieldErr.Error()
	} else {
		info.Yield.Loaded = true
	}
	return info
}
