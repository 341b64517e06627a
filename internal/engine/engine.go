// Package engine is the prediction facade. An Engine is built once at
// startup from the reference tables and whichever model adapters loaded, and
// is then shared read-only by all request handlers.
//
// Each request walks RECEIVED → VALIDATED → ENCODED → INFERRED → DERIVED →
// RETURNED, or stops in REJECTED (bad input) or DEGRADED (model or reference
// data unavailable). Results carry the terminal state; failures carry it in
// their error context, see StateOf.
package engine

import (
	"slices"
	"time"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/disease"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/features"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/observability/metrics"
	"github.com/tphakala/agrisense/internal/refdata"
	"github.com/tphakala/agrisense/internal/yield"
)

// Artifact names used in the health summary and model-load metrics.
const (
	ArtifactDiseaseModel = "disease_model"
	ArtifactYieldModel   = "yield_model"
	ArtifactManifest     = "feature_manifest"
	ArtifactRefData      = "reference_data"
)

// Capabilities served by the engine.
const (
	CapabilityDiagnose = metrics.OpDiagnose
	CapabilityForecast = metrics.OpForecast
)

// ArtifactStatus is the startup outcome of one persisted artifact.
type ArtifactStatus struct {
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Loaded reports whether the artifact is usable.
func (a ArtifactStatus) Loaded() bool { return a.Status == metrics.ArtifactLoaded }

// Deps are the collaborators an Engine is built from. A nil Classifier or a
// nil Encoder/Predictor pair leaves the corresponding capability unavailable.
type Deps struct {
	Store      *refdata.Store
	Classifier disease.Classifier
	Encoder    *features.Encoder
	Predictor  yield.Predictor
	Artifacts  []ArtifactStatus
	Recorder   metrics.Recorder
	Settings   conf.EngineSettings
	Name       string
}

// Engine is the immutable per-process prediction context.
type Engine struct {
	store      *refdata.Store
	classifier disease.Classifier
	encoder    *features.Encoder
	predictor  yield.Predictor
	artifacts  []ArtifactStatus
	recorder   metrics.Recorder
	policy     conf.EngineSettings
	name       string
	startedAt  time.Time

	diseaseErr error
	yieldErr   error
}

// New builds the engine. Missing capabilities are resolved here, once, into
// the ModelUnavailable error their entry points keep returning.
func New(d Deps) *Engine {
	e := &Engine{
		store:      d.Store,
		classifier: d.Classifier,
		encoder:    d.Encoder,
		predictor:  d.Predictor,
		artifacts:  slices.Clone(d.Artifacts),
		recorder:   d.Recorder,
		policy:     d.Settings,
		name:       d.Name,
		startedAt:  time.Now(),
	}
	if e.recorder == nil {
		e.recorder = metrics.NewNoOpRecorder()
	}
	if e.store == nil {
		e.store = defaultStore(refdata.Builtin)
	}

	e.diseaseErr = e.checkDisease()
	e.yieldErr = e.checkYield()

	log := GetLogger()
	if e.diseaseErr != nil {
		log.Warn("disease diagnosis unavailable", logger.Error(e.diseaseErr))
	}
	if e.yieldErr != nil {
		log.Warn("yield forecasting unavailable", logger.Error(e.yieldErr))
	}
	return e
}

// defaultStore loads the embedded tables. If they fail to parse the engine
// runs on an empty store: lookups find nothing and diagnosis degrades on the
// disease table size check.
func defaultStore(load func() (*refdata.Store, error)) *refdata.Store {
	s, err := load()
	if err == nil {
		return s
	}
	GetLogger().Error("builtin reference data failed to load, serving empty tables",
		logger.Error(err))
	empty, _ := refdata.New(nil) // empty tables cannot fail validation
	return empty
}

func (e *Engine) checkDisease() error {
	if e.classifier == nil {
		return e.unavailable(CapabilityDiagnose, ArtifactDiseaseModel)
	}
	if got, want := e.classifier.NumClasses(), e.store.DiseaseCount(); got != want {
		return errors.Newf("classifier has %d classes, disease table has %d entries", got, want).
			Component("engine").
			Category(errors.CategorySchemaMismatch).
			Build()
	}
	return nil
}

func (e *Engine) checkYield() error {
	if e.encoder == nil {
		return e.unavailable(CapabilityForecast, ArtifactManifest)
	}
	if e.predictor == nil {
		return e.unavailable(CapabilityForecast, ArtifactYieldModel)
	}
	if got, want := e.predictor.NumFeatures(), len(e.encoder.Columns()); got > want {
		return errors.Newf("yield model uses %d features, manifest defines %d", got, want).
			Component("engine").
			Category(errors.CategorySchemaMismatch).
			Build()
	}
	return nil
}

// unavailable builds the ModelUnavailable error for a capability, carrying
// the startup failure of the artifact when one was recorded.
func (e *Engine) unavailable(capability, artifact string) error {
	b := errors.Newf("%s capability unavailable: %s not loaded", capability, artifact).
		Component("engine").
		Category(errors.CategoryModelUnavailable).
		Context("artifact", artifact)
	for _, a := range e.artifacts {
		if a.Name == artifact && !a.Loaded() {
			b = b.Context("artifact_status", a.Status)
			if a.Error != "" {
				b = b.Context("cause", a.Error)
			}
		}
	}
	return b.Build()
}

// Store returns the reference tables the engine reads.
func (e *Engine) Store() *refdata.Store { return e.store }

// DiagnosisAvailable reports whether Diagnose can serve requests.
func (e *Engine) DiagnosisAvailable() bool { return e.diseaseErr == nil }

// ForecastAvailable reports whether ForecastYield can serve requests.
func (e *Engine) ForecastAvailable() bool { return e.yieldErr == nil }

// Close releases the model adapters.
func (e *Engine) Close() error {
	if e.classifier != nil {
		return e.classifier.Close()
	}
	return nil
}
