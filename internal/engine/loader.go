package engine

import (
	"context"
	"strings"
	"time"

	"github.com/tphakala/agrisense/internal/artifacts"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/disease"
	"github.com/tphakala/agrisense/internal/disease/tflite"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/features"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/observability/metrics"
	"github.com/tphakala/agrisense/internal/refdata"
	"github.com/tphakala/agrisense/internal/yield"
)

// artifactStatusOf maps a load error to the status reported in health output.
func artifactStatusOf(err error) string {
	switch {
	case err == nil:
		return metrics.ArtifactLoaded
	case errors.IsCategory(err, errors.CategoryNotFound):
		return metrics.ArtifactMissing
	case errors.IsCategory(err, errors.CategorySchemaMismatch):
		return metrics.ArtifactIncompatible
	default:
		return metrics.ArtifactCorrupt
	}
}

// startup collects artifact outcomes while the engine dependencies load.
type startup struct {
	ctx      context.Context
	fetcher  *artifacts.Fetcher
	recorder metrics.Recorder
	statuses []ArtifactStatus
}

func (s *startup) record(name, location string, err error) {
	status := artifactStatusOf(err)
	s.recordStatus(name, location, status, err)
}

func (s *startup) recordStatus(name, location, status string, err error) {
	a := ArtifactStatus{Name: name, Path: location, Status: status}
	log := GetLogger().With(logger.String("artifact", name), logger.String("location", location))
	switch {
	case err != nil:
		a.Error = err.Error()
		log.Error("artifact failed to load", logger.String("status", status), logger.Error(err))
	case status == metrics.ArtifactDisabled:
		log.Info("artifact disabled by configuration")
	default:
		log.Info("artifact loaded")
	}
	s.statuses = append(s.statuses, a)
	s.recorder.RecordOperation(metrics.OpModelLoad+":"+name, status)
}

// Load builds the engine from settings. Reference data is required and its
// failure is returned; model artifacts that fail to load only disable their
// capability and are reported through Health.
func Load(ctx context.Context, settings *conf.Settings, fetcher *artifacts.Fetcher, recorder metrics.Recorder) (*Engine, error) {
	start := time.Now()
	if recorder == nil {
		recorder = metrics.NewNoOpRecorder()
	}
	if fetcher == nil {
		fetcher = artifacts.New(settings)
	}
	s := &startup{ctx: ctx, fetcher: fetcher, recorder: recorder}

	store, err := refdata.Load(ctx, settings)
	s.record(ArtifactRefData, refDataLocation(settings), err)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Store:    store,
		Recorder: recorder,
		Settings: settings.Engine,
		Name:     settings.Main.Name,
	}
	deps.Classifier = s.loadClassifier(settings.Models.Disease, store.DiseaseCount())
	deps.Encoder, deps.Predictor = s.loadYield(settings.Models.Yield)
	deps.Artifacts = s.statuses

	e := New(deps)
	GetLogger().Info("engine ready",
		logger.Bool("diagnosis", e.DiagnosisAvailable()),
		logger.Bool("forecast", e.ForecastAvailable()),
		logger.Duration("startup_time", time.Since(start)))
	return e, nil
}

func refDataLocation(settings *conf.Settings) string {
	switch settings.RefData.Source {
	case "csv":
		return settings.ResolvePath(settings.RefData.Dir)
	case "sqlite":
		return settings.ResolvePath(settings.RefData.SQLite.Path)
	case "mysql":
		return "mysql://" + settings.RefData.MySQL.Host + "/" + settings.RefData.MySQL.Database
	default:
		return "builtin"
	}
}

// InputSpecFromSettings converts the configured preprocessing contract.
func InputSpecFromSettings(ds conf.DiseaseModelSettings) disease.InputSpec {
	spec := disease.DefaultInputSpec()
	if ds.Layout != "" {
		spec.Layout = strings.ToUpper(ds.Layout)
	}
	spec.Mean = toFloat32(ds.Mean)
	spec.Std = toFloat32(ds.Std)
	return spec
}

func toFloat32(values []float64) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

func (s *startup) loadClassifier(ds conf.DiseaseModelSettings, classes int) disease.Classifier {
	if !ds.Enabled {
		s.recordStatus(ArtifactDiseaseModel, ds.Path, metrics.ArtifactDisabled, nil)
		return nil
	}

	data, err := s.fetcher.Fetch(s.ctx, ds.Path)
	if err != nil {
		s.record(ArtifactDiseaseModel, ds.Path, err)
		return nil
	}

	c, err := tflite.Load(tflite.Config{
		Name:       ds.Path,
		Data:       data,
		Threads:    ds.Threads,
		Input:      InputSpecFromSettings(ds),
		NumClasses: classes,
	})
	s.record(ArtifactDiseaseModel, ds.Path, err)
	if err != nil {
		return nil
	}
	return c
}

func (s *startup) loadYield(ys conf.YieldModelSettings) (*features.Encoder, yield.Predictor) {
	if !ys.Enabled {
		s.recordStatus(ArtifactManifest, ys.Manifest, metrics.ArtifactDisabled, nil)
		s.recordStatus(ArtifactYieldModel, ys.Path, metrics.ArtifactDisabled, nil)
		return nil, nil
	}

	manifest, encoder, err := s.loadManifest(ys.Manifest)
	s.record(ArtifactManifest, ys.Manifest, err)
	if err != nil {
		// The model cannot be checked without its schema.
		s.record(ArtifactYieldModel, ys.Path, errors.Newf("feature manifest unavailable").
			Component("engine").
			Category(errors.CategoryModelUnavailable).
			Build())
		return nil, nil
	}

	location := modelLocation(ys, manifest)
	data, err := s.fetcher.Fetch(s.ctx, location)
	if err != nil {
		s.record(ArtifactYieldModel, location, err)
		return encoder, nil
	}
	ensemble, err := yield.Load(data, manifest)
	s.record(ArtifactYieldModel, location, err)
	if err != nil {
		return encoder, nil
	}
	return encoder, ensemble
}

func (s *startup) loadManifest(location string) (*features.Manifest, *features.Encoder, error) {
	data, err := s.fetcher.Fetch(s.ctx, location)
	if err != nil {
		return nil, nil, err
	}
	m, err := features.ParseManifest(data)
	if err != nil {
		return nil, nil, err
	}
	enc, err := features.NewEncoder(m)
	if err != nil {
		return nil, nil, err
	}
	return m, enc, nil
}

// modelLocation prefers the configured model path and otherwise resolves the
// manifest's model path next to the manifest.
func modelLocation(ys conf.YieldModelSettings, m *features.Manifest) string {
	if ys.Path != "" || m.Model.Path == "" {
		return ys.Path
	}
	if strings.HasPrefix(m.Model.Path, "/") || strings.HasPrefix(m.Model.Path, "s3://") {
		return m.Model.Path
	}
	// Keep the s3:// scheme intact, path.Join would collapse its slashes.
	return ys.Manifest[:strings.LastIndex(ys.Manifest, "/")+1] + m.Model.Path
}
