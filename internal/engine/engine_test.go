package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/disease"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/features"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/observability/metrics"
	"github.com/tphakala/agrisense/internal/refdata"
	"github.com/tphakala/agrisense/internal/yield"
)

const testManifest = `schema_version: 1
feature_columns: [state, N, P, K, pH, avg_temp_c, total_rainfall_mm, avg_humidity_percent]
categorical:
  state: [Kerala, Punjab, Tamil Nadu]
scaler:
  kind: standard
  mean: [1, 200, 25, 180, 6.8, 25, 1200, 60]
  scale: [0.8, 60, 10, 50, 0.9, 3, 500, 12]
model:
  format: xgboost-json
  feature_count: 8
compat:
  min_manifest_version: 1
  model_format_version: 1
`

// Splits on scaled values: nitrogen above the training mean adds 1000 kg/ha,
// rainfall below half a standard deviation under the mean costs 300 kg/ha.
const testEnsemble = `{
  "format_version": 1,
  "kind": "xgboost",
  "aggregation": "sum",
  "base_score": 1500,
  "trees": [
    {"nodeid": 0, "split": "N", "split_condition": 0, "yes": 1, "no": 2, "missing": 1,
     "children": [{"nodeid": 1, "leaf": 500}, {"nodeid": 2, "leaf": 1500}]},
    {"nodeid": 0, "split": "f6", "split_condition": -0.5, "yes": 1, "no": 2, "missing": 2,
     "children": [{"nodeid": 1, "leaf": -300}, {"nodeid": 2, "leaf": 200}]}
  ]
}`

// fakeClassifier picks the class from the mean pixel value so identical
// images always map to the same class.
type fakeClassifier struct {
	classes int
	spec    disease.InputSpec
	err     error
	closed  bool
	fixed   *int // always predict this class when set
}

func (f *fakeClassifier) Classify(t disease.Tensor) (disease.Prediction, error) {
	if f.err != nil {
		return disease.Prediction{}, f.err
	}
	if f.fixed != nil {
		return disease.Prediction{ClassIndex: *f.fixed, Confidence: 0.875}, nil
	}
	var sum float64
	for _, v := range t.Data {
		sum += float64(v)
	}
	mean := sum / float64(len(t.Data))
	idx := min(int(mean*float64(f.classes-1)), f.classes-1)
	return disease.Prediction{ClassIndex: idx, Confidence: 0.875}, nil
}

func (f *fakeClassifier) NumClasses() int { return f.classes }
func (f *fakeClassifier) Input() disease.InputSpec { return f.spec }
func (f *fakeClassifier) Close() error {
	f.closed = true
	return nil
}

func builtinStore(t *testing.T) *refdata.Store {
	t.Helper()
	store, err := refdata.Builtin()
	require.NoError(t, err)
	return store
}

func testYield(t *testing.T) (*features.Encoder, *yield.Ensemble) {
	t.Helper()
	m, err := features.ParseManifest([]byte(testManifest))
	require.NoError(t, err)
	enc, err := features.NewEncoder(m)
	require.NoError(t, err)
	ens, err := yield.Load([]byte(testEnsemble), m)
	require.NoError(t, err)
	return enc, ens
}

type engineOption func(*Deps)

func withoutYield() engineOption {
	return func(d *Deps) { d.Encoder, d.Predictor = nil, nil }
}

func withoutClassifier() engineOption {
	return func(d *Deps) { d.Classifier = nil }
}

func withClass(idx int) engineOption {
	return func(d *Deps) {
		d.Classifier = &fakeClassifier{classes: d.Store.DiseaseCount(), spec: disease.DefaultInputSpec(), fixed: &idx}
	}
}

func withStore(store *refdata.Store) engineOption {
	return func(d *Deps) { d.Store = store }
}

func withPolicy(p conf.EngineSettings) engineOption {
	return func(d *Deps) { d.Settings = p }
}

func newTestEngine(t *testing.T, opts ...engineOption) (*Engine, *metrics.TestRecorder) {
	t.Helper()
	store := builtinStore(t)
	enc, ens := testYield(t)
	rec := metrics.NewTestRecorder()
	d := Deps{
		Store:      store,
		Classifier: &fakeClassifier{classes: store.DiseaseCount(), spec: disease.InputSpec{Width: 32, Height: 32, Layout: disease.LayoutNCHW}},
		Encoder:    enc,
		Predictor:  ens,
		Recorder:   rec,
		Settings:   conf.EngineSettings{CropWaterNeedMM: 40},
		Name:       "test",
	}
	for _, opt := range opts {
		opt(&d)
	}
	return New(d), rec
}

func leafPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for y := range 48 {
		for x := range 64 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func ptr[T any](v T) *T { return &v }

func punjabRequest() YieldRequest {
	return YieldRequest{
		Region:             "Punjab",
		N:                  ptr(180.0),
		P:                  ptr(45.0),
		K:                  ptr(200.0),
		PH:                 ptr(6.8),
		AvgTempC:           ptr(26.5),
		TotalRainfallMM:    ptr(950.0),
		AvgHumidityPercent: ptr(60.0),
	}
}

func TestForecastYieldPunjab(t *testing.T) {
	t.Parallel()
	e, rec := newTestEngine(t)

	res, err := e.ForecastYield(t.Context(), punjabRequest())
	require.NoError(t, err)

	// N 180 scales below 0, rainfall 950 scales to -0.5 which is not below -0.5
	assert.InDelta(t, 1500+500+200, res.EstimatedYield, 1e-9)
	assert.False(t, math.IsNaN(res.EstimatedYield) || math.IsInf(res.EstimatedYield, 0))
	assert.Positive(t, res.EstimatedYield)
	assert.NotEmpty(t, res.Tips)
	assert.Equal(t, StateReturned, res.State)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, "Punjab", res.Region)
	assert.Equal(t, "Medium Yield", res.YieldCategory)
	assert.Equal(t, "xgboost", res.ModelKind)
	assert.Equal(t, SourceRequest, res.Inputs.Sources[features.ColN])
	assert.Equal(t, res.Risk.Tags, res.RiskFlags)
	assert.Equal(t, "Low", res.Soil.Nitrogen.Band)

	assert.Equal(t, 1, rec.GetOperationCount(CapabilityForecast, "returned"))
	assert.Len(t, rec.GetDurations(CapabilityForecast), 1)
}

func TestForecastYieldIsDeterministic(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	first, err := e.ForecastYield(t.Context(), punjabRequest())
	require.NoError(t, err)
	second, err := e.ForecastYield(t.Context(), punjabRequest())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(PredictionResult{}, "RequestID")); diff != "" {
		t.Errorf("repeated forecast differs (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first.RequestID, second.RequestID)
}

func TestForecastYieldFillsFromReferenceData(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	res, err := e.ForecastYield(t.Context(), YieldRequest{Region: "  punjab ", N: ptr(250.0)})
	require.NoError(t, err)

	soil, err := e.Store().LookupSoil("Punjab")
	require.NoError(t, err)
	weather, err := e.Store().LookupWeather("Punjab")
	require.NoError(t, err)

	assert.Equal(t, "Punjab", res.Region)
	assert.InDelta(t, 250.0, res.Inputs.N, 1e-9)
	assert.InDelta(t, soil.Phosphorus, res.Inputs.P, 1e-9)
	assert.InDelta(t, soil.PH, res.Inputs.PH, 1e-9)
	assert.InDelta(t, weather.TotalRainfallMM, res.Inputs.TotalRainfallMM, 1e-9)
	assert.Equal(t, SourceRequest, res.Inputs.Sources[features.ColN])
	assert.Equal(t, SourceReference, res.Inputs.Sources[features.ColP])
	assert.Equal(t, SourceReference, res.Inputs.Sources[features.ColHumidity])
}

func TestForecastYieldUnknownRegion(t *testing.T) {
	t.Parallel()
	e, rec := newTestEngine(t)

	req := punjabRequest()
	req.Region = "Atlantis"
	res, err := e.ForecastYield(t.Context(), req)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownRegion))
	assert.Equal(t, StateRejected, StateOf(err))
	assert.NotEmpty(t, RequestIDOf(err))
	assert.Equal(t, PredictionResult{}, res)
	assert.Equal(t, 1, rec.GetOperationCount(CapabilityForecast, "rejected"))
	assert.Equal(t, 1, rec.GetErrorCount(CapabilityForecast, string(errors.CategoryUnknownRegion)))
}

func TestForecastYieldUnlistedRegionPolicy(t *testing.T) {
	t.Parallel()

	t.Run("request flag without policy is rejected", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t)
		req := punjabRequest()
		req.Region = "Atlantis"
		req.AllowUnlisted = true
		_, err := e.ForecastYield(t.Context(), req)
		assert.True(t, errors.Is(err, errors.ErrUnknownRegion))
	})

	t.Run("incomplete overrides are rejected", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, withPolicy(conf.EngineSettings{AllowUnlistedRegions: true}))
		req := punjabRequest()
		req.Region = "Atlantis"
		req.AllowUnlisted = true
		req.AvgHumidityPercent = nil
		_, err := e.ForecastYield(t.Context(), req)
		assert.True(t, errors.Is(err, errors.ErrUnknownRegion))
	})

	t.Run("complete overrides reach the encoder", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, withPolicy(conf.EngineSettings{AllowUnlistedRegions: true}))
		req := punjabRequest()
		req.Region = "Atlantis"
		req.AllowUnlisted = true
		_, err := e.ForecastYield(t.Context(), req)
		// the model encodes the region, so an unseen one cannot be scored
		assert.True(t, errors.Is(err, errors.ErrUnknownCategory))
		assert.Equal(t, StateRejected, StateOf(err))
	})
}

func TestForecastYieldValidation(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	tests := []struct {
		name   string
		mutate func(*YieldRequest)
		target error
	}{
		{"missing region", func(r *YieldRequest) { r.Region = " " }, errors.ErrValidation},
		{"negative pH", func(r *YieldRequest) { r.PH = ptr(-1.0) }, errors.ErrValidation},
		{"pH above 14", func(r *YieldRequest) { r.PH = ptr(14.1) }, errors.ErrValidation},
		{"NaN rainfall", func(r *YieldRequest) { r.TotalRainfallMM = ptr(math.NaN()) }, errors.ErrValidation},
		{"non positive target yield", func(r *YieldRequest) { r.TargetYield = ptr(0.0) }, errors.ErrValidation},
		{"region unknown to the model", func(r *YieldRequest) { r.Region = "Bihar" }, errors.ErrUnknownCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := punjabRequest()
			tt.mutate(&req)
			_, err := e.ForecastYield(t.Context(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.Equal(t, StateRejected, StateOf(err))
		})
	}
}

func TestForecastYieldPHBoundaries(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	for _, ph := range []float64{0, 14} {
		req := punjabRequest()
		req.PH = ptr(ph)
		res, err := e.ForecastYield(t.Context(), req)
		require.NoError(t, err, "pH %v", ph)
		assert.InDelta(t, ph, res.Inputs.PH, 1e-9)
	}
}

func TestForecastYieldTargetYieldDrivesFertilizer(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	req := punjabRequest()
	req.TargetYield = ptr(3000.0)
	res, err := e.ForecastYield(t.Context(), req)
	require.NoError(t, err)

	want := punjabRequest()
	withTarget := e.derive(features.Input{Region: "Punjab", N: *want.N, P: *want.P, K: *want.K, PH: *want.PH,
		AvgTempC: *want.AvgTempC, TotalRainfallMM: *want.TotalRainfallMM, AvgHumidityPercent: *want.AvgHumidityPercent},
		res.EstimatedYield, ptr(3000.0))
	assert.Equal(t, withTarget.Fertilizer, res.Fertilizer)
}

func TestForecastYieldModelUnavailable(t *testing.T) {
	t.Parallel()
	e, rec := newTestEngine(t, withoutYield())

	assert.False(t, e.ForecastAvailable())
	assert.True(t, e.DiagnosisAvailable())

	for range 3 {
		_, err := e.ForecastYield(t.Context(), punjabRequest())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrModelUnavailable))
		assert.Equal(t, StateDegraded, StateOf(err))
	}
	assert.Equal(t, 3, rec.GetOperationCount(CapabilityForecast, "degraded"))

	res, err := e.Diagnose(t.Context(), leafPNG(t, color.RGBA{R: 40, G: 160, B: 60, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, StateReturned, res.State)
	assert.NotEmpty(t, res.DiseaseName)
}

func TestDiagnose(t *testing.T) {
	t.Parallel()
	e, rec := newTestEngine(t)

	img := leafPNG(t, color.RGBA{R: 40, G: 160, B: 60, A: 255})
	res, err := e.Diagnose(t.Context(), img)
	require.NoError(t, err)

	rec0, err := e.Store().Disease(res.ClassIndex)
	require.NoError(t, err)
	assert.Equal(t, rec0.Name, res.DiseaseName)
	assert.Equal(t, rec0.Prevention, res.Prevention)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Equal(t, StateReturned, res.State)
	assert.Equal(t, 1, rec.GetOperationCount(CapabilityDiagnose, "returned"))

	again, err := e.Diagnose(t.Context(), img)
	require.NoError(t, err)
	assert.Equal(t, res.ClassIndex, again.ClassIndex)
	assert.InDelta(t, res.Confidence, again.Confidence, 0)
}

func TestDiagnoseAttachesSupplement(t *testing.T) {
	t.Parallel()
	img := leafPNG(t, color.RGBA{R: 90, G: 120, B: 40, A: 255})

	t.Run("builtin catalog", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, withClass(0))
		res, err := e.Diagnose(t.Context(), img)
		require.NoError(t, err)

		assert.Equal(t, "Apple : Scab", res.DiseaseName)
		require.NotNil(t, res.Supplement)
		assert.Equal(t, 0, res.Supplement.ID)
		assert.Equal(t, "Captan 50% WP fungicide", res.Supplement.Name)
		assert.NotEmpty(t, res.Supplement.BuyLink)
	})

	t.Run("class without a product", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, withClass(4))
		res, err := e.Diagnose(t.Context(), img)
		require.NoError(t, err)
		assert.Equal(t, "Background Without Leaves", res.DiseaseName)
		assert.Nil(t, res.Supplement)
		assert.Equal(t, StateReturned, res.State)
	})

	t.Run("store without supplement table", func(t *testing.T) {
		t.Parallel()
		tables, err := refdata.BuiltinTables()
		require.NoError(t, err)
		tables.Supplements = nil
		store, err := refdata.New(tables)
		require.NoError(t, err)

		e, _ := newTestEngine(t, withStore(store), withClass(0))
		res, err := e.Diagnose(t.Context(), img)
		require.NoError(t, err)
		assert.Equal(t, "Apple : Scab", res.DiseaseName)
		assert.Nil(t, res.Supplement)
	})
}

func TestDiagnoseRejectsBadImages(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	for name, payload := range map[string][]byte{
		"empty": nil,
		"text":  []byte("not an image"),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := e.Diagnose(t.Context(), payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrUndecodableImage))
			assert.Equal(t, StateRejected, StateOf(err))
		})
	}
}

func TestDiagnoseClassifierFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing classifier", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, withoutClassifier())
		_, err := e.Diagnose(t.Context(), leafPNG(t, color.White))
		assert.True(t, errors.Is(err, errors.ErrModelUnavailable))
		assert.Equal(t, StateDegraded, StateOf(err))

		// forecasting is unaffected
		_, err = e.ForecastYield(t.Context(), punjabRequest())
		require.NoError(t, err)
	})

	t.Run("class count differs from disease table", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, func(d *Deps) {
			d.Classifier = &fakeClassifier{classes: 5, spec: disease.DefaultInputSpec()}
		})
		assert.False(t, e.DiagnosisAvailable())
		_, err := e.Diagnose(t.Context(), leafPNG(t, color.White))
		assert.True(t, errors.Is(err, errors.ErrSchemaMismatch))
		assert.Equal(t, StateDegraded, StateOf(err))
	})

	t.Run("inference error", func(t *testing.T) {
		t.Parallel()
		e, _ := newTestEngine(t, func(d *Deps) {
			d.Classifier = &fakeClassifier{
				classes: d.Store.DiseaseCount(),
				spec:    disease.DefaultInputSpec(),
				err:     errors.Newf("invoke failed").Category(errors.CategoryModelInit).Build(),
			}
		})
		_, err := e.Diagnose(t.Context(), leafPNG(t, color.White))
		require.Error(t, err)
		assert.Equal(t, StateDegraded, StateOf(err))
	})
}

func TestRequestIDFollowsTraceID(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)

	ctx := logger.WithTraceID(context.Background(), "trace-123")
	res, err := e.ForecastYield(ctx, punjabRequest())
	require.NoError(t, err)
	assert.Equal(t, "trace-123", res.RequestID)

	req := punjabRequest()
	req.Region = "Atlantis"
	_, err = e.ForecastYield(ctx, req)
	assert.Equal(t, "trace-123", RequestIDOf(err))
}

func TestConcurrentRequests(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t)
	img := leafPNG(t, color.RGBA{R: 120, G: 90, B: 30, A: 255})

	want, err := e.ForecastYield(t.Context(), punjabRequest())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			res, err := e.ForecastYield(context.Background(), punjabRequest())
			assert.NoError(t, err)
			assert.InDelta(t, want.EstimatedYield, res.EstimatedYield, 0)
			_, err = e.Diagnose(context.Background(), img)
			assert.NoError(t, err)
		})
	}
	wg.Wait()
}

func TestHealthAndModelInfo(t *testing.T) {
	t.Parallel()

	e, _ := newTestEngine(t)
	h := e.Health()
	assert.Equal(t, HealthOK, h.Status)
	assert.True(t, h.DiseaseModelLoaded)
	assert.True(t, h.YieldModelLoaded)
	assert.Equal(t, 1, h.SchemaVersion)
	assert.Equal(t, e.Store().DiseaseCount(), h.DiseaseClasses)
	assert.NotNil(t, h.Artifacts)

	info := e.ModelInfo()
	assert.True(t, info.Yield.Loaded)
	assert.Equal(t, "xgboost", info.Yield.Kind)
	assert.Equal(t, 8, info.Yield.NumFeatures)
	assert.Equal(t, []string{"Kerala", "Punjab", "Tamil Nadu"}, info.Yield.Categorical["state"])
	assert.Equal(t, "standard", info.Yield.Scaler)
	assert.Equal(t, []int{1, 3, 32, 32}, info.Disease.InputSize)

	degraded, _ := newTestEngine(t, withoutYield())
	h = degraded.Health()
	assert.Equal(t, HealthDegraded, h.Status)
	assert.False(t, h.YieldModelLoaded)
	info = degraded.ModelInfo()
	assert.False(t, info.Yield.Loaded)
	assert.Empty(t, info.Yield.FeatureColumns)
	assert.True(t, strings.Contains(info.Yield.Error, "unavailable"))
}

func TestClose(t *testing.T) {
	t.Parallel()
	store := builtinStore(t)
	c := &fakeClassifier{classes: store.DiseaseCount(), spec: disease.DefaultInputSpec()}
	e := New(Deps{Store: store, Classifier: c})
	require.NoError(t, e.Close())
	assert.True(t, c.closed)
}

func TestDefaultStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		load     func() (*refdata.Store, error)
		diseases int
		regions  bool
	}{
		{"builtin tables", refdata.Builtin, 39, true},
		{"load failure", func() (*refdata.Store, error) {
			return nil, errors.NewStd("embedded table unreadable")
		}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := defaultStore(tt.load)
			require.NotNil(t, s)
			assert.Equal(t, tt.diseases, s.DiseaseCount())
			assert.Equal(t, tt.regions, len(s.ListRegions()) > 0)
		})
	}
}

func TestNewWithUnloadableStoreDegrades(t *testing.T) {
	t.Parallel()
	s := defaultStore(func() (*refdata.Store, error) {
		return nil, errors.NewStd("embedded table unreadable")
	})
	e := New(Deps{Store: s, Classifier: &fakeClassifier{classes: 39, spec: disease.DefaultInputSpec()}})

	_, err := e.Diagnose(t.Context(), leafPNG(t, color.RGBA{G: 200, A: 255}))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategorySchemaMismatch))
	assert.Equal(t, StateDegraded, StateOf(err))

	_, err = s.LookupSoil("Punjab")
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}
