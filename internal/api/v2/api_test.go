package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/disease"
	"github.com/tphakala/agrisense/internal/engine"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/features"
	"github.com/tphakala/agrisense/internal/observability"
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

type stubClassifier struct {
	classes int
}

func (s *stubClassifier) Classify(disease.Tensor) (disease.Prediction, error) {
	return disease.Prediction{ClassIndex: 3, Confidence: 0.91}, nil
}
func (s *stubClassifier) NumClasses() int { return s.classes }
func (s *stubClassifier) Input() disease.InputSpec {
	return disease.InputSpec{Width: 16, Height: 16, Layout: disease.LayoutNCHW}
}
func (s *stubClassifier) Close() error { return nil }

type setup struct {
	withYield      bool
	withClassifier bool
}

func newTestEngine(t *testing.T, s setup) *engine.Engine {
	t.Helper()
	store, err := refdata.Builtin()
	require.NoError(t, err)

	d := engine.Deps{
		Store:    store,
		Settings: conf.EngineSettings{CropWaterNeedMM: 40},
		Name:     "api-test",
	}
	if s.withYield {
		m, err := features.ParseManifest([]byte(testManifest))
		require.NoError(t, err)
		enc, err := features.NewEncoder(m)
		require.NoError(t, err)
		ens, err := yield.Load([]byte(testEnsemble), m)
		require.NoError(t, err)
		d.Encoder, d.Predictor = enc, ens
	}
	if s.withClassifier {
		d.Classifier = &stubClassifier{classes: store.DiseaseCount()}
	}
	return engine.New(d)
}

func newTestController(t *testing.T, s setup) (*echo.Echo, *Controller) {
	t.Helper()
	e := echo.New()
	c, err := New(e, newTestEngine(t, s), &conf.Settings{})
	require.NoError(t, err)
	return e, c
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := range 30 {
		for x := range 40 {
			img.Set(x, y, color.RGBA{R: 60, G: 150, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// Valid yield request for a known region.
func TestPredictKnownRegion(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{withYield: true, withClassifier: true})

	body := `{"state":"Punjab","N":180,"P":45,"K":200,"pH":6.8,"avg_temp_c":26.5,"total_rainfall_mm":950,"avg_humidity_percent":60}`
	req := httptest.NewRequest(http.MethodPost, "/api/v2/predict", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	require.NoError(t, c.Predict(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res engine.PredictionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.InDelta(t, 2200.0, res.EstimatedYield, 1e-9)
	assert.Equal(t, "Punjab", res.Region)
	assert.Equal(t, engine.StateReturned, res.State)
	assert.NotEmpty(t, res.RequestID)
	assert.NotEmpty(t, res.YieldCategory)
	assert.NotEmpty(t, res.Tips)
}

// Unknown region is a typed 404, not a silent default.
func TestPredictUnknownRegion(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{withYield: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v2/predict", strings.NewReader(`{"state":"Atlantis"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	require.NoError(t, c.Predict(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, http.StatusNotFound, body.Code)
	assert.Contains(t, body.Error, "Atlantis")
	assert.NotEmpty(t, body.CorrelationID)
}

// Missing yield model answers 503 on every call while diagnosis keeps working.
func TestPredictModelUnavailable(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{withClassifier: true})

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/v2/predict",
			strings.NewReader(`{"state":"Punjab","N":180,"P":45,"K":200,"pH":6.8}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		require.NoError(t, c.Predict(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v2/diagnose", bytes.NewReader(leafPNG(t)))
	req.Header.Set(echo.HeaderContentType, "image/png")
	rec := httptest.NewRecorder()
	require.NoError(t, c.Diagnose(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPredictValidation(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{withYield: true})

	tests := []struct {
		name string
		body string
		code int
	}{
		{"ph out of range", `{"state":"Punjab","N":180,"P":45,"K":200,"pH":15}`, http.StatusBadRequest},
		{"negative nitrogen", `{"state":"Punjab","N":-1}`, http.StatusBadRequest},
		{"missing state", `{"N":10}`, http.StatusBadRequest},
		{"malformed json", `{"state":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/api/v2/predict", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			require.NoError(t, c.Predict(e.NewContext(req, rec)))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestDiagnoseMultipart(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{withClassifier: true})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(ImageFormField, "leaf.png")
	require.NoError(t, err)
	_, err = part.Write(leafPNG(t))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/diagnose", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()

	require.NoError(t, c.Diagnose(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res engine.DiagnosisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	want, err := c.Engine.Store().Disease(3)
	require.NoError(t, err)
	assert.Equal(t, want.Name, res.DiseaseName)
	assert.InDelta(t, 0.91, res.Confidence, 1e-9)
	require.NotNil(t, res.Supplement, "class 3 has a builtin supplement")
	assert.Equal(t, "Organic apple orchard fertilizer", res.Supplement.Name)
	assert.Contains(t, res.Supplement.BuyLink, "https://")
}

// Corrupt image bytes are rejected with 400.
func TestDiagnoseUndecodableImage(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{withClassifier: true})

	tests := []struct {
		name        string
		body        []byte
		contentType string
	}{
		{"corrupt bytes", []byte("\x89PNG garbage"), "image/png"},
		{"empty body", nil, "image/jpeg"},
		{"missing multipart field", []byte("--x--\r\n"), "multipart/form-data; boundary=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/api/v2/diagnose", bytes.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, tt.contentType)
			rec := httptest.NewRecorder()
			require.NoError(t, c.Diagnose(e.NewContext(req, rec)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestDiagnoseModelUnavailable(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{withYield: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v2/diagnose", bytes.NewReader(leafPNG(t)))
	req.Header.Set(echo.HeaderContentType, "image/png")
	rec := httptest.NewRecorder()
	require.NoError(t, c.Diagnose(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReferenceEndpoints(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{})

	t.Run("regions", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		require.NoError(t, c.ListRegions(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v2/regions", http.NoBody), rec)))
		var body RegionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Regions, "Punjab")
		assert.Equal(t, len(body.Regions), body.Count)
	})

	t.Run("soil by region", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), rec)
		ctx.SetPath("/api/v2/soil/:region")
		ctx.SetParamNames("region")
		ctx.SetParamValues("punjab")
		require.NoError(t, c.GetSoil(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)

		var p refdata.RegionProfile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		assert.Equal(t, "Punjab", p.Region)
		assert.InDelta(t, 180.0, p.Nitrogen, 1e-9)
	})

	t.Run("soil for unknown region", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), rec)
		ctx.SetParamNames("region")
		ctx.SetParamValues("Atlantis")
		require.NoError(t, c.GetSoil(ctx))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("soil by coordinates", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v2/soil/coords?lat=30.9&lon=75.8", http.NoBody)
		require.NoError(t, c.SoilByCoordinates(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusOK, rec.Code)

		var s refdata.SoilSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
		assert.Equal(t, "Punjab", s.Region)
	})

	t.Run("coordinates outside every region", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v2/soil/coords?lat=51.5&lon=-0.1", http.NoBody)
		require.NoError(t, c.SoilByCoordinates(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("coordinates not numbers", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v2/soil/coords?lat=north", http.NoBody)
		require.NoError(t, c.SoilByCoordinates(e.NewContext(req, rec)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetWeatherReference(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{})

	rec := httptest.NewRecorder()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/?live=true", http.NoBody), rec)
	ctx.SetParamNames("region")
	ctx.SetParamValues("Kerala")
	require.NoError(t, c.GetWeather(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	var obs map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obs))
	assert.Equal(t, "Kerala", obs["state"])
	assert.Equal(t, "reference", obs["source"], "no live provider configured")

	rec = httptest.NewRecorder()
	ctx = e.NewContext(httptest.NewRequest(http.MethodGet, "/?live=maybe", http.NoBody), rec)
	ctx.SetParamNames("region")
	ctx.SetParamValues("Kerala")
	require.NoError(t, c.GetWeather(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeatherByCoordinates(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{})

	get := func(query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v2/weather/coords?"+query, http.NoBody)
		require.NoError(t, c.WeatherByCoordinates(e.NewContext(req, rec)))
		return rec
	}

	t.Run("coordinates inside a region", func(t *testing.T) {
		t.Parallel()
		rec := get("lat=30.9&lon=75.8&live=true")
		assert.Equal(t, http.StatusOK, rec.Code)

		var obs map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obs))
		assert.Equal(t, "Punjab", obs["state"])
		assert.Equal(t, "reference", obs["source"])
	})

	tests := []struct {
		name  string
		query string
		want  int
		msg   string
	}{
		{"latitude out of range", "lat=95&lon=75", http.StatusBadRequest, "out of range"},
		{"longitude out of range", "lat=30&lon=-181", http.StatusBadRequest, "out of range"},
		{"missing longitude", "lat=30", http.StatusBadRequest, "must be numbers"},
		{"no region at coordinates", "lat=51.5&lon=-0.1", http.StatusNotFound, "no known region"},
		{"live not a boolean", "lat=30.9&lon=75.8&live=maybe", http.StatusBadRequest, "live must be a boolean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := get(tt.query)
			assert.Equal(t, tt.want, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.want, body.Code)
			assert.Contains(t, body.Error, tt.msg)
		})
	}
}

func TestListSupplements(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{})

	rec := httptest.NewRecorder()
	require.NoError(t, c.ListSupplements(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v2/supplements", http.NoBody), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body SupplementsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 38, body.Count)
	require.Len(t, body.Supplements, body.Count)

	first := body.Supplements[0]
	assert.Equal(t, 0, first.ID)
	assert.Equal(t, "Captan 50% WP fungicide", first.Name)
	assert.Equal(t, "Apple : Scab", first.DiseaseName)
	assert.Equal(t, "Apple", first.Crop)
	assert.NotEmpty(t, first.BuyLink)

	for _, item := range body.Supplements {
		assert.NotEqual(t, "Background Without Leaves", item.DiseaseName)
		assert.NotEmpty(t, item.DiseaseName, "supplement %d", item.ID)
	}
}

func TestHealthAndModelInfo(t *testing.T) {
	t.Parallel()
	e, c := newTestController(t, setup{withYield: true})

	rec := httptest.NewRecorder()
	require.NoError(t, c.HealthCheck(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v2/health", http.NoBody), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var h HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, engine.HealthDegraded, h.Status)
	assert.False(t, h.DiseaseModelLoaded)
	assert.True(t, h.YieldModelLoaded)
	assert.False(t, h.LiveWeather)

	rec = httptest.NewRecorder()
	require.NoError(t, c.ModelInfo(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v2/model-info", http.NoBody), rec)))
	var info engine.ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Yield.Loaded)
	assert.Equal(t, 8, info.Yield.NumFeatures)
	assert.False(t, info.Disease.Loaded)
	assert.NotEmpty(t, info.Disease.Error)
}

func TestRoutesAndMetrics(t *testing.T) {
	t.Parallel()
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	e := echo.New()
	_, err = New(e, newTestEngine(t, setup{withYield: true}), &conf.Settings{}, WithMetrics(m))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/soil/coords?lat=10.5&lon=76.2", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code, "static coords route must win over :region")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/weather/coords?lat=10.5&lon=76.2", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code, "static coords route must win over :region")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/supplements", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/metrics", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewRequiresEngine(t *testing.T) {
	t.Parallel()
	_, err := New(echo.New(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	build := func(c errors.ErrorCategory) error {
		return errors.Newf("x").Category(c).Build()
	}
	tests := []struct {
		err  error
		want int
	}{
		{build(errors.CategoryValidation), http.StatusBadRequest},
		{build(errors.CategoryUndecodableImage), http.StatusBadRequest},
		{build(errors.CategoryUnknownCategory), http.StatusNotFound},
		{build(errors.CategoryUnknownRegion), http.StatusNotFound},
		{build(errors.CategoryNotFound), http.StatusNotFound},
		{build(errors.CategoryModelUnavailable), http.StatusServiceUnavailable},
		{build(errors.CategorySchemaMismatch), http.StatusInternalServerError},
		{errors.NewStd("plain"), http.StatusInternalServerError},
		{errors.New(echo.ErrStatusRequestEntityTooLarge).Category(errors.CategoryValidation).Build(), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusForError(tt.err), "%v", tt.err)
	}
}
