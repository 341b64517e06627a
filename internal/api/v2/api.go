// Package api serves the agrisense JSON API under /api/v2.
package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/agrisense/internal/api/middleware"
	"github.com/tphakala/agrisense/internal/conf"
	"github.com/tphakala/agrisense/internal/engine"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/observability"
	"github.com/tphakala/agrisense/internal/weather"
)

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the api module logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("api")
	})
	return pkgLogger
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Engine   *engine.Engine
	Weather  *weather.Service
	Metrics  *observability.Metrics
	Settings *conf.Settings

	startTime time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithWeather sets the weather service. Without one the controller serves
// reference weather only.
func WithWeather(svc *weather.Service) Option {
	return func(c *Controller) {
		c.Weather = svc
	}
}

// WithMetrics sets the metrics registry exposed on /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.Metrics = m
	}
}

// New creates the API controller and registers its routes on e.
func New(e *echo.Echo, eng *engine.Engine, settings *conf.Settings, opts ...Option) (*Controller, error) {
	if eng == nil {
		return nil, errors.Newf("api controller requires an engine").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if settings == nil {
		settings = &conf.Settings{}
	}

	c := &Controller{
		Echo:      e,
		Engine:    eng,
		Settings:  settings,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Weather == nil {
		c.Weather = weather.NewServiceWithProvider(nil, eng.Store(), 0, nil)
	}

	c.Group = e.Group("/api/v2")
	c.initRoutes()

	GetLogger().Info("API v2 initialized",
		logger.Bool("diagnosis", eng.DiagnosisAvailable()),
		logger.Bool("forecast", eng.ForecastAvailable()),
		logger.Bool("live_weather", c.Weather.HasLiveProvider()),
		logger.Bool("metrics", c.Metrics != nil))
	return c, nil
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	c.Group.POST("/diagnose", c.Diagnose)
	c.Group.POST("/predict", c.Predict)

	c.Group.GET("/regions", c.ListRegions)
	c.Group.GET("/soil/coords", c.SoilByCoordinates)
	c.Group.GET("/soil/:region", c.GetSoil)
	c.Group.GET("/weather/coords", c.WeatherByCoordinates)
	c.Group.GET("/weather/:region", c.GetWeather)
	c.Group.GET("/diseases", c.ListDiseases)
	c.Group.GET("/supplements", c.ListSupplements)

	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/model-info", c.ModelInfo)

	if c.Metrics != nil {
		c.Group.GET("/metrics", echo.WrapHandler(c.Metrics.Handler()))
	}
}

// Shutdown releases the engine resources.
func (c *Controller) Shutdown() {
	if err := c.Engine.Close(); err != nil {
		GetLogger().Warn("engine close failed", logger.Error(err))
	}
	GetLogger().Debug("API controller shut down")
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // request id, matches the X-Request-ID header
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int, correlationID string) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// StatusForError maps an error category to its HTTP status.
func StatusForError(err error) int {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	switch errors.CategoryOf(err) {
	case errors.CategoryValidation, errors.CategoryUndecodableImage:
		return http.StatusBadRequest
	case errors.CategoryUnknownCategory, errors.CategoryUnknownRegion, errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryModelUnavailable:
		return http.StatusServiceUnavailable
	case errors.CategoryNetwork, errors.CategoryHTTP:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// correlationID prefers the engine request id carried by err, then the
// trace id assigned by the middleware.
func correlationID(ctx echo.Context, err error) string {
	if id := engine.RequestIDOf(err); id != "" {
		return id
	}
	if id := mw.TraceID(ctx); id != "" {
		return id
	}
	return logger.TraceIDFromContext(ctx.Request().Context())
}

// HandleError writes err as an ErrorResponse with the status of its category.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	code := StatusForError(err)
	ctx.Set(mw.ErrorCategoryKey, string(errors.CategoryOf(err)))
	resp := NewErrorResponse(err, message, code, correlationID(ctx, err))

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.String("category", string(errors.CategoryOf(err))),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
		logger.Error(err),
	}
	if state := engine.StateOf(err); state != "" {
		fields = append(fields, logger.String("state", string(state)))
	}

	log := GetLogger().WithContext(ctx.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Debug("API request rejected", fields...)
	}

	return ctx.JSON(code, resp)
}
