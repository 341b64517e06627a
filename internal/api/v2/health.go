package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/agrisense/internal/engine"
)

// HealthResponse extends the engine summary with server details.
type HealthResponse struct {
	engine.HealthSummary
	LiveWeather   bool    `json:"live_weather"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HealthCheck handles GET /api/v2/health. A degraded engine still answers
// 200 so that the capabilities that did load keep receiving traffic.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, HealthResponse{
		HealthSummary: c.Engine.Health(),
		LiveWeather:   c.Weather.HasLiveProvider(),
		Timestamp:     time.Now().Format(time.RFC3339),
		UptimeSeconds: time.Since(c.startTime).Seconds(),
	})
}

// ModelInfo handles GET /api/v2/model-info.
func (c *Controller) ModelInfo(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Engine.ModelInfo())
}
