package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/agrisense/internal/observability/metrics"
)

// ErrorCategoryKey is the echo context key handlers set to label failed
// requests with their error category.
const ErrorCategoryKey = "error_category"

// NewMetrics records request counts, latencies and response sizes. The route
// template is used as path label to keep cardinality bounded.
func NewMetrics(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}

			m.RequestStarted()
			defer m.RequestFinished()

			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo write the response so the recorded status is final
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status
			m.RecordHTTPRequest(method, path, status, time.Since(start).Seconds())
			m.RecordHTTPResponseSize(method, path, c.Response().Size)
			if status >= 400 {
				m.RecordHTTPRequestError(method, path, errorType(c, status))
			}
			return nil
		}
	}
}

func errorType(c echo.Context, status int) string {
	if category, ok := c.Get(ErrorCategoryKey).(string); ok && category != "" {
		return category
	}
	if status >= 500 {
		return "server_error"
	}
	return "client_error"
}
