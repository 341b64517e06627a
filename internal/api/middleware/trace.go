package middleware

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/agrisense/internal/logger"
)

// TraceIDKey is the echo context key holding the request trace ID.
const TraceIDKey = "trace_id"

var validTraceID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// NewTraceID assigns every request a trace ID, reusing a well formed
// X-Request-ID header from the caller. The ID is stored in the request
// context for logging, echoed in the response header and used as the
// correlation ID of error responses.
func NewTraceID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if !validTraceID.MatchString(id) {
				id = uuid.NewString()
			}

			c.Set(TraceIDKey, id)
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// TraceID returns the trace ID assigned to the request, if any.
func TraceID(c echo.Context) string {
	id, _ := c.Get(TraceIDKey).(string)
	return id
}
