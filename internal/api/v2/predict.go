package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/agrisense/internal/engine"
	"github.com/tphakala/agrisense/internal/errors"
)

// Predict handles POST /api/v2/predict with a JSON YieldRequest body.
func (c *Controller) Predict(ctx echo.Context) error {
	var req engine.YieldRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "bind_yield_request").
			Build(), "Invalid request body")
	}

	res, err := c.Engine.ForecastYield(ctx.Request().Context(), req)
	if err != nil {
		return c.HandleError(ctx, err, "Yield forecast failed")
	}
	return ctx.JSON(http.StatusOK, res)
}
