package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/refdata"
)

func parseLive(ctx echo.Context) (bool, error) {
	v := ctx.QueryParam("live")
	if v == "" {
		return false, nil
	}
	live, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Newf("live must be a boolean").
			Component("api").
			Category(errors.CategoryValidation).
			Context("fields", []string{"live"}).
			Build()
	}
	return live, nil
}

// GetWeather handles GET /api/v2/weather/:region. With live=true the
// configured provider is queried and reference data served if it fails.
func (c *Controller) GetWeather(ctx echo.Context) error {
	live, err := parseLive(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid query parameter")
	}

	obs, err := c.Weather.Current(ctx.Request().Context(), ctx.Param("region"), live)
	if err != nil {
		return c.HandleError(ctx, err, "Weather lookup failed")
	}
	return ctx.JSON(http.StatusOK, obs)
}

// WeatherByCoordinates handles GET /api/v2/weather/coords?lat=&lon=&live=.
// The coordinates are mapped to a region first, so the same fallback rules
// as GetWeather apply.
func (c *Controller) WeatherByCoordinates(ctx echo.Context) error {
	lat, lon, err := parseCoordinates(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid coordinates")
	}
	live, err := parseLive(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid query parameter")
	}

	region, err := refdata.RegionForCoordinates(lat, lon)
	if err != nil {
		return c.HandleError(ctx, err, "Weather lookup failed")
	}
	obs, err := c.Weather.Current(ctx.Request().Context(), region, live)
	if err != nil {
		return c.HandleError(ctx, err, "Weather lookup failed")
	}
	return ctx.JSON(http.StatusOK, obs)
}
