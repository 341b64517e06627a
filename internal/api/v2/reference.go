package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/agrisense/internal/errors"
)

// RegionsResponse lists the regions known to the reference tables.
type RegionsResponse struct {
	Regions []string `json:"regions"`
	Count   int      `json:"count"`
}

// ListRegions handles GET /api/v2/regions.
func (c *Controller) ListRegions(ctx echo.Context) error {
	regions := c.Engine.Store().ListRegions()
	return ctx.JSON(http.StatusOK, RegionsResponse{Regions: regions, Count: len(regions)})
}

// GetSoil handles GET /api/v2/soil/:region.
func (c *Controller) GetSoil(ctx echo.Context) error {
	region := ctx.Param("region")
	profile, err := c.Engine.Store().LookupSoil(region)
	if err != nil {
		return c.HandleError(ctx, err, "Soil profile not found")
	}
	return ctx.JSON(http.StatusOK, profile)
}

// parseCoordinates reads the lat and lon query parameters. Range checks are
// left to refdata.RegionForCoordinates.
func parseCoordinates(ctx echo.Context) (lat, lon float64, err error) {
	lat, latErr := strconv.ParseFloat(ctx.QueryParam("lat"), 64)
	lon, lonErr := strconv.ParseFloat(ctx.QueryParam("lon"), 64)
	if latErr != nil || lonErr != nil {
		return 0, 0, errors.Newf("lat and lon must be numbers").
			Component("api").
			Category(errors.CategoryValidation).
			Context("fields", []string{"lat", "lon"}).
			Build()
	}
	return lat, lon, nil
}

// SoilByCoordinates handles GET /api/v2/soil/coords?lat=&lon=.
func (c *Controller) SoilByCoordinates(ctx echo.Context) error {
	lat, lon, err := parseCoordinates(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid coordinates")
	}

	summary, err := c.Engine.Store().SoilSummary(lat, lon)
	if err != nil {
		return c.HandleError(ctx, err, "Soil lookup failed")
	}
	return ctx.JSON(http.StatusOK, summary)
}

// ListDiseases handles GET /api/v2/diseases.
func (c *Controller) ListDiseases(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Engine.Store().Diseases())
}

// SupplementListing is one catalog product with the disease it treats.
type SupplementListing struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ImageURL    string `json:"image_url,omitempty"`
	BuyLink     string `json:"buy_link,omitempty"`
	DiseaseName string `json:"disease_name"`
	Crop        string `json:"crop,omitempty"`
}

// SupplementsResponse is the supplement catalog ordered by id.
type SupplementsResponse struct {
	Supplements []SupplementListing `json:"supplements"`
	Count       int                 `json:"count"`
}

// ListSupplements handles GET /api/v2/supplements.
func (c *Controller) ListSupplements(ctx echo.Context) error {
	store := c.Engine.Store()
	catalog := store.Supplements()

	out := make([]SupplementListing, 0, len(catalog))
	for _, sup := range catalog {
		item := SupplementListing{ID: sup.ID, Name: sup.Name, ImageURL: sup.ImageURL, BuyLink: sup.BuyLink}
		// supplement ids share the disease class index
		if d, err := store.Disease(sup.ID); err == nil {
			item.DiseaseName = d.Name
			item.Crop = d.Crop
		}
		out = append(out, item)
	}
	return ctx.JSON(http.StatusOK, SupplementsResponse{Supplements: out, Count: len(out)})
}
