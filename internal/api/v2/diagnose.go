package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/agrisense/internal/errors"
)

// ImageFormField is the multipart field carrying the leaf photo.
const ImageFormField = "image"

// Diagnose handles POST /api/v2/diagnose. The image is read from the
// multipart field "image" or, for any other content type, the raw body.
func (c *Controller) Diagnose(ctx echo.Context) error {
	image, err := readImage(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid image upload")
	}

	res, err := c.Engine.Diagnose(ctx.Request().Context(), image)
	if err != nil {
		return c.HandleError(ctx, err, "Diagnosis failed")
	}
	return ctx.JSON(http.StatusOK, res)
}

func readImage(ctx echo.Context) ([]byte, error) {
	req := ctx.Request()

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, ferr := ctx.FormFile(ImageFormField)
		if ferr != nil {
			return nil, errors.Newf("multipart field %q is required", ImageFormField).
				Component("api").
				Category(errors.CategoryValidation).
				Context("fields", []string{ImageFormField}).
				Build()
		}
		f, oerr := fh.Open()
		if oerr != nil {
			return nil, errors.New(oerr).Component("api").Category(errors.CategoryFileIO).Build()
		}
		defer func() { _ = f.Close() }()
		data, err = io.ReadAll(f)
	} else {
		data, err = io.ReadAll(req.Body)
	}
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Context("operation", "read_image").
			Build()
	}

	if len(data) == 0 {
		return nil, errors.Newf("image is required").
			Component("api").
			Category(errors.CategoryValidation).
			Context("fields", []string{ImageFormField}).
			Build()
	}
	return data, nil
}
