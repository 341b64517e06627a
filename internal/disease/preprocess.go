package disease

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/tphakala/agrisense/internal/errors"
)

// MaxImagePixels bounds the decoded size of an upload.
const MaxImagePixels = 50_000_000

func undecodable(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("disease").
		Category(errors.CategoryUndecodableImage).
		Build()
}

// Preprocess decodes raw, resizes it to the input spec with bicubic (Catmull-Rom)
// interpolation, scales pixels to [0,1], applies the per-channel mean/std and
// lays the result out as a batch of one.
func Preprocess(raw []byte, spec InputSpec) (Tensor, error) {
	if len(raw) == 0 {
		return Tensor{}, undecodable("empty image payload")
	}
	if err := spec.Check(); err != nil {
		return Tensor{}, errors.New(err).
			Component("disease").
			Category(errors.CategorySchemaMismatch).
			Build()
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Tensor{}, undecodable("unrecognized image data: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxImagePixels {
		return Tensor{}, undecodable("%s image of %dx%d pixels is not accepted", format, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Tensor{}, undecodable("decoding %s image: %v", format, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	// transparent areas become white, as when an RGBA upload is flattened
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	return toTensor(dst, spec), nil
}

// toTensor converts an RGBA image to a normalized float tensor.
func toTensor(img *image.RGBA, spec InputSpec) Tensor {
	w, h := spec.Width, spec.Height
	data := make([]float32, w*h*DefaultChannels)
	plane := w * h

	for y := range h {
		row := img.Pix[y*img.Stride:]
		for x := range w {
			px := row[x*4 : x*4+3]
			for c := range DefaultChannels {
				v := float32(px[c]) / 255
				if len(spec.Mean) == DefaultChannels {
					v -= spec.Mean[c]
				}
				if len(spec.Std) == DefaultChannels {
					v /= spec.Std[c]
				}
				if spec.Layout == LayoutNHWC {
					data[(y*w+x)*DefaultChannels+c] = v
				} else {
					data[c*plane+y*w+x] = v
				}
			}
		}
	}
	return Tensor{Shape: spec.Shape(), Data: data}
}
