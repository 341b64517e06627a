package disease

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/agrisense/internal/errors"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocessShapeAndScaling(t *testing.T) {
	t.Parallel()

	raw := solidPNG(t, 640, 480, color.NRGBA{R: 255, G: 51, B: 0, A: 255})
	tensor, err := Preprocess(raw, DefaultInputSpec())
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 224, 224}, tensor.Shape)
	require.Len(t, tensor.Data, 3*224*224)

	plane := 224 * 224
	// NCHW: one full plane per channel
	assert.InDelta(t, 1.0, tensor.Data[0], 1e-6)
	assert.InDelta(t, 0.2, tensor.Data[plane+500], 1e-6)
	assert.InDelta(t, 0.0, tensor.Data[2*plane+plane-1], 1e-6)
}

func TestPreprocessNHWCWithNormalization(t *testing.T) {
	t.Parallel()

	spec := InputSpec{
		Width: 8, Height: 8, Layout: LayoutNHWC,
		Mean: []float32{0.5, 0.5, 0.5},
		Std:  []float32{0.5, 0.5, 0.5},
	}
	raw := solidPNG(t, 16, 16, color.NRGBA{R: 255, G: 0, B: 255, A: 255})
	tensor, err := Preprocess(raw, spec)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 8, 8, 3}, tensor.Shape)
	assert.InDelta(t, 1.0, tensor.Data[0], 1e-6)
	assert.InDelta(t, -1.0, tensor.Data[1], 1e-6)
	assert.InDelta(t, 1.0, tensor.Data[2], 1e-6)
}

func TestPreprocessTransparentBecomesWhite(t *testing.T) {
	t.Parallel()

	raw := solidPNG(t, 4, 4, color.NRGBA{})
	tensor, err := Preprocess(raw, InputSpec{Width: 2, Height: 2, Layout: LayoutNCHW})
	require.NoError(t, err)
	for _, v := range tensor.Data {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestPreprocessJPEGIsDeterministic(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for y := range 200 {
		for x := range 300 {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	a, err := Preprocess(buf.Bytes(), DefaultInputSpec())
	require.NoError(t, err)
	b, err := Preprocess(buf.Bytes(), DefaultInputSpec())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPreprocessRejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"truncated png", solidPNG(t, 10, 10, color.Black)[:40]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Preprocess(tt.raw, DefaultInputSpec())
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrUndecodableImage))
		})
	}
}

func TestInputSpecCheck(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultInputSpec().Check())
	assert.Error(t, InputSpec{Width: 224, Height: 224, Layout: "CHW"}.Check())
	assert.Error(t, InputSpec{Width: 224, Height: 224, Layout: LayoutNCHW, Mean: []float32{0.5}}.Check())
	assert.Error(t, InputSpec{Width: 224, Height: 224, Layout: LayoutNCHW, Std: []float32{1, 0, 1}}.Check())
}

func TestSoftmaxAndArgmax(t *testing.T) {
	t.Parallel()

	probs := Softmax([]float32{1, 3, 2})
	var sum float64
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)

	idx, conf := Argmax(probs)
	assert.Equal(t, 1, idx)
	assert.InDelta(t, math.Exp(3)/(math.Exp(1)+math.Exp(2)+math.Exp(3)), conf, 1e-9)

	// large logits must not overflow
	probs = Softmax([]float32{1000, 1001})
	assert.False(t, math.IsNaN(probs[0]))

	idx, _ = Argmax([]float64{0.5, 0.5})
	assert.Equal(t, 0, idx, "ties resolve to the lowest index")
}

func TestInterpret(t *testing.T) {
	t.Parallel()

	p, err := Interpret([]float32{0.1, 0.7, 0.2}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ClassIndex)
	assert.InDelta(t, 0.7, p.Confidence, 1e-6)

	_, err = Interpret([]float32{0.1, 1.7}, true)
	assert.True(t, errors.Is(err, errors.ErrSchemaMismatch))

	p, err = Interpret([]float32{-2, 5, 0}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ClassIndex)
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)

	_, err = Interpret(nil, false)
	assert.Error(t, err)
}
