// Package disease prepares leaf images for the plant disease classifier and
// interprets its output.
//
// The classifier itself is an opaque artifact behind the Classifier
// interface; the TensorFlow Lite implementation lives in disease/tflite.
package disease

import (
	"fmt"
	"math"
	"slices"

	"github.com/tphakala/agrisense/internal/errors"
)

// Tensor layouts.
const (
	LayoutNCHW = "NCHW"
	LayoutNHWC = "NHWC"
)

// Default input geometry of the leaf classifier.
const (
	DefaultWidth    = 224
	DefaultHeight   = 224
	DefaultChannels = 3
)

// InputSpec is the preprocessing contract of a classifier. Mean and Std are
// per-channel constants applied after scaling pixels to [0,1]; empty means
// no normalization.
type InputSpec struct {
	Width  int
	Height int
	Layout string
	Mean   []float32
	Std    []float32
}

// DefaultInputSpec returns the 224x224 NCHW contract with no normalization.
func DefaultInputSpec() InputSpec {
	return InputSpec{Width: DefaultWidth, Height: DefaultHeight, Layout: LayoutNCHW}
}

// Shape returns the batch-of-one tensor shape for the spec.
func (s InputSpec) Shape() []int {
	if s.Layout == LayoutNHWC {
		return []int{1, s.Height, s.Width, DefaultChannels}
	}
	return []int{1, DefaultChannels, s.Height, s.Width}
}

// Check validates the spec.
func (s InputSpec) Check() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid input size %dx%d", s.Width, s.Height)
	}
	if s.Layout != LayoutNCHW && s.Layout != LayoutNHWC {
		return fmt.Errorf("unsupported tensor layout %q", s.Layout)
	}
	if len(s.Mean) != 0 && len(s.Mean) != DefaultChannels {
		return fmt.Errorf("mean needs %d values, got %d", DefaultChannels, len(s.Mean))
	}
	if len(s.Std) != 0 && len(s.Std) != DefaultChannels {
		return fmt.Errorf("std needs %d values, got %d", DefaultChannels, len(s.Std))
	}
	for _, v := range s.Std {
		if v == 0 {
			return fmt.Errorf("std must be non-zero")
		}
	}
	return nil
}

// Tensor is a dense float32 tensor.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Prediction is the classifier verdict for one image.
type Prediction struct {
	ClassIndex    int
	Confidence    float64
	Probabilities []float64
}

// Classifier runs a fixed image classifier. Implementations must be safe
// for concurrent use.
type Classifier interface {
	Classify(t Tensor) (Prediction, error)
	NumClasses() int
	Input() InputSpec
	Close() error
}

// Softmax converts logits to probabilities.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := float64(slices.Max(logits))
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index and value of the largest element. Ties resolve to
// the lowest index.
func Argmax(values []float64) (int, float64) {
	best := -1
	bestValue := math.Inf(-1)
	for i, v := range values {
		if v > bestValue {
			best, bestValue = i, v
		}
	}
	return best, bestValue
}

// Interpret turns raw model output into a Prediction. Logits are passed
// through Softmax; declared probability outputs are range checked and used
// as they are.
func Interpret(output []float32, probabilities bool) (Prediction, error) {
	if len(output) == 0 {
		return Prediction{}, errors.Newf("classifier produced no output").
			Component("disease").
			Category(errors.CategorySchemaMismatch).
			Build()
	}

	var probs []float64
	if probabilities {
		probs = make([]float64, len(output))
		for i, p := range output {
			v := float64(p)
			if math.IsNaN(v) || v < 0 || v > 1 {
				return Prediction{}, errors.Newf("classifier output %d is %v, not a probability", i, p).
					Component("disease").
					Category(errors.CategorySchemaMismatch).
					Build()
			}
			probs[i] = v
		}
	} else {
		for _, l := range output {
			if math.IsNaN(float64(l)) || math.IsInf(float64(l), 0) {
				return Prediction{}, errors.Newf("classifier produced non-finite logits").
					Component("disease").
					Category(errors.CategorySchemaMismatch).
					Build()
			}
		}
		probs = Softmax(output)
	}

	idx, conf := Argmax(probs)
	return Prediction{ClassIndex: idx, Confidence: conf, Probabilities: probs}, nil
}
