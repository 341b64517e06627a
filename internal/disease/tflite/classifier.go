// Package tflite implements disease.Classifier on a TensorFlow Lite model.
package tflite

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	tfl "github.com/tphakala/go-tflite"

	"github.com/tphakala/agrisense/internal/disease"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// Config describes the model to load.
type Config struct {
	Name          string // artifact path, used in logs and errors
	Data          []byte // serialized .tflite model
	Threads       int    // interpreter threads, 0 selects runtime.NumCPU()
	Input         disease.InputSpec
	NumClasses    int  // expected output classes, 0 skips the check
	Probabilities bool // model output is already softmaxed
}

// Classifier wraps a TFLite interpreter. The interpreter is not re-entrant,
// so Classify serializes access with a mutex.
type Classifier struct {
	mu      sync.Mutex
	model   *tfl.Model
	options *tfl.InterpreterOptions
	interp  *tfl.Interpreter
	spec    disease.InputSpec
	classes int
	probs   bool
	name    string
}

var _ disease.Classifier = (*Classifier)(nil)

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the tflite module logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("disease.tflite")
	})
	return pkgLogger
}

func determineThreadCount(configured int) int {
	if configured <= 0 || configured > runtime.NumCPU() {
		return runtime.NumCPU()
	}
	return configured
}

// Load creates the interpreter, allocates tensors and checks the input and
// output tensors against cfg.
func Load(cfg Config) (*Classifier, error) {
	start := time.Now()
	if len(cfg.Data) == 0 {
		return nil, errors.Newf("empty model data").
			Component("disease").
			Category(errors.CategoryModelUnavailable).
			ModelContext(cfg.Name, "tflite").
			Build()
	}
	if err := cfg.Input.Check(); err != nil {
		return nil, errors.New(err).
			Component("disease").
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Classifier{spec: cfg.Input, probs: cfg.Probabilities, name: cfg.Name}

	c.model = tfl.NewModel(cfg.Data)
	if c.model == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("disease").
			Category(errors.CategoryModelInit).
			ModelContext(cfg.Name, "tflite").
			Context("model_size_kb", len(cfg.Data)/1024).
			Timing("model-init", time.Since(start)).
			Build()
	}

	threads := determineThreadCount(cfg.Threads)
	c.options = tfl.NewInterpreterOptions()
	c.options.SetNumThread(threads)
	c.options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	c.interp = tfl.NewInterpreter(c.model, c.options)
	if c.interp == nil {
		_ = c.Close()
		return nil, errors.New(fmt.Errorf("cannot create interpreter")).
			Component("disease").
			Category(errors.CategoryModelInit).
			ModelContext(cfg.Name, "tflite").
			Build()
	}
	if status := c.interp.AllocateTensors(); status != tfl.OK {
		_ = c.Close()
		return nil, errors.New(fmt.Errorf("tensor allocation failed: %v", status)).
			Component("disease").
			Category(errors.CategoryModelInit).
			ModelContext(cfg.Name, "tflite").
			Build()
	}

	if err := c.checkTensors(cfg.NumClasses); err != nil {
		_ = c.Close()
		return nil, err
	}

	GetLogger().Info("disease model initialized",
		logger.String("model", cfg.Name),
		logger.Int("threads", threads),
		logger.Int("classes", c.classes),
		logger.String("layout", c.spec.Layout),
		logger.Duration("load_time", time.Since(start)))
	return c, nil
}

func (c *Classifier) checkTensors(expectedClasses int) error {
	in := c.interp.GetInputTensor(0)
	if in == nil {
		return c.mismatch("model has no input tensor")
	}
	if in.Type() != tfl.Float32 {
		return c.mismatch("input tensor type %v, want float32", in.Type())
	}
	want := c.spec.Shape()
	if in.NumDims() != len(want) {
		return c.mismatch("input tensor has %d dims, want %v", in.NumDims(), want)
	}
	for i, d := range want {
		if in.Dim(i) != d {
			got := make([]int, in.NumDims())
			for j := range got {
				got[j] = in.Dim(j)
			}
			return c.mismatch("input tensor shape %v, want %v (%s)", got, want, c.spec.Layout)
		}
	}

	out := c.interp.GetOutputTensor(0)
	if out == nil {
		return c.mismatch("model has no output tensor")
	}
	c.classes = out.Dim(out.NumDims() - 1)
	if expectedClasses > 0 && c.classes != expectedClasses {
		return errors.Newf("class count mismatch: model outputs %d classes but disease table has %d entries",
			c.classes, expectedClasses).
			Component("disease").
			Category(errors.CategorySchemaMismatch).
			ModelContext(c.name, "tflite").
			Context("model_classes", c.classes).
			Context("table_entries", expectedClasses).
			Build()
	}
	return nil
}

func (c *Classifier) mismatch(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("disease").
		Category(errors.CategorySchemaMismatch).
		ModelContext(c.name, "tflite").
		Build()
}

// Classify runs one inference.
func (c *Classifier) Classify(t disease.Tensor) (disease.Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interp == nil {
		return disease.Prediction{}, errors.Newf("classifier is closed").
			Component("disease").
			Category(errors.CategoryModelUnavailable).
			Build()
	}

	in := c.interp.GetInputTensor(0)
	buf := in.Float32s()
	if len(buf) != len(t.Data) {
		return disease.Prediction{}, c.mismatch("input tensor holds %d values, got %d", len(buf), len(t.Data))
	}
	copy(buf, t.Data)

	if status := c.interp.Invoke(); status != tfl.OK {
		return disease.Prediction{}, errors.Newf("tensor invoke failed: %v", status).
			Component("disease").
			Category(errors.CategoryModelUnavailable).
			Build()
	}

	out := c.interp.GetOutputTensor(0)
	raw := make([]float32, c.classes)
	copy(raw, out.Float32s())
	return disease.Interpret(raw, c.probs)
}

// NumClasses returns the size of the output layer.
func (c *Classifier) NumClasses() int { return c.classes }

// Input returns the preprocessing contract.
func (c *Classifier) Input() disease.InputSpec { return c.spec }

// Close frees the interpreter and model.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interp != nil {
		c.interp.Delete()
		c.interp = nil
	}
	if c.options != nil {
		c.options.Delete()
		c.options = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
