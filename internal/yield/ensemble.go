// Package yield evaluates the crop yield model: a gradient boosted or random
// forest tree ensemble exported as JSON.
package yield

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/features"
)

// SupportedFormatVersion is the ensemble JSON layout this package reads.
const SupportedFormatVersion = 1

// Aggregation modes.
const (
	AggregateSum  = "sum"  // boosted trees: base_score + sum of leaves
	AggregateMean = "mean" // random forest: mean of leaves
)

// Predictor estimates yield from an encoded feature vector.
type Predictor interface {
	Predict(v features.Vector) (float64, error)
	NumFeatures() int
	Kind() string
}

type node struct {
	leaf      bool
	value     float64 // leaf value
	feature   int     // resolved feature index
	threshold float64
	yes, no   int // child positions in the tree slice
	missing   int
}

type tree []node

// Ensemble is an immutable tree ensemble.
type Ensemble struct {
	kind          string
	aggregation   string
	baseScore     float64
	inclusive     bool // split test is x <= threshold instead of x < threshold
	formatVersion int
	featureNames  []string
	trees         []tree
	numFeatures   int
}

var _ Predictor = (*Ensemble)(nil)

func unavailable(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("yield").
		Category(errors.CategoryModelUnavailable).
		Build()
}

func mismatch(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("yield").
		Category(errors.CategorySchemaMismatch).
		Build()
}

// LoadEnsemble parses an ensemble document and binds its feature references
// to columns, the ordered feature schema. Split features are either f<i>
// indices or column names. A corrupt document is reported as model
// unavailable; references that do not fit the schema as schema mismatch.
func LoadEnsemble(r io.Reader, columns []string) (*Ensemble, error) {
	doc, err := jason.NewObjectFromReader(r)
	if err != nil {
		return nil, unavailable("decoding ensemble: %v", err)
	}

	e := &Ensemble{
		kind:          "xgboost",
		aggregation:   AggregateSum,
		formatVersion: SupportedFormatVersion,
	}
	if v, err := doc.GetInt64("format_version"); err == nil {
		e.formatVersion = int(v)
	}
	if e.formatVersion != SupportedFormatVersion {
		return nil, mismatch("unsupported ensemble format version %d", e.formatVersion)
	}
	if v, err := doc.GetString("kind"); err == nil {
		e.kind = v
	}
	if v, err := doc.GetString("aggregation"); err == nil {
		e.aggregation = v
	}
	if e.aggregation != AggregateSum && e.aggregation != AggregateMean {
		return nil, unavailable("unknown aggregation %q", e.aggregation)
	}
	if v, err := doc.GetFloat64("base_score"); err == nil {
		e.baseScore = v
	}
	if v, err := doc.GetString("split_comparison"); err == nil {
		switch v {
		case "lt":
		case "le":
			e.inclusive = true
		default:
			return nil, unavailable("unknown split_comparison %q", v)
		}
	}
	if names, err := doc.GetStringArray("feature_names"); err == nil {
		e.featureNames = names
		if !slices.Equal(names, columns) {
			return nil, mismatch("ensemble features %v do not match schema %v", names, columns)
		}
	}

	roots, err := doc.GetObjectArray("trees")
	if err != nil || len(roots) == 0 {
		return nil, unavailable("ensemble has no trees")
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}
	resolve := func(ref string) (int, error) {
		if i, ok := index[ref]; ok {
			return i, nil
		}
		if n, ok := strings.CutPrefix(ref, "f"); ok {
			if i, err := strconv.Atoi(n); err == nil && i >= 0 {
				if i >= len(columns) {
					return 0, mismatch("split feature %s beyond the %d schema columns", ref, len(columns))
				}
				return i, nil
			}
		}
		return 0, mismatch("split feature %q is not in the schema", ref)
	}

	e.trees = make([]tree, 0, len(roots))
	for i, root := range roots {
		t, err := flattenTree(root, resolve)
		if err != nil {
			if errors.IsCategory(err, errors.CategorySchemaMismatch) {
				return nil, err
			}
			return nil, unavailable("tree %d: %v", i, err)
		}
		e.trees = append(e.trees, t)
	}
	e.numFeatures = len(columns)
	return e, nil
}

// flattenTree converts the nested node objects into a slice indexed by
// position, translating nodeid references.
func flattenTree(root *jason.Object, resolve func(string) (int, error)) (tree, error) {
	type pending struct {
		obj    *jason.Object
		nodeID int64
	}
	var (
		nodes    []*jason.Object
		ids      []int64
		position = map[int64]int{}
		queue    = []pending{{obj: root}}
	)
	rootID, err := root.GetInt64("nodeid")
	if err != nil {
		return nil, fmt.Errorf("node without nodeid")
	}
	queue[0].nodeID = rootID

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if _, dup := position[p.nodeID]; dup {
			return nil, fmt.Errorf("duplicate nodeid %d", p.nodeID)
		}
		position[p.nodeID] = len(nodes)
		nodes = append(nodes, p.obj)
		ids = append(ids, p.nodeID)

		children, err := p.obj.GetObjectArray("children")
		if err != nil {
			continue
		}
		for _, c := range children {
			id, err := c.GetInt64("nodeid")
			if err != nil {
				return nil, fmt.Errorf("node without nodeid under %d", p.nodeID)
			}
			queue = append(queue, pending{obj: c, nodeID: id})
		}
	}

	t := make(tree, len(nodes))
	for i, obj := range nodes {
		if leaf, err := obj.GetFloat64("leaf"); err == nil {
			t[i] = node{leaf: true, value: leaf}
			continue
		}
		split, err := obj.GetString("split")
		if err != nil {
			return nil, fmt.Errorf("node %d has neither leaf nor split", ids[i])
		}
		feature, err := resolve(split)
		if err != nil {
			return nil, err
		}
		threshold, err := obj.GetFloat64("split_condition")
		if err != nil {
			return nil, fmt.Errorf("node %d has no split_condition", ids[i])
		}
		child := func(key string) (int, error) {
			id, err := obj.GetInt64(key)
			if err != nil {
				return 0, fmt.Errorf("node %d has no %s child", ids[i], key)
			}
			pos, ok := position[id]
			if !ok {
				return 0, fmt.Errorf("node %d references unknown node %d", ids[i], id)
			}
			return pos, nil
		}
		n := node{feature: feature, threshold: threshold}
		if n.yes, err = child("yes"); err != nil {
			return nil, err
		}
		if n.no, err = child("no"); err != nil {
			return nil, err
		}
		if n.missing, err = child("missing"); err != nil {
			n.missing = n.yes
		}
		t[i] = n
	}
	return t, nil
}

func (t tree) eval(x []float64, inclusive bool) (float64, error) {
	pos := 0
	// a well formed tree reaches a leaf in fewer steps than it has nodes
	for range len(t) {
		n := t[pos]
		if n.leaf {
			return n.value, nil
		}
		v := x[n.feature]
		switch {
		case math.IsNaN(v):
			pos = n.missing
		case v < n.threshold || (inclusive && v == n.threshold):
			pos = n.yes
		default:
			pos = n.no
		}
	}
	return 0, fmt.Errorf("tree walk did not reach a leaf")
}

// Predict evaluates the ensemble on v.
func (e *Ensemble) Predict(v features.Vector) (float64, error) {
	if len(v.Values) != e.numFeatures {
		return 0, mismatch("model expects %d features, got %d", e.numFeatures, len(v.Values))
	}
	if e.featureNames != nil && !slices.Equal(v.Columns, e.featureNames) {
		return 0, mismatch("feature order %v does not match model %v", v.Columns, e.featureNames)
	}

	var sum float64
	for i, t := range e.trees {
		leaf, err := t.eval(v.Values, e.inclusive)
		if err != nil {
			return 0, mismatch("tree %d: %v", i, err)
		}
		sum += leaf
	}

	var out float64
	if e.aggregation == AggregateMean {
		out = e.baseScore + sum/float64(len(e.trees))
	} else {
		out = e.baseScore + sum
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, mismatch("ensemble produced a non-finite estimate")
	}
	return out, nil
}

// NumFeatures returns the length of the input vector.
func (e *Ensemble) NumFeatures() int { return e.numFeatures }

// Kind returns the model family, e.g. xgboost or random_forest.
func (e *Ensemble) Kind() string { return e.kind }

// NumTrees returns the number of trees.
func (e *Ensemble) NumTrees() int { return len(e.trees) }

// FormatVersion returns the document format version.
func (e *Ensemble) FormatVersion() int { return e.formatVersion }
