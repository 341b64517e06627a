package features

// scaler applies fitted scaling parameters in place.
type scaler interface {
	transform(values []float64) error
}

func newScaler(p ScalerParams) (scaler, error) {
	n := 0
	switch p.Kind {
	case ScalerStandard:
		n = len(p.Mean)
		scale := make([]float64, n)
		for i, s := range p.Scale {
			// sklearn stores 1 for constant features
			if s == 0 {
				s = 1
			}
			scale[i] = s
		}
		return standardScaler{mean: p.Mean, scale: scale}, nil
	case ScalerMinMax:
		n = len(p.Min)
		lo, hi := 0.0, 1.0
		if len(p.FeatureRange) == 2 {
			lo, hi = p.FeatureRange[0], p.FeatureRange[1]
		}
		s := minMaxScaler{scale: make([]float64, n), offset: make([]float64, n)}
		for i := range n {
			span := p.Max[i] - p.Min[i]
			if span == 0 {
				span = 1
			}
			s.scale[i] = (hi - lo) / span
			s.offset[i] = lo - p.Min[i]*s.scale[i]
		}
		return s, nil
	case ScalerNone:
		return identityScaler{}, nil
	}
	return nil, schemaError("unknown scaler kind %q", p.Kind)
}

type standardScaler struct {
	mean, scale []float64
}

func (s standardScaler) transform(values []float64) error {
	if len(values) != len(s.mean) {
		return schemaError("scaler fitted on %d features, got %d", len(s.mean), len(values))
	}
	for i := range values {
		values[i] = (values[i] - s.mean[i]) / s.scale[i]
	}
	return nil
}

// minMaxScaler matches sklearn's MinMaxScaler: x*scale + offset.
type minMaxScaler struct {
	scale, offset []float64
}

func (s minMaxScaler) transform(values []float64) error {
	if len(values) != len(s.scale) {
		return schemaError("scaler fitted on %d features, got %d", len(s.scale), len(values))
	}
	for i := range values {
		values[i] = values[i]*s.scale[i] + s.offset[i]
	}
	return nil
}

type identityScaler struct{}

func (identityScaler) transform([]float64) error { return nil }
