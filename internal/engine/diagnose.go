package engine

import (
	"context"
	"time"

	"github.com/tphakala/agrisense/internal/disease"
	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
	"github.com/tphakala/agrisense/internal/refdata"
)

// DiagnosisResult is the outcome of one leaf image classification.
type DiagnosisResult struct {
	RequestID   string                    `json:"request_id"`
	State       State                     `json:"state"`
	ClassIndex  int                       `json:"class_index"`
	DiseaseName string                    `json:"disease_name"`
	Crop        string                    `json:"crop,omitempty"`
	Confidence  float64                   `json:"confidence"`
	Description string                    `json:"description"`
	Prevention  string                    `json:"prevention"`
	ImageURL    string                    `json:"image_url,omitempty"`
	Supplement  *refdata.SupplementRecord `json:"supplement,omitempty"`
}

// Diagnose classifies a leaf image and attaches the disease metadata and,
// when the catalog has one, the suggested supplement.
func (e *Engine) Diagnose(ctx context.Context, image []byte) (DiagnosisResult, error) {
	start := time.Now()
	t := newTracker(ctx, CapabilityDiagnose)

	res, err := e.diagnose(t, image)
	e.finish(t, start, err)
	if err != nil {
		return DiagnosisResult{}, t.fail(err)
	}

	t.advance(StateReturned)
	res.RequestID = t.id
	res.State = t.state
	t.log.Debug("diagnosis returned",
		logger.Int("class_index", res.ClassIndex),
		logger.String("disease", res.DiseaseName),
		logger.Float64("confidence", res.Confidence),
		logger.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (e *Engine) diagnose(t *tracker, image []byte) (DiagnosisResult, error) {
	if e.diseaseErr != nil {
		return DiagnosisResult{}, e.diseaseErr
	}

	tensor, err := disease.Preprocess(image, e.classifier.Input())
	if err != nil {
		return DiagnosisResult{}, err
	}
	t.advance(StateValidated)
	t.advance(StateEncoded)

	pred, err := e.classifier.Classify(tensor)
	if err != nil {
		return DiagnosisResult{}, err
	}
	if pred.Confidence < 0 || pred.Confidence > 1 {
		return DiagnosisResult{}, errors.Newf("classifier confidence %v outside [0,1]", pred.Confidence).
			Component("engine").
			Category(errors.CategorySchemaMismatch).
			Build()
	}
	t.advance(StateInferred)

	rec, err := e.store.Disease(pred.ClassIndex)
	if err != nil {
		return DiagnosisResult{}, err
	}

	res := DiagnosisResult{
		ClassIndex:  pred.ClassIndex,
		DiseaseName: rec.Name,
		Crop:        rec.Crop,
		Confidence:  pred.Confidence,
		Description: rec.Description,
		Prevention:  rec.Prevention,
		ImageURL:    rec.ImageURL,
	}
	if sup, ok := e.store.Supplement(rec.SupplementID); ok {
		res.Supplement = &sup
	}
	t.advance(StateDerived)
	return res, nil
}

// finish records request metrics for the terminal outcome.
func (e *Engine) finish(t *tracker, start time.Time, err error) {
	e.recorder.RecordDuration(t.capability, time.Since(start).Seconds())
	if err != nil {
		e.recorder.RecordOperation(t.capability, terminalState(err).label())
		e.recorder.RecordError(t.capability, string(errors.CategoryOf(err)))
		return
	}
	e.recorder.RecordOperation(t.capability, StateReturned.label())
}
