package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/tphakala/agrisense/internal/errors"
	"github.com/tphakala/agrisense/internal/logger"
)

// State is the lifecycle position of a single request.
type State string

// Request states. REJECTED and DEGRADED are terminal failure states.
const (
	StateReceived  State = "RECEIVED"
	StateValidated State = "VALIDATED"
	StateEncoded   State = "ENCODED"
	StateInferred  State = "INFERRED"
	StateDerived   State = "DERIVED"
	StateReturned  State = "RETURNED"
	StateRejected  State = "REJECTED"
	StateDegraded  State = "DEGRADED"
)

// label is the metric label value of a state.
func (s State) label() string { return strings.ToLower(string(s)) }

// Error context keys set on every failure returned by the engine.
const (
	ContextState     = "state"
	ContextRequestID = "request_id"
)

// terminalState classifies a failure: caller mistakes are REJECTED, anything
// the caller cannot fix by resubmitting is DEGRADED.
func terminalState(err error) State {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation,
		errors.CategoryUnknownCategory,
		errors.CategoryUnknownRegion,
		errors.CategoryUndecodableImage:
		return StateRejected
	default:
		return StateDegraded
	}
}

// StateOf returns the terminal state recorded on an engine error, or the
// empty state when err did not come from the engine.
func StateOf(err error) State {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return ""
	}
	if s, ok := ee.GetContext()[ContextState].(State); ok {
		return s
	}
	return ""
}

// RequestIDOf returns the request id recorded on an engine error.
func RequestIDOf(err error) string {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		return ""
	}
	id, _ := ee.GetContext()[ContextRequestID].(string)
	return id
}

// tracker follows one request through its states.
type tracker struct {
	id         string
	capability string
	state      State
	log        logger.Logger
}

// newTracker reuses the trace id of ctx as request id so log lines and API
// responses correlate, and generates one otherwise.
func newTracker(ctx context.Context, capability string) *tracker {
	id := logger.TraceIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	t := &tracker{
		id:         id,
		capability: capability,
		state:      StateReceived,
		log:        GetLogger().With(logger.String("request_id", id), logger.String("capability", capability)),
	}
	t.log.Debug("request received")
	return t
}

func (t *tracker) advance(next State) {
	t.log.Debug("request state transition",
		logger.String("from", string(t.state)),
		logger.String("to", string(next)))
	t.state = next
}

// fail moves the request into its terminal failure state and returns err
// wrapped with the state and request id, keeping the original category.
func (t *tracker) fail(err error) error {
	next := terminalState(err)
	t.advance(next)
	t.log.Debug("request failed",
		logger.String("category", string(errors.CategoryOf(err))),
		logger.Error(err))
	return errors.Wrap(err).
		Component("engine").
		Category(errors.CategoryOf(err)).
		Context(ContextState, next).
		Context(ContextRequestID, t.id).
		Context("capability", t.capability).
		Build()
}
