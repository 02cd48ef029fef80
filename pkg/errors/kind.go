package errors

import (
	"context"
)

// Kind classifies a failure for presentation and metrics.
type Kind string

const (
	KindNone     Kind = ""
	KindConfig   Kind = "config"
	KindModel    Kind = "model"
	KindTool     Kind = "tool"
	KindTimeout  Kind = "timeout"
	KindLimit    Kind = "iteration_limit"
	KindSchema   Kind = "schema"
	KindInput    Kind = "input"
	KindInternal Kind = "internal"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// KindOf maps an error chain onto a Kind. Unknown errors are treated as model failures
// since every other component reports through a sentinel.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case Is(err, ErrMissingCredential), Is(err, ErrInvalidConfig):
		return KindConfig
	case Is(err, context.DeadlineExceeded), Is(err, ErrTimeout):
		return KindTimeout
	case Is(err, ErrIterationLimit):
		return KindLimit
	case Is(err, ErrSchemaMismatch):
		return KindSchema
	case Is(err, ErrInvalidInput):
		return KindInput
	case Is(err, ErrMalformedToolCall):
		return KindTool
	case Is(err, ErrInternal):
		return KindInternal
	default:
		return KindModel
	}
}

// StageError reports a failed pipeline stage together with its classified kind.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return "stage " + e.Stage + " failed (" + e.Kind.String() + "): " + e.Err.Error()
}

// Unwrap returns the wrapped error
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError classifies err and attaches the stage name
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Kind: KindOf(err), Err: err}
}
