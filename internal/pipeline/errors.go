package pipeline

import (
	"errors"
	"fmt"
)

// Failure kinds of a run. Every stage failure unwraps to one of these.
var (
	ErrInputNotFound    = errors.New("input file not found")
	ErrUnreadableInput  = errors.New("input file not readable")
	ErrMalformedDate    = errors.New("malformed date")
	ErrMissingColumn    = errors.New("missing critical column")
	ErrStore            = errors.New("store operation failed")
	ErrUnwritableOutput = errors.New("output not writable")
)

// Stage names used in errors, logs and metrics.
const (
	StageLoad      = "load"
	StageClean     = "clean"
	StagePersist   = "persist"
	StageKPI       = "kpi"
	StageExport    = "export"
	StageCharts    = "charts"
	StageAggregate = "aggregate"
)

// StageError is a failure inside one pipeline stage.
type StageError struct {
	Stage string // stage that failed
	Path  string // file involved, if any
	Err   error  // failure kind, one of the Err* sentinels
	Cause error  // underlying error, may be nil
}

// Error implements the error interface
func (e *StageError) Error() string {
	msg := e.Stage + ": " + e.Err.Error()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the failure kind and the underlying cause to
// errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func newStageError(stage, path string, kind, cause error) *StageError {
	return &StageError{Stage: stage, Path: path, Err: kind, Cause: cause}
}

// RowError points at a single offending cell of the input.
type RowError struct {
	Row    int // 1-based data row number, header excluded
	Column string
	Value  string
	Err    error
}

// Error implements the error interface
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d, column %q: %v: %q", e.Row, e.Column, e.Err, e.Value)
}

// Unwrap returns the failure kind
func (e *RowError) Unwrap() error {
	return e.Err
}
