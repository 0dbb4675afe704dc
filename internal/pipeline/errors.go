package pipeline

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid pipeline config")
	ErrLineTooLong   = errors.New("input line exceeds maximum length")
	ErrAlreadyRun    = errors.New("pipeline already run")
	ErrNilStream     = errors.New("input and output streams are required")
)

// StageError is a fatal error raised by one stage.
type StageError struct {
	stage string
	err   error
}

// NewStageError tags err with the stage that raised it.
func NewStageError(stage string, err error) *StageError {
	return &StageError{stage: stage, err: err}
}

func (e *StageError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *StageError) Unwrap() error {
	return e.err
}

// Stage returns the name of the failing stage.
func (e *StageError) Stage() string {
	return e.stage
}
