package operations

import (
	"fmt"
)

// StepError records which step a failure came from. The cause keeps its
// category, so errors.TypeOf and errors.ExitCode see through it.
type StepError struct {
	Step  string
	Cause error
}

// Error implements the error interface
func (e *StepError) Error() string {
	if e == nil {
		return "unknown step error"
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Cause)
}

// Unwrap returns the underlying error
func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// WrapError attaches the step ID to err
func WrapError(err error, step string) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Cause: err}
}
