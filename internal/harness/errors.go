package harness

import (
	"errors"
	"fmt"
)

// ErrPipelineStepFailed matches every *StepFailedError.
var ErrPipelineStepFailed = errors.New("pipeline step failed")

// Step names used in StepFailedError for work outside a variant's own steps.
const (
	StepOpenScan    = "open-scan"
	StepReadChannel = "read-channel"
	StepBindDevice  = "bind-device"
	StepMeasure     = "measure"
)

// StepFailedError reports which step of which (variant, entry) task failed.
type StepFailedError struct {
	Variant string
	Entry   string
	Step    string
	Cause   error
}

func (e *StepFailedError) Error() string {
	return fmt.Sprintf("variant %s, entry %s: step %s: %v", e.Variant, e.Entry, e.Step, e.Cause)
}

func (e *StepFailedError) Is(target error) bool {
	return target == ErrPipelineStepFailed
}

func (e *StepFailedError) Unwrap() error {
	return e.Cause
}

// AsStepFailed extracts a *StepFailedError from err.
func AsStepFailed(err error) (*StepFailedError, bool) {
	var sf *StepFailedError
	if errors.As(err, &sf) {
		return sf, true
	}
	return nil, false
}

// loadError is a failed entry load, re-attributed to each variant.
type loadError struct {
	step  string
	cause error
}

func (e *loadError) Error() string {
	return fmt.Sprintf("%s: %v", e.step, e.cause)
}
