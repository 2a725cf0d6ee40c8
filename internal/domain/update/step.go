package update

import (
	"errors"
	"fmt"
)

// StepKind names an action recorded by a run.
type StepKind string

const (
	// StepVerify is the run-wide external tool verification.
	StepVerify StepKind = "verify"
	// StepBundle is the per-app check that the bundle directory exists.
	StepBundle StepKind = "bundle"
	// StepDependencies installs third-party dependencies into the bundle.
	StepDependencies StepKind = "dependencies"
	// StepCode installs the application code into the bundle.
	StepCode StepKind = "code"
	// StepExtras installs resources and metadata into the bundle.
	StepExtras StepKind = "extras"
)

// Steps returns the mutation steps in the order they must run.
func Steps() []StepKind {
	return []StepKind{StepDependencies, StepCode, StepExtras}
}

// String implements fmt.Stringer.
func (k StepKind) String() string {
	return string(k)
}

// StepError reports that one step failed for one application.
type StepError struct {
	// Step is the failed step.
	Step StepKind
	// App is the application name.
	App string
	// Err is the underlying cause.
	Err error
}

// NewStepError wraps cause into a *StepError unless it already is one for the same step and app.
func NewStepError(step StepKind, appName string, cause error) *StepError {
	var existing *StepError
	if errors.As(cause, &existing) && existing.Step == step && existing.App == appName {
		return existing
	}

	return &StepError{
		Step: step,
		App:  appName,
		Err:  cause,
	}
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s step failed: %v", e.App, e.Step, e.Err)
}

// Unwrap returns the cause.
func (e *StepError) Unwrap() error {
	return e.Err
}
