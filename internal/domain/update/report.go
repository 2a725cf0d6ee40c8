package update

import (
	"time"

	"go.uber.org/multierr"
)

// AppResult is the final outcome for one application.
type AppResult struct {
	// App is the application name.
	App string
	// State is the last state reached.
	State State
	// Failure is non-nil when State is StateFailed.
	Failure *StepError
}

// Report is what one run hands back to the caller.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string
	// Platform and OutputFormat describe the bundles that were updated.
	Platform     string
	OutputFormat string
	// DryRun is set when no files were written.
	DryRun bool
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time
	// Apps holds one result per application, sorted by name.
	Apps []AppResult
	// Actions is the ordered action log.
	Actions []Action
}

// Succeeded reports whether every application reached StateDone.
func (r *Report) Succeeded() bool {
	for _, result := range r.Apps {
		if result.State != StateDone {
			return false
		}
	}

	return true
}

// Failures returns the step failures in application order.
func (r *Report) Failures() []*StepError {
	var failures []*StepError

	for _, result := range r.Apps {
		if result.Failure != nil {
			failures = append(failures, result.Failure)
		}
	}

	return failures
}

// Skipped returns applications that never started.
func (r *Report) Skipped() []string {
	var skipped []string

	for _, result := range r.Apps {
		if result.State == StatePending {
			skipped = append(skipped, result.App)
		}
	}

	return skipped
}

// Result returns the outcome for appName.
func (r *Report) Result(appName string) (AppResult, bool) {
	for _, result := range r.Apps {
		if result.App == appName {
			return result, true
		}
	}

	return AppResult{}, false
}

// Err combines every step failure into one error, or returns nil.
func (r *Report) Err() error {
	var err error

	for _, failure := range r.Failures() {
		err = multierr.Append(err, failure)
	}

	return err
}
