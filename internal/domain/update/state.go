package update

import (
	"errors"
	"fmt"
)

// State is the position of one application within a run.
type State int

// The per-app lifecycle. StateVerifying covers the bundle check that precedes
// the first mutation; StateFailed is terminal and reachable from any
// non-terminal state.
const (
	StatePending State = iota
	StateVerifying
	StateDependenciesInstalled
	StateCodeInstalled
	StateExtrasInstalled
	StateDone
	StateFailed
)

var errIllegalTransition = errors.New("illegal state transition")

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateVerifying:
		return "verifying"
	case StateDependenciesInstalled:
		return "dependencies-installed"
	case StateCodeInstalled:
		return "code-installed"
	case StateExtrasInstalled:
		return "extras-installed"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	for state := StatePending; state <= StateFailed; state++ {
		if state.String() == s {
			return state, true
		}
	}

	return StatePending, false
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StateAfter returns the state an application reaches once step succeeds.
func StateAfter(step StepKind) (State, bool) {
	switch step {
	case StepBundle:
		return StateVerifying, true
	case StepDependencies:
		return StateDependenciesInstalled, true
	case StepCode:
		return StateCodeInstalled, true
	case StepExtras:
		return StateExtrasInstalled, true
	default:
		return StatePending, false
	}
}

// Progress tracks one application through the lifecycle.
type Progress struct {
	// App is the application name.
	App string
	// State is the current lifecycle state.
	State State
	// Failure is set once State is StateFailed.
	Failure *StepError
}

// NewProgress returns a pending tracker for appName.
func NewProgress(appName string) *Progress {
	return &Progress{
		App:   appName,
		State: StatePending,
	}
}

// Advance moves to next when it directly follows the current state.
func (p *Progress) Advance(next State) error {
	if p.State.Terminal() || next == StateFailed || next != p.State+1 {
		return fmt.Errorf("%w: %s -> %s", errIllegalTransition, p.State, next)
	}

	p.State = next

	return nil
}

// Fail moves to StateFailed, recording which step broke and why.
func (p *Progress) Fail(step StepKind, cause error) error {
	if p.State.Terminal() {
		return fmt.Errorf("%w: %s -> %s", errIllegalTransition, p.State, StateFailed)
	}

	p.State = StateFailed
	p.Failure = NewStepError(step, p.App, cause)

	return nil
}
