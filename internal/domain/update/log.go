package update

import (
	"slices"
	"sync"
)

// Action is one entry of the action log.
type Action struct {
	// Seq is the 1-based position within the run.
	Seq int
	// Kind is the recorded step.
	Kind StepKind
	// App is the application name; empty for run-wide actions.
	App string
}

// String renders "verify" or "code(first)".
func (a Action) String() string {
	if a.App == "" {
		return a.Kind.String()
	}

	return a.Kind.String() + "(" + a.App + ")"
}

// ActionLog is an append-only, ordered record of executed actions.
// It is safe for concurrent use; sequence numbers give the order.
type ActionLog struct {
	mu      sync.Mutex
	actions []Action
}

// NewActionLog returns an empty log.
func NewActionLog() *ActionLog {
	return new(ActionLog)
}

// Append records kind for appName and returns the stored action.
func (l *ActionLog) Append(kind StepKind, appName string) Action {
	l.mu.Lock()
	defer l.mu.Unlock()

	action := Action{
		Seq:  len(l.actions) + 1,
		Kind: kind,
		App:  appName,
	}

	l.actions = append(l.actions, action)

	return action
}

// Merge appends the entries of others, in argument order, renumbering them.
func (l *ActionLog) Merge(others ...*ActionLog) {
	for _, other := range others {
		if other == nil || other == l {
			continue
		}

		for _, action := range other.Actions() {
			l.Append(action.Kind, action.App)
		}
	}
}

// Len returns the number of recorded actions.
func (l *ActionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.actions)
}

// Actions returns a copy of the recorded actions.
func (l *ActionLog) Actions() []Action {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.actions)
}
