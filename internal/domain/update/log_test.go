package update

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestActionLog_AppendAssignsSequence verifies ordering keys.
func TestActionLog_AppendAssignsSequence(t *testing.T) {
	t.Parallel()

	log := NewActionLog()
	log.Append(StepVerify, "")
	log.Append(StepDependencies, "first")

	actions := log.Actions()
	require.Equal(t, []Action{
		{Seq: 1, Kind: StepVerify},
		{Seq: 2, Kind: StepDependencies, App: "first"},
	}, actions)
	require.Equal(t, "verify", actions[0].String())
	require.Equal(t, "dependencies(first)", actions[1].String())

	// The returned slice is a copy.
	actions[0].Kind = StepExtras
	require.Equal(t, StepVerify, log.Actions()[0].Kind)
}

// TestActionLog_Merge renumbers entries in argument order.
func TestActionLog_Merge(t *testing.T) {
	t.Parallel()

	first := NewActionLog()
	first.Append(StepCode, "first")

	second := NewActionLog()
	second.Append(StepCode, "second")

	run := NewActionLog()
	run.Append(StepVerify, "")
	run.Merge(first, nil, run, second)

	require.Equal(t, []Action{
		{Seq: 1, Kind: StepVerify},
		{Seq: 2, Kind: StepCode, App: "first"},
		{Seq: 3, Kind: StepCode, App: "second"},
	}, run.Actions())
}

// TestActionLog_ConcurrentAppend checks that sequence numbers stay unique.
func TestActionLog_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	const writers = 32

	log := NewActionLog()

	var wg sync.WaitGroup
	for range writers {
		wg.Go(func() {
			log.Append(StepExtras, "app")
		})
	}

	wg.Wait()

	seen := make(map[int]struct{}, writers)
	for _, action := range log.Actions() {
		seen[action.Seq] = struct{}{}
	}

	require.Len(t, seen, writers)
	require.Equal(t, writers, log.Len())
}
