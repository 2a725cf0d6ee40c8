package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

// fakeProcess satisfies ps.Process.
type fakeProcess struct {
	pid int
}

// Pid implements ps.Process.
func (p fakeProcess) Pid() int {
	return p.pid
}

// PPid implements ps.Process.
func (p fakeProcess) PPid() int {
	return 1
}

// Executable implements ps.Process.
func (p fakeProcess) Executable() string {
	return "appbundle"
}

func alive(pid int) (ps.Process, error) {
	return fakeProcess{pid: pid}, nil
}

func gone(int) (ps.Process, error) {
	return nil, nil //nolint:nilnil // Mirrors ps.FindProcess for a missing PID.
}

// TestAcquireRelease creates and removes the marker.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), MarkerFilename)

	l, err := Acquire(context.Background(), path, nil)
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(contents))

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestAcquire_LiveMarker refuses to run next to a live process.
func TestAcquire_LiveMarker(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), MarkerFilename)
	require.NoError(t, os.WriteFile(path, []byte("4242"), markerFileMode))

	_, err := Acquire(context.Background(), path, &Options{FindProcess: alive})
	require.ErrorIs(t, err, ErrRunInProgress)

	_, err = Acquire(context.Background(), path, &Options{
		FindProcess: func(int) (ps.Process, error) { return nil, errors.New("no process table") },
	})
	require.ErrorIs(t, err, ErrRunInProgress)
}

// TestAcquire_OwnProcessMarker uses the real process table.
func TestAcquire_OwnProcessMarker(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), MarkerFilename)

	held, err := Acquire(context.Background(), path, nil)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, held.Release())
	}()

	_, err = Acquire(context.Background(), path, nil)
	require.ErrorIs(t, err, ErrRunInProgress)
}

// TestAcquire_RecoversStaleMarker replaces markers of dead or old runs.
func TestAcquire_RecoversStaleMarker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	dead := filepath.Join(dir, "dead.lock")
	require.NoError(t, os.WriteFile(dead, []byte("4242"), markerFileMode))

	l, err := Acquire(context.Background(), dead, &Options{FindProcess: gone})
	require.NoError(t, err)
	require.NoError(t, l.Release())

	old := filepath.Join(dir, "old.lock")
	require.NoError(t, os.WriteFile(old, []byte("4242"), markerFileMode))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	l, err = Acquire(context.Background(), old, &Options{FindProcess: alive, Lifetime: time.Minute})
	require.NoError(t, err)
	require.NoError(t, l.Release())

	garbage := filepath.Join(dir, "garbage.lock")
	require.NoError(t, os.WriteFile(garbage, []byte("not a pid"), markerFileMode))

	l, err = Acquire(context.Background(), garbage, &Options{FindProcess: alive})
	require.NoError(t, err)
	require.NoError(t, l.Release())
}
