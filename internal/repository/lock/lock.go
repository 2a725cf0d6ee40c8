// Package lock keeps two update runs from mutating the same project at once.
//
// The marker file holds the PID of the owning process. A marker whose process
// is gone, or which is older than the marker lifetime, is considered stale
// and recovered automatically.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/appbundle/internal/logger"
)

const (
	// MarkerFilename is the default marker name inside the project directory.
	MarkerFilename = ".appbundle-update.lock"

	// DefaultLifetime is the age after which a marker is stale regardless of its PID.
	DefaultLifetime = time.Hour

	markerFileMode os.FileMode = 0o600
)

// ErrRunInProgress is returned when another live process holds the marker.
var ErrRunInProgress = errors.New("another update is running")

// FindProcessFunc reports the process with pid, or nil when none exists.
type FindProcessFunc func(pid int) (ps.Process, error)

// Lock is a held marker.
type Lock struct {
	path string
}

// Options tune marker recovery.
type Options struct {
	// Lifetime overrides DefaultLifetime.
	Lifetime time.Duration
	// FindProcess overrides the process table lookup.
	FindProcess FindProcessFunc
}

// Acquire creates the marker at path, recovering a stale one first.
func Acquire(ctx context.Context, path string, opts *Options) (*Lock, error) {
	lifetime := DefaultLifetime
	findProcess := FindProcessFunc(ps.FindProcess)

	if opts != nil {
		if opts.Lifetime > 0 {
			lifetime = opts.Lifetime
		}

		if opts.FindProcess != nil {
			findProcess = opts.FindProcess
		}
	}

	path = filepath.Clean(path)

	logger.DebugKV(ctx, "Checking for the presence of an update marker", "path", path)

	if err := recoverStale(ctx, path, lifetime, findProcess); err != nil {
		return nil, err
	}

	marker, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrRunInProgress
		}

		return nil, fmt.Errorf("create update marker: %w", err)
	}

	if _, err = marker.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		_ = marker.Close()
		_ = os.Remove(path)

		return nil, fmt.Errorf("write update marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("close update marker: %w", err)
	}

	return &Lock{path: path}, nil
}

// Release removes the marker. Releasing twice is harmless.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove update marker: %w", err)
	}

	return nil
}

// recoverStale returns ErrRunInProgress for a live marker and removes a stale one.
func recoverStale(ctx context.Context, path string, lifetime time.Duration, findProcess FindProcessFunc) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("stat update marker: %w", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read update marker: %w", err)
	}

	pid, parseErr := strconv.Atoi(strings.TrimSpace(string(contents)))
	fresh := time.Since(info.ModTime()) <= lifetime

	if parseErr == nil && fresh {
		process, findErr := findProcess(pid)
		if findErr != nil || process != nil {
			return ErrRunInProgress
		}
	}

	logger.InfoKV(ctx, "The update marker is stale, removing it", "path", path, "pid", pid)

	if err = os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale update marker: %w", err)
	}

	return nil
}
