package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/oshokin/appbundle/internal/logger"
)

// ErrToolMissing matches every *MissingError.
var ErrToolMissing = errors.New("required tool is missing")

const (
	// GitTool is the executable name of git.
	GitTool = "git"

	// hostDarwin is the GOOS value of macOS hosts.
	hostDarwin = "darwin"

	// versionTimeout bounds the `git --version` check.
	versionTimeout = 10 * time.Second
)

const darwinGitRemediation = `appbundle requires git, but it is not installed. Xcode provides git; you should
be shown a dialog prompting you to install Xcode and the Command Line Developer
Tools. Select "Install" to install the Command Line Developer Tools.

Alternatively, you can visit:

    https://git-scm.com/

to download and install git manually.

If you have installed git recently and are still getting this error, you may
need to restart your terminal session.`

const genericGitRemediation = `appbundle requires git, but it is not installed (or is not on your PATH). Visit:

    https://git-scm.com/

to download and install git manually.

If you have installed git recently and are still getting this error, you may
need to restart your terminal session.`

// Handle describes a verified tool.
type Handle struct {
	// Name is the tool name.
	Name string
	// Path is the resolved executable path.
	Path string
	// Version is the first line printed by `<tool> --version`.
	Version string
}

// MissingError is returned when a tool cannot be found or executed.
// Its message is the remediation text for the host OS.
type MissingError struct {
	// Tool is the missing tool.
	Tool string
	// HostOS is the GOOS value the remediation was chosen for.
	HostOS string
	// Remediation is the user-facing guidance.
	Remediation string
	// Err is the lookup or execution failure.
	Err error
}

// Error implements error.
func (e *MissingError) Error() string {
	return e.Remediation
}

// Unwrap returns the lookup failure.
func (e *MissingError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrToolMissing) succeed.
func (e *MissingError) Is(target error) bool {
	return target == ErrToolMissing
}

// Verifier checks that a tool is present and runnable.
type Verifier interface {
	Verify(ctx context.Context) (*Handle, error)
}

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(file string) (string, error)

// RunFunc executes a command and returns its standard output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// GitVerifier verifies git. The zero value is not usable; use NewGitVerifier.
type GitVerifier struct {
	hostOS   string
	lookPath LookPathFunc
	run      RunFunc
}

// Option configures a GitVerifier.
type Option func(*GitVerifier)

// WithHostOS overrides the detected host OS.
func WithHostOS(goos string) Option {
	return func(v *GitVerifier) {
		if goos != "" {
			v.hostOS = goos
		}
	}
}

// WithLookPath overrides executable lookup.
func WithLookPath(fn LookPathFunc) Option {
	return func(v *GitVerifier) {
		if fn != nil {
			v.lookPath = fn
		}
	}
}

// WithRun overrides command execution.
func WithRun(fn RunFunc) Option {
	return func(v *GitVerifier) {
		if fn != nil {
			v.run = fn
		}
	}
}

// NewGitVerifier builds a verifier for the current host. It does not touch
// the system until Verify is called.
func NewGitVerifier(opts ...Option) *GitVerifier {
	v := &GitVerifier{
		hostOS:   runtime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Verify resolves git on PATH and runs `git --version`.
func (v *GitVerifier) Verify(ctx context.Context) (*Handle, error) {
	path, err := v.lookPath(GitTool)
	if err != nil {
		return nil, v.missing(err)
	}

	runCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	output, err := v.run(runCtx, path, "--version")
	if err != nil {
		return nil, v.missing(fmt.Errorf("run %s --version: %w", path, err))
	}

	handle := &Handle{
		Name:    GitTool,
		Path:    path,
		Version: firstLine(string(output)),
	}

	logger.DebugKV(ctx, "Verified tool", "tool", handle.Name, "path", handle.Path, "version", handle.Version)

	return handle, nil
}

func (v *GitVerifier) missing(cause error) *MissingError {
	return &MissingError{
		Tool:        GitTool,
		HostOS:      v.hostOS,
		Remediation: GitRemediation(v.hostOS),
		Err:         cause,
	}
}

// GitRemediation returns the install guidance for git on goos.
func GitRemediation(goos string) string {
	if goos == hostDarwin {
		return darwinGitRemediation
	}

	return genericGitRemediation
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}

	return s
}
