// Package bundle resolves where an application's bundle lives on disk.
package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/appbundle/internal/domain/app"
)

// ErrBundleMissing is returned when the bundle directory has not been created yet.
var ErrBundleMissing = errors.New("bundle does not exist; run the create command first")

// Locator derives bundle and binary paths from platform, output format and app name.
// Both path methods are pure: same inputs, same output, no filesystem access.
type Locator struct {
	// BasePath is the project root.
	BasePath string
	// Platform is the target platform directory, e.g. macOS.
	Platform string
	// OutputFormat is the bundle suffix, e.g. app.
	OutputFormat string
}

// NewLocator returns a Locator rooted at basePath.
func NewLocator(basePath, platform, outputFormat string) *Locator {
	return &Locator{
		BasePath:     basePath,
		Platform:     platform,
		OutputFormat: outputFormat,
	}
}

// PlatformPath returns the directory holding every bundle of the platform.
func (l *Locator) PlatformPath() string {
	return filepath.Join(l.BasePath, l.Platform)
}

// BundlePath returns <base>/<platform>/<name>.<format>.
func (l *Locator) BundlePath(a *app.AppConfig) string {
	return filepath.Join(l.PlatformPath(), a.Name+"."+l.OutputFormat)
}

// BinaryPath returns <base>/<platform>/<name>.<format>.bin.
func (l *Locator) BinaryPath(a *app.AppConfig) string {
	return l.BundlePath(a) + ".bin"
}

// EnsureBundle checks that the bundle directory exists and returns its path.
func (l *Locator) EnsureBundle(a *app.AppConfig) (string, error) {
	bundlePath := l.BundlePath(a)

	info, err := os.Stat(bundlePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", bundlePath, ErrBundleMissing)
		}

		return "", fmt.Errorf("stat bundle: %w", err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory: %w", bundlePath, ErrBundleMissing)
	}

	return bundlePath, nil
}
