package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/appbundle/internal/domain/app"
	"github.com/oshokin/appbundle/internal/domain/update"
	"github.com/oshokin/appbundle/internal/logger"
)

const (
	// DependenciesArtifact is written by InstallDependencies.
	DependenciesArtifact = "dependencies"
	// CodeArtifact is written by InstallCode.
	CodeArtifact = "code.manifest"
	// ExtrasArtifact is written by InstallExtras.
	ExtrasArtifact = "extras"

	// ArtifactFileMode is the mode of every artifact.
	ArtifactFileMode os.FileMode = 0o644
)

var (
	errOutsideBundle  = errors.New("artifact path escapes the bundle")
	errNotRegularFile = errors.New("artifact is not a regular file")
	errSourceNotFound = errors.New("source not found")
)

// FileExecutor writes step artifacts into bundle directories.
type FileExecutor struct {
	// basePath resolves relative app sources and resources.
	basePath string
}

// NewFileExecutor returns an executor resolving sources against basePath.
func NewFileExecutor(basePath string) *FileExecutor {
	return &FileExecutor{
		basePath: basePath,
	}
}

// codeManifest is the content of CodeArtifact.
type codeManifest struct {
	App     string        `yaml:"app"`
	Version string        `yaml:"version"`
	Files   []sourceEntry `yaml:"files"`
}

type sourceEntry struct {
	Path     string `yaml:"path"`
	Checksum string `yaml:"checksum"`
}

// extrasDocument is the content of ExtrasArtifact.
type extrasDocument struct {
	AppID       string `yaml:"app_id"`
	Bundle      string `yaml:"bundle"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon,omitempty"`
	Splash      string `yaml:"splash,omitempty"`
}

// InstallDependencies writes the requirement list, one per line.
func (e *FileExecutor) InstallDependencies(ctx context.Context, a *app.AppConfig, bundlePath string) error {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(a.AppID())
	b.WriteString(" ")
	b.WriteString(a.Version)
	b.WriteString(" dependencies\n")

	for _, requirement := range a.Requires {
		b.WriteString(requirement)
		b.WriteByte('\n')
	}

	return e.write(ctx, update.StepDependencies, a, bundlePath, DependenciesArtifact, []byte(b.String()))
}

// InstallCode writes a manifest of every source file with its checksum.
// A source that does not exist fails the step.
func (e *FileExecutor) InstallCode(ctx context.Context, a *app.AppConfig, bundlePath string) error {
	manifest := codeManifest{
		App:     a.Name,
		Version: a.Version,
		Files:   make([]sourceEntry, 0, len(a.Sources)),
	}

	for _, source := range a.Sources {
		entries, err := e.collectSource(source)
		if err != nil {
			return update.NewStepError(update.StepCode, a.Name, err)
		}

		manifest.Files = append(manifest.Files, entries...)
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return update.NewStepError(update.StepCode, a.Name, fmt.Errorf("marshal code manifest: %w", err))
	}

	return e.write(ctx, update.StepCode, a, bundlePath, CodeArtifact, data)
}

// InstallExtras writes bundle metadata and resource references.
func (e *FileExecutor) InstallExtras(ctx context.Context, a *app.AppConfig, bundlePath string) error {
	for _, resource := range []string{a.Icon, a.Splash} {
		if resource == "" {
			continue
		}

		if _, err := os.Stat(e.resolve(resource)); err != nil {
			return update.NewStepError(update.StepExtras, a.Name, fmt.Errorf("resource %s: %w", resource, err))
		}
	}

	data, err := yaml.Marshal(&extrasDocument{
		AppID:       a.AppID(),
		Bundle:      a.Bundle,
		Version:     a.Version,
		Description: a.Description,
		Icon:        a.Icon,
		Splash:      a.Splash,
	})
	if err != nil {
		return update.NewStepError(update.StepExtras, a.Name, fmt.Errorf("marshal extras: %w", err))
	}

	return e.write(ctx, update.StepExtras, a, bundlePath, ExtrasArtifact, data)
}

// collectSource returns checksummed entries for a file or every file below a directory.
func (e *FileExecutor) collectSource(source string) ([]sourceEntry, error) {
	root := e.resolve(source)

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errSourceNotFound, source)
		}

		return nil, fmt.Errorf("stat source %s: %w", source, err)
	}

	if !info.IsDir() {
		sum, sumErr := FileChecksum(root)
		if sumErr != nil {
			return nil, sumErr
		}

		return []sourceEntry{{Path: filepath.ToSlash(source), Checksum: sum}}, nil
	}

	var entries []sourceEntry

	// WalkDir visits entries in lexical order, which keeps the manifest stable.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		sum, sumErr := FileChecksum(path)
		if sumErr != nil {
			return sumErr
		}

		entries = append(entries, sourceEntry{
			Path:     filepath.ToSlash(filepath.Join(source, rel)),
			Checksum: sum,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source %s: %w", source, err)
	}

	return entries, nil
}

func (e *FileExecutor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(e.basePath, path)
}

// write replaces bundlePath/name with data atomically.
func (e *FileExecutor) write(
	ctx context.Context,
	step update.StepKind,
	a *app.AppConfig,
	bundlePath string,
	name string,
	data []byte,
) error {
	target, err := artifactPath(bundlePath, name)
	if err != nil {
		return update.NewStepError(step, a.Name, err)
	}

	if err = applyFile(target, data); err != nil {
		return update.NewStepError(step, a.Name, err)
	}

	logger.DebugKV(ctx, "Wrote artifact", "app", a.Name, "step", step, "path", target, "bytes", len(data))

	return nil
}

// artifactPath joins name to bundlePath and rejects results outside it.
func artifactPath(bundlePath, name string) (string, error) {
	target := filepath.Join(bundlePath, name)

	rel, err := filepath.Rel(bundlePath, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideBundle, name)
	}

	return target, nil
}

// applyFile overwrites target through go-update, which swaps in a fully
// written file and removes the previous one.
// Symlinks and other non-regular targets are refused so nothing is written outside the bundle.
func applyFile(target string, data []byte) error {
	info, err := os.Lstat(target)

	switch {
	case errors.Is(err, os.ErrNotExist):
		var created *os.File

		created, err = os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, ArtifactFileMode) //nolint:gosec // Path is checked by artifactPath.
		if err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}

		if err = created.Close(); err != nil {
			return fmt.Errorf("close %s: %w", target, err)
		}
	case err != nil:
		return fmt.Errorf("stat %s: %w", target, err)
	case !info.Mode().IsRegular():
		return fmt.Errorf("%w: %s (%s)", errNotRegularFile, target, info.Mode().Type())
	}

	sum, err := checksum(data)
	if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: ArtifactFileMode,
		Checksum:   sum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("apply %s: %w", target, err)
	}

	return nil
}
