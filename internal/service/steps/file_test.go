package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/appbundle/internal/domain/app"
	"github.com/oshokin/appbundle/internal/domain/update"
)

// newProject creates a base directory with sources and an empty bundle.
func newProject(t *testing.T) (string, string, *app.AppConfig) {
	t.Helper()

	base := t.TempDir()
	bundlePath := filepath.Join(base, "tester", "first.dummy")

	require.NoError(t, os.MkdirAll(bundlePath, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundlePath, "Content"), []byte("first app.bundle"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "src", "first", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "src", "first", "app.py"), []byte("print('first app')"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(base, "src", "first", "pkg", "util.py"), []byte("x = 1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(base, "icon.png"), []byte("png"), 0o600))

	a := &app.AppConfig{
		Name:        "first",
		Bundle:      "com.example",
		Version:     "0.0.1",
		Description: "The first simple app",
		Requires:    []string{"toga==0.4.0", "httpx"},
		Sources:     []string{"src/first"},
		Icon:        "icon.png",
	}

	return base, bundlePath, a
}

func runAllSteps(t *testing.T, e Executor, a *app.AppConfig, bundlePath string) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, e.InstallDependencies(ctx, a, bundlePath))
	require.NoError(t, e.InstallCode(ctx, a, bundlePath))
	require.NoError(t, e.InstallExtras(ctx, a, bundlePath))
}

func readArtifact(t *testing.T, bundlePath, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(bundlePath, name))
	require.NoError(t, err)

	return string(data)
}

// TestFileExecutor_WritesArtifacts checks the content of every artifact.
func TestFileExecutor_WritesArtifacts(t *testing.T) {
	t.Parallel()

	base, bundlePath, a := newProject(t)
	runAllSteps(t, NewFileExecutor(base), a, bundlePath)

	require.Equal(t,
		"# com.example.first 0.0.1 dependencies\ntoga==0.4.0\nhttpx\n",
		readArtifact(t, bundlePath, DependenciesArtifact))

	var manifest codeManifest
	require.NoError(t, yaml.Unmarshal([]byte(readArtifact(t, bundlePath, CodeArtifact)), &manifest))
	require.Equal(t, "first", manifest.App)
	require.Len(t, manifest.Files, 2)
	require.Equal(t, "src/first/app.py", manifest.Files[0].Path)
	require.Equal(t, "src/first/pkg/util.py", manifest.Files[1].Path)

	sum, err := FileChecksum(filepath.Join(base, "src", "first", "app.py"))
	require.NoError(t, err)
	require.Equal(t, sum, manifest.Files[0].Checksum)

	var extras extrasDocument
	require.NoError(t, yaml.Unmarshal([]byte(readArtifact(t, bundlePath, ExtrasArtifact)), &extras))
	require.Equal(t, "com.example.first", extras.AppID)
	require.Equal(t, "icon.png", extras.Icon)

	// Skeleton content of the bundle is untouched and nothing else appears.
	require.Equal(t, "first app.bundle", readArtifact(t, bundlePath, "Content"))

	entries, err := os.ReadDir(bundlePath)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	require.ElementsMatch(t, []string{"Content", DependenciesArtifact, CodeArtifact, ExtrasArtifact}, names)
}

// TestFileExecutor_Idempotent re-runs every step and expects identical content.
func TestFileExecutor_Idempotent(t *testing.T) {
	t.Parallel()

	base, bundlePath, a := newProject(t)
	e := NewFileExecutor(base)

	runAllSteps(t, e, a, bundlePath)

	first := map[string]string{}
	for _, name := range []string{DependenciesArtifact, CodeArtifact, ExtrasArtifact} {
		first[name] = readArtifact(t, bundlePath, name)
	}

	runAllSteps(t, e, a, bundlePath)

	for name, want := range first {
		require.Equal(t, want, readArtifact(t, bundlePath, name), name)
	}
}

// TestFileExecutor_OverwritesShorterContent makes sure stale bytes never survive.
func TestFileExecutor_OverwritesShorterContent(t *testing.T) {
	t.Parallel()

	base, bundlePath, a := newProject(t)
	e := NewFileExecutor(base)

	require.NoError(t, e.InstallDependencies(context.Background(), a, bundlePath))

	a.Requires = nil
	require.NoError(t, e.InstallDependencies(context.Background(), a, bundlePath))

	require.Equal(t, "# com.example.first 0.0.1 dependencies\n", readArtifact(t, bundlePath, DependenciesArtifact))
}

// TestFileExecutor_MissingSource fails the code step with a StepError.
func TestFileExecutor_MissingSource(t *testing.T) {
	t.Parallel()

	base, bundlePath, a := newProject(t)
	a.Sources = []string{"src/missing"}

	err := NewFileExecutor(base).InstallCode(context.Background(), a, bundlePath)
	require.ErrorIs(t, err, errSourceNotFound)

	var stepErr *update.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, update.StepCode, stepErr.Step)
	require.Equal(t, "first", stepErr.App)

	_, statErr := os.Stat(filepath.Join(bundlePath, CodeArtifact))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

// TestFileExecutor_MissingResource fails the extras step.
func TestFileExecutor_MissingResource(t *testing.T) {
	t.Parallel()

	base, bundlePath, a := newProject(t)
	a.Splash = "splash.png"

	err := NewFileExecutor(base).InstallExtras(context.Background(), a, bundlePath)

	var stepErr *update.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, update.StepExtras, stepErr.Step)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestArtifactPath rejects names escaping the bundle.
func TestArtifactPath(t *testing.T) {
	t.Parallel()

	bundlePath := filepath.Join(t.TempDir(), "first.dummy")

	got, err := artifactPath(bundlePath, CodeArtifact)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(bundlePath, CodeArtifact), got)

	for _, name := range []string{"../escape", "..", ".", "a/../../b"} {
		_, err = artifactPath(bundlePath, name)
		require.ErrorIs(t, err, errOutsideBundle, name)
	}
}

// TestFileExecutor_RefusesSymlinkedArtifact never follows a link out of the bundle.
func TestFileExecutor_RefusesSymlinkedArtifact(t *testing.T) {
	t.Parallel()

	base, bundlePath, a := newProject(t)
	outside := filepath.Join(base, "outside")

	if err := os.Symlink(outside, filepath.Join(bundlePath, DependenciesArtifact)); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := NewFileExecutor(base).InstallDependencies(context.Background(), a, bundlePath)
	require.ErrorIs(t, err, errNotRegularFile)

	var stepErr *update.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, update.StepDependencies, stepErr.Step)

	_, err = os.Lstat(outside)
	require.ErrorIs(t, err, os.ErrNotExist)

	// A link to an existing file outside the bundle is refused as well.
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o600))

	err = NewFileExecutor(base).InstallDependencies(context.Background(), a, bundlePath)
	require.ErrorIs(t, err, errNotRegularFile)

	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	require.Equal(t, "keep", string(data))
}

// TestDryRunExecutor_WritesNothing leaves the bundle untouched.
func TestDryRunExecutor_WritesNothing(t *testing.T) {
	t.Parallel()

	_, bundlePath, a := newProject(t)
	runAllSteps(t, NewDryRunExecutor(), a, bundlePath)

	entries, err := os.ReadDir(bundlePath)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
