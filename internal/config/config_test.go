package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		BasePath: "/project",
		Apps: map[string]*App{
			"first": {
				Bundle:      "com.example",
				Version:     "0.0.1",
				Description: "The first simple app",
			},
			"second": {
				Bundle:      "com.example",
				Version:     "0.0.2",
				Description: "The second simple app",
			},
		},
	}
}

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
	require.ErrorIs(t, Validate(new(Config)), errNoApps)

	cfg := validConfig()
	cfg.Apps["1bad"] = &App{Bundle: "com.example", Version: "1"}
	require.ErrorIs(t, Validate(cfg), errInvalidAppName)

	cfg = validConfig()
	cfg.Apps["first"].Bundle = ""
	require.ErrorIs(t, Validate(cfg), errBundleRequired)

	cfg = validConfig()
	cfg.Apps["first"].Version = ""
	require.ErrorIs(t, Validate(cfg), errVersionRequired)

	cfg = validConfig()
	cfg.Apps["first"].Name = "other"
	require.ErrorIs(t, Validate(cfg), errNameMismatch)

	cfg = validConfig()
	cfg.Apps["first"] = nil
	require.ErrorIs(t, Validate(cfg), errBundleRequired)

	cfg = validConfig()
	cfg.Parallelism = -1
	require.ErrorIs(t, Validate(cfg), errNegativeParallelism)
}

// TestValidate_HostDefaults fills platform and format per host OS.
func TestValidate_HostDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, validateFor(cfg, "darwin"))
	require.Equal(t, "macOS", cfg.Platform)
	require.Equal(t, "app", cfg.OutputFormat)
	require.Equal(t, DefaultReportFilename, cfg.ReportFile)
	require.Equal(t, 1, cfg.Parallelism)

	cfg = validConfig()
	require.NoError(t, validateFor(cfg, "linux"))
	require.Equal(t, "linux", cfg.Platform)
	require.Equal(t, "appimage", cfg.OutputFormat)

	cfg = validConfig()
	cfg.Platform = "tester"
	cfg.OutputFormat = "dummy"
	require.NoError(t, validateFor(cfg, "plan9"))
	require.Equal(t, "tester", cfg.Platform)

	cfg = validConfig()
	require.ErrorIs(t, validateFor(cfg, "plan9"), errUnknownHost)
}

// TestSaveLoadRoundtrip ensures the configuration is persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)

	cfg := validConfig()
	cfg.Platform = "tester"
	cfg.OutputFormat = "dummy"
	cfg.Apps["first"].Requires = []string{"toga==0.4"}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	_, err = os.Stat(path)
	require.NoError(t, err)

	require.ErrorIs(t, Save(path, nil), errConfigIsNotSet)
}

// TestLoad_Errors covers missing and malformed files.
func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("apps: [unclosed"), DefaultFilePermissions))

	_, err = Load(broken)
	require.Error(t, err)
}

// TestCollection converts descriptors into sorted domain apps.
func TestCollection(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Apps["first"].Sources = []string{"src/first"}

	apps, err := cfg.Collection()
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second"}, apps.Names())

	first, ok := apps.Get("first")
	require.True(t, ok)
	require.Equal(t, "com.example", first.Bundle)
	require.Equal(t, []string{"src/first"}, first.Sources)
}

// TestReportPath resolves relative report files against the base path.
func TestReportPath(t *testing.T) {
	t.Parallel()

	cfg := &Config{BasePath: "/project", ReportFile: "report.json"}
	require.Equal(t, filepath.Join("/project", "report.json"), cfg.ReportPath())

	abs := filepath.Join(t.TempDir(), "r.json")
	cfg.ReportFile = abs
	require.Equal(t, abs, cfg.ReportPath())
}

// TestLoad_RelativeBasePath resolves the base path against the file location.
func TestLoad_RelativeBasePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFilename)

	cfg := validConfig()
	cfg.BasePath = "."
	cfg.Platform = "tester"
	cfg.OutputFormat = "dummy"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, dir, loaded.BasePath)
}
