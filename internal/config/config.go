package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/appbundle/internal/domain/app"
)

// Config is the project configuration shared by every subcommand.
type Config struct {
	// BasePath is the project root; bundles live under <base>/<platform>.
	BasePath string `yaml:"base_path"`
	// Platform is the target platform, e.g. macOS.
	Platform string `yaml:"platform"`
	// OutputFormat is the bundle format, e.g. app.
	OutputFormat string `yaml:"output_format"`
	// ReportFile is where the last run report is written, relative to BasePath.
	ReportFile string `yaml:"report_file"`
	// Parallelism is the number of applications updated concurrently.
	Parallelism int `yaml:"parallelism"`
	// FailFast stops starting new applications after the first failure.
	FailFast bool `yaml:"fail_fast"`
	// Apps maps application names to their descriptors.
	Apps map[string]*App `yaml:"apps"`
}

// App is the YAML form of one application descriptor.
type App struct {
	// Name is optional; when set it must match the map key.
	Name        string   `yaml:"name,omitempty"`
	Bundle      string   `yaml:"bundle"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Requires    []string `yaml:"requires,omitempty"`
	Sources     []string `yaml:"sources,omitempty"`
	Icon        string   `yaml:"icon,omitempty"`
	Splash      string   `yaml:"splash,omitempty"`
}

const (
	// DefaultConfigFilename is the default project configuration file.
	DefaultConfigFilename = "appbundle.yaml"

	// DefaultReportFilename is the default run report file.
	DefaultReportFilename = "appbundle-report.json"

	// DefaultFilePermissions is used for files written by the tool.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNoApps is returned when the configuration declares no applications.
	errNoApps = errors.New("no applications configured")
	// errInvalidAppName is returned for names that cannot be used as bundle directories.
	errInvalidAppName = errors.New("invalid application name")
	// errNameMismatch is returned when an explicit name disagrees with its key.
	errNameMismatch = errors.New("application name does not match its key")
	// errBundleRequired is returned when the bundle identifier is missing.
	errBundleRequired = errors.New("bundle identifier must be provided")
	// errVersionRequired is returned when the version is missing.
	errVersionRequired = errors.New("version must be provided")
	// errNegativeParallelism is returned for parallelism below zero.
	errNegativeParallelism = errors.New("parallelism must not be negative")
	// errUnknownHost is returned when no default platform exists for the host.
	errUnknownHost = errors.New("no default platform for host")

	appNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
)

// hostDefaults maps GOOS to the default platform and output format.
//
//nolint:gochecknoglobals // Read-only lookup table.
var hostDefaults = map[string][2]string{
	"darwin":  {"macOS", "app"},
	"linux":   {"linux", "appimage"},
	"windows": {"windows", "msi"},
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	// A relative base path is relative to the configuration file, not the working directory.
	if !filepath.IsAbs(cfg.BasePath) {
		cfg.BasePath = filepath.Join(filepath.Dir(path), cfg.BasePath)
	}

	return &cfg, nil
}

// Save validates cfg and writes it to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for the current host.
func Validate(cfg *Config) error {
	return validateFor(cfg, runtime.GOOS)
}

func validateFor(cfg *Config, goos string) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.BasePath == "" {
		cfg.BasePath = "."
	}

	if cfg.Platform == "" || cfg.OutputFormat == "" {
		defaults, ok := hostDefaults[goos]
		if !ok {
			return fmt.Errorf("%w: %s", errUnknownHost, goos)
		}

		if cfg.Platform == "" {
			cfg.Platform = defaults[0]
		}

		if cfg.OutputFormat == "" {
			cfg.OutputFormat = defaults[1]
		}
	}

	if cfg.ReportFile == "" {
		cfg.ReportFile = DefaultReportFilename
	}

	if cfg.Parallelism < 0 {
		return errNegativeParallelism
	}

	if cfg.Parallelism == 0 {
		cfg.Parallelism = 1
	}

	if len(cfg.Apps) == 0 {
		return errNoApps
	}

	for key, descriptor := range cfg.Apps {
		if err := validateApp(key, descriptor); err != nil {
			return err
		}
	}

	return nil
}

func validateApp(key string, descriptor *App) error {
	if !appNamePattern.MatchString(key) {
		return fmt.Errorf("%w: %q", errInvalidAppName, key)
	}

	if descriptor == nil {
		return fmt.Errorf("%s: %w", key, errBundleRequired)
	}

	if descriptor.Name != "" && descriptor.Name != key {
		return fmt.Errorf("%s: %w (name %q)", key, errNameMismatch, descriptor.Name)
	}

	if descriptor.Bundle == "" {
		return fmt.Errorf("%s: %w", key, errBundleRequired)
	}

	if descriptor.Version == "" {
		return fmt.Errorf("%s: %w", key, errVersionRequired)
	}

	return nil
}

// Collection converts the descriptors into the domain collection.
func (c *Config) Collection() (*app.Collection, error) {
	apps := make([]*app.AppConfig, 0, len(c.Apps))

	for key, descriptor := range c.Apps {
		if descriptor == nil {
			return nil, fmt.Errorf("%s: %w", key, errBundleRequired)
		}

		apps = append(apps, &app.AppConfig{
			Name:        key,
			Bundle:      descriptor.Bundle,
			Version:     descriptor.Version,
			Description: descriptor.Description,
			Requires:    descriptor.Requires,
			Sources:     descriptor.Sources,
			Icon:        descriptor.Icon,
			Splash:      descriptor.Splash,
		})
	}

	return app.NewCollection(apps...)
}

// ReportPath returns the report file location, resolved against BasePath.
func (c *Config) ReportPath() string {
	if filepath.IsAbs(c.ReportFile) {
		return c.ReportFile
	}

	return filepath.Join(c.BasePath, c.ReportFile)
}
