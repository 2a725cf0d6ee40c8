package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/oshokin/appbundle/internal/bundle"
	"github.com/oshokin/appbundle/internal/config"
	"github.com/oshokin/appbundle/internal/domain/update"
	"github.com/oshokin/appbundle/internal/logger"
	"github.com/oshokin/appbundle/internal/repository/report"
	"github.com/oshokin/appbundle/internal/service/updater"
	"github.com/oshokin/appbundle/internal/tools"
)

// PathsOptions are inputs of the paths subcommand.
type PathsOptions struct {
	// ConfigPath is the path to the project configuration.
	ConfigPath string
	// Apps narrows the output; empty means all.
	Apps []string
	// Output receives one line per application; defaults to os.Stdout.
	Output io.Writer
}

// Paths prints "<name>\t<bundle path>\t<binary path>" for each application.
// It never touches external tooling.
func Paths(ctx context.Context, opts *PathsOptions) error {
	ctx = logger.WithName(ctx, "paths")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	collection, err := cfg.Collection()
	if err != nil {
		return err
	}

	apps, err := collection.Select(opts.Apps...)
	if err != nil {
		return err
	}

	locator := bundle.NewLocator(cfg.BasePath, cfg.Platform, cfg.OutputFormat)
	output := writerOrStdout(opts.Output)

	logger.DebugKV(ctx, "Resolving bundle paths", "platform", cfg.Platform, "format", cfg.OutputFormat)

	for _, a := range apps.Apps() {
		if _, err = fmt.Fprintf(output, "%s\t%s\t%s\n", a.Name, locator.BundlePath(a), locator.BinaryPath(a)); err != nil {
			return err
		}
	}

	return nil
}

// VerifyOptions are inputs of the verify subcommand.
type VerifyOptions struct {
	// Verifier overrides the git verifier; nil builds one.
	Verifier tools.Verifier
	// Output receives the verified tool line; defaults to os.Stdout.
	Output io.Writer
}

// Verify checks external tooling and prints what was found.
func Verify(ctx context.Context, opts *VerifyOptions) error {
	ctx = logger.WithName(ctx, "verify")

	verifier := opts.Verifier
	if verifier == nil {
		verifier = tools.NewGitVerifier()
	}

	handle, err := verifier.Verify(ctx)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(writerOrStdout(opts.Output), "%s: %s (%s)\n", handle.Name, handle.Path, handle.Version)

	return err
}

// ReportOptions are inputs of the report subcommand.
type ReportOptions struct {
	// ConfigPath is the path to the project configuration.
	ConfigPath string
	// ReportPath overrides the configured report file.
	ReportPath string
	// Output receives the summary of the last run; defaults to os.Stdout.
	Output io.Writer
}

// LastReport prints the summary and action log of the last saved update run.
func LastReport(ctx context.Context, opts *ReportOptions) (*update.Report, error) {
	ctx = logger.WithName(ctx, "report")

	reportPath := opts.ReportPath
	if reportPath == "" {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}

		reportPath = cfg.ReportPath()
	}

	logger.DebugKV(ctx, "Reading the last run report", "path", reportPath)

	last, err := report.NewFileRepository(reportPath).Load(ctx)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			return nil, fmt.Errorf("no update has been recorded at %s: %w", reportPath, err)
		}

		return nil, err
	}

	output := writerOrStdout(opts.Output)

	if err = updater.RenderSummary(output, last); err != nil {
		return nil, err
	}

	for _, action := range last.Actions {
		if _, err = fmt.Fprintf(output, "  %d. %s\n", action.Seq, action); err != nil {
			return nil, err
		}
	}

	return last, nil
}

func writerOrStdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}

	return w
}
