package updater

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/oshokin/appbundle/internal/bundle"
	"github.com/oshokin/appbundle/internal/config"
	"github.com/oshokin/appbundle/internal/domain/update"
	"github.com/oshokin/appbundle/internal/logger"
	"github.com/oshokin/appbundle/internal/repository/lock"
	"github.com/oshokin/appbundle/internal/repository/report"
	"github.com/oshokin/appbundle/internal/service/steps"
	"github.com/oshokin/appbundle/internal/tools"
)

// Options are inputs accepted by the update entry point.
type Options struct {
	// ConfigPath is the path to the project configuration.
	ConfigPath string
	// Apps narrows the run to these applications; empty means all.
	Apps []string
	// DryRun logs the steps without writing anything.
	DryRun bool
	// Parallelism overrides the configured parallelism when positive.
	Parallelism int
	// FailFast stops after the first failed application when set
	// (in addition to the configuration value).
	FailFast bool
	// ReportPath overrides the configured report file.
	ReportPath string
	// Output receives the human-readable summary; defaults to os.Stdout.
	Output io.Writer
	// Verifier overrides the git verifier; nil builds one on demand.
	Verifier tools.Verifier
}

// Run loads the configuration and updates the selected applications.
// The returned error is non-nil when verification failed, the run could not
// start, or at least one application failed.
func Run(ctx context.Context, opts *Options) (*update.Report, error) {
	if opts == nil {
		return nil, errOptionsNotSet
	}

	ctx = logger.WithName(ctx, "update")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	collection, err := cfg.Collection()
	if err != nil {
		return nil, err
	}

	apps, err := collection.Select(opts.Apps...)
	if err != nil {
		return nil, err
	}

	if apps.Len() == 0 {
		return nil, errNoApps
	}

	ctx = logger.WithFields(ctx, "platform", cfg.Platform, "format", cfg.OutputFormat)

	locator := bundle.NewLocator(cfg.BasePath, cfg.Platform, cfg.OutputFormat)

	var executor steps.Executor = steps.NewFileExecutor(cfg.BasePath)
	if opts.DryRun {
		executor = steps.NewDryRunExecutor()
	}

	// The verifier is only built here so that unrelated commands never run git.
	verifier := opts.Verifier
	if verifier == nil {
		verifier = tools.NewGitVerifier()
	}

	parallelism := cfg.Parallelism
	if opts.Parallelism > 0 {
		parallelism = opts.Parallelism
	}

	orchestratorOptions := []Option{
		WithParallelism(parallelism),
		WithFailFast(cfg.FailFast || opts.FailFast),
		WithDryRun(opts.DryRun),
	}

	if !opts.DryRun {
		var held *lock.Lock

		// The marker is only taken once tools are verified, so a missing tool leaves the project untouched.
		orchestratorOptions = append(orchestratorOptions, WithBeforeUpdate(func(runCtx context.Context) error {
			var acquireErr error

			held, acquireErr = lock.Acquire(runCtx, filepath.Join(cfg.BasePath, lock.MarkerFilename), nil)

			return acquireErr
		}))

		defer func() {
			if held == nil {
				return
			}

			if releaseErr := held.Release(); releaseErr != nil {
				logger.WarnKV(ctx, "Unable to release the update marker", "error", releaseErr)
			}
		}()
	}

	orchestrator := NewOrchestrator(verifier, locator, executor, orchestratorOptions...)

	logger.InfoKV(ctx, "Updating applications",
		"apps", apps.Names(), "dry_run", opts.DryRun)

	runReport, runErr := orchestrator.Run(ctx, apps)
	if runReport == nil {
		return nil, runErr
	}

	if !opts.DryRun {
		reportPath := cfg.ReportPath()
		if opts.ReportPath != "" {
			reportPath = opts.ReportPath
		}

		if err = report.NewFileRepository(reportPath).Save(ctx, runReport); err != nil {
			logger.WarnKV(ctx, "Unable to save the run report", "path", reportPath, "error", err)
		}
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	if err = RenderSummary(output, runReport); err != nil {
		logger.WarnKV(ctx, "Unable to print the summary", "error", err)
	}

	return runReport, multierr.Append(runErr, runReport.Err())
}
