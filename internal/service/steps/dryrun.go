package steps

import (
	"context"

	"github.com/oshokin/appbundle/internal/domain/app"
	"github.com/oshokin/appbundle/internal/domain/update"
	"github.com/oshokin/appbundle/internal/logger"
)

// DryRunExecutor logs the artifact each step would write and touches nothing.
type DryRunExecutor struct{}

// NewDryRunExecutor returns a DryRunExecutor.
func NewDryRunExecutor() *DryRunExecutor {
	return new(DryRunExecutor)
}

// InstallDependencies implements Executor.
func (d *DryRunExecutor) InstallDependencies(ctx context.Context, a *app.AppConfig, bundlePath string) error {
	d.report(ctx, update.StepDependencies, a, bundlePath, DependenciesArtifact)
	return nil
}

// InstallCode implements Executor.
func (d *DryRunExecutor) InstallCode(ctx context.Context, a *app.AppConfig, bundlePath string) error {
	d.report(ctx, update.StepCode, a, bundlePath, CodeArtifact)
	return nil
}

// InstallExtras implements Executor.
func (d *DryRunExecutor) InstallExtras(ctx context.Context, a *app.AppConfig, bundlePath string) error {
	d.report(ctx, update.StepExtras, a, bundlePath, ExtrasArtifact)
	return nil
}

func (d *DryRunExecutor) report(
	ctx context.Context,
	step update.StepKind,
	a *app.AppConfig,
	bundlePath string,
	artifact string,
) {
	logger.InfoKV(ctx, "Dry run: would write artifact",
		"app", a.Name, "step", step, "bundle", bundlePath, "artifact", artifact)
}
