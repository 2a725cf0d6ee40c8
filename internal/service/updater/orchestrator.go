package updater

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/appbundle/internal/bundle"
	"github.com/oshokin/appbundle/internal/domain/app"
	"github.com/oshokin/appbundle/internal/domain/update"
	"github.com/oshokin/appbundle/internal/logger"
	"github.com/oshokin/appbundle/internal/service/steps"
	"github.com/oshokin/appbundle/internal/tools"
)

// Orchestrator sequences tool verification and the update steps.
type Orchestrator struct {
	verifier tools.Verifier
	locator  *bundle.Locator
	executor steps.Executor

	parallelism int
	failFast    bool
	dryRun      bool

	beforeUpdate func(ctx context.Context) error

	now   func() time.Time
	newID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithParallelism sets how many applications are updated at once.
func WithParallelism(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithFailFast stops starting new applications once one has failed.
func WithFailFast(failFast bool) Option {
	return func(o *Orchestrator) {
		o.failFast = failFast
	}
}

// WithDryRun marks the report as a dry run.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) {
		o.dryRun = dryRun
	}
}

// WithBeforeUpdate registers fn to run once tools are verified and before any
// application is touched. An error from fn aborts the run with a nil report.
func WithBeforeUpdate(fn func(ctx context.Context) error) Option {
	return func(o *Orchestrator) {
		o.beforeUpdate = fn
	}
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator wires the collaborators of a run.
func NewOrchestrator(
	verifier tools.Verifier,
	locator *bundle.Locator,
	executor steps.Executor,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		verifier:    verifier,
		locator:     locator,
		executor:    executor,
		parallelism: 1,
		now:         time.Now,
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Run updates every application of apps.
//
// A verification failure is returned before anything is touched and yields a
// nil report, as does a failing WithBeforeUpdate hook. Otherwise the report is
// always returned; step failures live in it (see Report.Err) and never in the
// returned error, which is only set when ctx was cancelled before every
// application could start.
func (o *Orchestrator) Run(ctx context.Context, apps *app.Collection) (*update.Report, error) {
	startedAt := o.now()

	if _, err := o.verifier.Verify(ctx); err != nil {
		return nil, fmt.Errorf("verify tools: %w", err)
	}

	if o.beforeUpdate != nil {
		if err := o.beforeUpdate(ctx); err != nil {
			return nil, err
		}
	}

	runLog := update.NewActionLog()
	runLog.Append(update.StepVerify, "")

	descriptors := apps.Apps()
	progress := make([]*update.Progress, len(descriptors))
	appLogs := make([]*update.ActionLog, len(descriptors))

	for i, descriptor := range descriptors {
		progress[i] = update.NewProgress(descriptor.Name)
		appLogs[i] = update.NewActionLog()
	}

	var (
		anyFailed atomic.Bool
		cancelled atomic.Bool
		group     errgroup.Group
	)

	group.SetLimit(o.parallelism)

	for i, descriptor := range descriptors {
		group.Go(func() error {
			// Abort only between application sequences, never mid-step.
			if ctx.Err() != nil {
				cancelled.Store(true)
				return nil
			}

			if o.failFast && anyFailed.Load() {
				logger.InfoKV(ctx, "Skipping application after earlier failure", "app", descriptor.Name)
				return nil
			}

			appCtx := logger.WithKV(ctx, "app", descriptor.Name)
			o.updateApp(appCtx, descriptor, progress[i], appLogs[i])

			if progress[i].State == update.StateFailed {
				anyFailed.Store(true)
			}

			return nil
		})
	}

	// Goroutines never return errors; failures are tracked in progress.
	_ = group.Wait()

	runLog.Merge(appLogs...)

	report := &update.Report{
		RunID:        o.newID(),
		Platform:     o.locator.Platform,
		OutputFormat: o.locator.OutputFormat,
		DryRun:       o.dryRun,
		StartedAt:    startedAt,
		FinishedAt:   o.now(),
		Apps:         make([]update.AppResult, 0, len(progress)),
		Actions:      runLog.Actions(),
	}

	for _, p := range progress {
		report.Apps = append(report.Apps, update.AppResult{
			App:     p.App,
			State:   p.State,
			Failure: p.Failure,
		})
	}

	if cancelled.Load() {
		return report, fmt.Errorf("update interrupted: %w", ctx.Err())
	}

	return report, nil
}

// updateApp runs the bundle check and the three steps for one application.
func (o *Orchestrator) updateApp(
	ctx context.Context,
	descriptor *app.AppConfig,
	progress *update.Progress,
	actions *update.ActionLog,
) {
	if !o.advance(ctx, progress, update.StepBundle, update.StateVerifying) {
		return
	}

	bundlePath, err := o.locator.EnsureBundle(descriptor)
	if err != nil {
		o.fail(ctx, progress, update.StepBundle, err)
		return
	}

	for _, step := range update.Steps() {
		actions.Append(step, descriptor.Name)
		logger.DebugKV(ctx, "Running step", "step", step, "bundle", bundlePath)

		if err = o.execute(ctx, step, descriptor, bundlePath); err != nil {
			o.fail(ctx, progress, step, err)
			return
		}

		next, _ := update.StateAfter(step)
		if !o.advance(ctx, progress, step, next) {
			return
		}
	}

	if o.advance(ctx, progress, update.StepExtras, update.StateDone) {
		logger.InfoKV(ctx, "Application updated", "bundle", bundlePath)
	}
}

func (o *Orchestrator) execute(
	ctx context.Context,
	step update.StepKind,
	descriptor *app.AppConfig,
	bundlePath string,
) error {
	switch step {
	case update.StepDependencies:
		return o.executor.InstallDependencies(ctx, descriptor, bundlePath)
	case update.StepCode:
		return o.executor.InstallCode(ctx, descriptor, bundlePath)
	case update.StepExtras:
		return o.executor.InstallExtras(ctx, descriptor, bundlePath)
	default:
		return fmt.Errorf("%w: %s", errUnknownStep, step)
	}
}

// advance moves progress to next; an illegal transition fails the application.
func (o *Orchestrator) advance(
	ctx context.Context,
	progress *update.Progress,
	step update.StepKind,
	next update.State,
) bool {
	if err := progress.Advance(next); err != nil {
		o.fail(ctx, progress, step, err)
		return false
	}

	return true
}

func (o *Orchestrator) fail(ctx context.Context, progress *update.Progress, step update.StepKind, cause error) {
	if err := progress.Fail(step, cause); err != nil {
		logger.ErrorKV(ctx, "Unable to record failure", "step", step, "error", err)
		return
	}

	logger.ErrorKV(ctx, "Update step failed", "step", step, "error", cause)
}
