package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/appbundle/internal/config"
	"github.com/oshokin/appbundle/internal/logger"
	"github.com/oshokin/appbundle/internal/service/inspect"
	"github.com/oshokin/appbundle/internal/service/updater"
	"github.com/oshokin/appbundle/internal/tools"
	"github.com/oshokin/appbundle/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

// VerifierFactory builds the external tool verifier for a command run.
type VerifierFactory func() tools.Verifier

// Option configures the command tree.
type Option func(*rootOptions)

type rootOptions struct {
	newVerifier VerifierFactory
}

// WithVerifierFactory replaces the git verifier used by update and verify.
func WithVerifierFactory(factory VerifierFactory) Option {
	return func(o *rootOptions) {
		if factory != nil {
			o.newVerifier = factory
		}
	}
}

func newGitVerifier() tools.Verifier {
	return tools.NewGitVerifier()
}

// NewRootCommand builds the appbundle command tree.
// Nothing here checks external tools; only update and verify build a verifier, when run.
func NewRootCommand(opts ...Option) *cobra.Command {
	flags := new(globalFlags)
	options := &rootOptions{newVerifier: newGitVerifier}

	for _, opt := range opts {
		opt(options)
	}

	root := &cobra.Command{
		Use:   "appbundle",
		Short: "Build native application bundles",
		Long: `appbundle converts a cross-platform application project into native bundles.

The update command refreshes the dependencies, code and extras of bundles
that were already created for the configured platform and output format.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logger.SetLevelFromString(flags.logLevel)
		},
	}

	root.PersistentFlags().
		StringVarP(&flags.configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	root.PersistentFlags().
		StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newUpdateCommand(flags, options.newVerifier),
		newVerifyCommand(options.newVerifier),
		newPathsCommand(flags),
		newReportCommand(flags),
		version.NewCommand(),
	)

	return root
}

// Execute runs the appbundle CLI and exits with non-zero status on error.
func Execute() {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := NewRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

func newUpdateCommand(flags *globalFlags, newVerifier VerifierFactory) *cobra.Command {
	options := new(updater.Options)

	command := &cobra.Command{
		Use:   "update [app...]",
		Short: "Update dependencies, code and extras of existing bundles",
		Long: `Verifies that git is installed, then updates every selected application
(all of them when none is named) in name order: dependencies, code, extras.
A failing application does not stop the others unless --fail-fast is set;
every failure is listed at the end and the command exits non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.ConfigPath = flags.configPath
			options.Apps = args
			options.Output = cmd.OutOrStdout()
			options.Verifier = newVerifier()

			_, err := updater.Run(cmd.Context(), options)

			return err
		},
	}

	command.Flags().BoolVar(&options.DryRun, "dry-run", false, "log the steps without writing anything")
	command.Flags().IntVarP(&options.Parallelism, "parallel", "p", 0, "number of applications updated at once")
	command.Flags().BoolVar(&options.FailFast, "fail-fast", false, "stop starting applications after the first failure")
	command.Flags().StringVar(&options.ReportPath, "report", "", "override the run report file")

	return command
}

func newVerifyCommand(newVerifier VerifierFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that required external tools are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return inspect.Verify(cmd.Context(), &inspect.VerifyOptions{
				Verifier: newVerifier(),
				Output:   cmd.OutOrStdout(),
			})
		},
	}
}

func newPathsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths [app...]",
		Short: "Print bundle and binary paths of applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect.Paths(cmd.Context(), &inspect.PathsOptions{
				ConfigPath: flags.configPath,
				Apps:       args,
				Output:     cmd.OutOrStdout(),
			})
		},
	}
}

func newReportCommand(flags *globalFlags) *cobra.Command {
	var reportPath string

	command := &cobra.Command{
		Use:   "report",
		Short: "Show the result of the last update run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := inspect.LastReport(cmd.Context(), &inspect.ReportOptions{
				ConfigPath: flags.configPath,
				ReportPath: reportPath,
				Output:     cmd.OutOrStdout(),
			})

			return err
		},
	}

	command.Flags().StringVar(&reportPath, "report", "", "read this report file instead of the configured one")

	return command
}
