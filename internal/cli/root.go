// Package cli implements the pipeaudit command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeaudit/internal/config"
	"github.com/roach88/pipeaudit/internal/engine"
	"github.com/roach88/pipeaudit/internal/ir"
	"github.com/roach88/pipeaudit/internal/service"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Project string

	// Clock and RunIDs override the service defaults (for testing).
	Clock  ir.Clock
	RunIDs engine.RunIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pipeaudit CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeaudit",
		Short: "Data contract validation with a tamper-evident audit trail",
		Long: `pipeaudit validates datasets against declarative data contracts.

Every run is recorded in append-only daily audit logs. Finished days are
sealed into a hash-chained ledger so later edits to a log can be detected.

Exit codes:
  0  success
  1  a contract failed validation
  2  usage or configuration error
  3  invalid contract
  4  dataset could not be read or routed
  5  audit record could not be written
  6  period could not be sealed
  7  tampering detected`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Project, "project", "C", ".", "project directory")

	cmd.AddCommand(newContractCommand(opts))
	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newHealthCommand(opts))
	cmd.AddCommand(newProfileCommand(opts))
	cmd.AddCommand(newLogsCommand(opts))
	cmd.AddCommand(newInitCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors not already reported by a command are printed here.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	if !IsReported(err) {
		formatter := newFormatter(opts, cmd)
		if formatter.Format == "json" {
			_ = formatter.Error(errorCode(err), err.Error(), nil)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
	}
	return GetExitCode(err)
}

// openService loads the project configuration and creates a service.
func openService(opts *RootOptions) (*service.Service, error) {
	cfg, err := config.Load(opts.Project)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	svcOpts := []service.Option{service.WithLogger(slog.Default())}
	if opts.Clock != nil {
		svcOpts = append(svcOpts, service.WithClock(opts.Clock))
	}
	if opts.RunIDs != nil {
		svcOpts = append(svcOpts, service.WithRunIDs(opts.RunIDs))
	}
	return service.New(cfg, svcOpts...), nil
}

func closeService(svc *service.Service) {
	if err := svc.Close(); err != nil {
		slog.Error("error closing project resources", "error", err)
	}
}
