package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeaudit/internal/engine"
	"github.com/roach88/pipeaudit/internal/ir"
	"github.com/roach88/pipeaudit/internal/service"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	All    bool
	DryRun bool
}

func newRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <contract> | --all",
		Short: "Validate datasets against their contracts",
		Long: `Run a contract: read its source dataset, evaluate every rule, record
the audit trail and route the dataset by verdict.

Exit status is 0 when every contract passes and 1 when any fails
validation. Errors use the codes listed in pipeaudit --help.

Example:
  pipeaudit run people
  pipeaudit run --all --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.All && len(args) > 0:
				return NewExitError(ExitCommandError, "give a contract name or --all, not both")
			case !opts.All && len(args) != 1:
				return NewExitError(ExitCommandError, "expected one contract name (or --all)")
			}
			return runContracts(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "run every contract in the project")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "evaluate without writing audit records or routing data")

	return cmd
}

// runView is the JSON form of one run.
type runView struct {
	*engine.Report
	Outcomes []outcomeView `json:"outcomes"`
	Error    string        `json:"error,omitempty"`
}

type outcomeView struct {
	RuleID   string   `json:"rule_id"`
	Rule     string   `json:"rule"`
	Scope    string   `json:"scope"`
	Status   string   `json:"status"`
	Details  string   `json:"details"`
	Measured *float64 `json:"measured_value,omitempty"`
}

func newRunView(r *engine.Report, err error) runView {
	v := runView{Report: r}
	if err != nil {
		v.Error = err.Error()
	}
	if r == nil {
		return v
	}
	for _, o := range r.Outcomes {
		v.Outcomes = append(v.Outcomes, outcomeView{
			RuleID:   o.RuleID,
			Rule:     string(o.Kind),
			Scope:    o.Scope.String(),
			Status:   string(o.Status),
			Details:  o.Details,
			Measured: o.Measured,
		})
	}
	return v
}

func runContracts(opts *RunOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	svc, err := openService(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closeService(svc)

	ctx, cancel := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runOpts := service.RunOptions{DryRun: opts.DryRun}
	var results []service.RunResult
	if opts.All {
		results, _ = svc.RunAll(ctx, runOpts)
	} else {
		report, err := svc.RunContract(ctx, args[0], runOpts)
		results = []service.RunResult{{Contract: args[0], Report: report, Err: err}}
	}

	var (
		failure error
		code    = ExitSuccess
	)
	for _, r := range results {
		switch {
		case r.Err != nil && failure == nil:
			failure, code = r.Err, GetExitCode(r.Err)
		case r.Err == nil && r.Report.Verdict == ir.VerdictFail && code == ExitSuccess:
			code = ExitFailure
		}
	}
	if failure == nil && code == ExitFailure {
		failure = NewExitError(ExitFailure, "validation failed")
	}

	if formatter.JSON() {
		views := make([]runView, len(results))
		for i, r := range results {
			views[i] = newRunView(r.Report, r.Err)
		}
		if opts.All {
			_ = formatter.Result(views, failure)
		} else {
			_ = formatter.Result(views[0], failure)
		}
	} else {
		for _, r := range results {
			printRun(formatter, r, opts.DryRun)
		}
	}

	if failure != nil {
		return reported(code, failure)
	}
	return nil
}

func printRun(f *OutputFormatter, r service.RunResult, dryRun bool) {
	w := f.Writer
	if r.Report == nil {
		fmt.Fprintf(w, "%s %s\n    %v\n", mark("error"), titleStyle.Render(r.Contract), r.Err)
		return
	}

	rep := r.Report
	header := fmt.Sprintf("%s %s %s %s", mark(string(rep.Verdict)), titleStyle.Render(rep.Contract), rep.Version,
		dimStyle.Render(fmt.Sprintf("(%d passed, %d failed, %d skipped)", rep.Passed, rep.Failed, rep.Skipped)))
	if dryRun {
		header += " " + warnStyle.Render("[dry run]")
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, dimStyle.Render("    run "+rep.RunID))

	printOutcomes(w, rep, f.Verbose)

	if rep.RoutedTo != "" {
		fmt.Fprintf(w, "    routed to %s\n", rep.RoutedTo)
	}
	if rep.RouteErr != nil {
		fmt.Fprintf(w, "    %s %v\n", warnStyle.Render("routing failed:"), rep.RouteErr)
	}
	if r.Err != nil {
		fmt.Fprintf(w, "    %s %v\n", failStyle.Render("error:"), r.Err)
	}
}

// printOutcomes lists failed and skipped outcomes, or every outcome when
// verbose.
func printOutcomes(w io.Writer, rep *engine.Report, verbose bool) {
	for _, o := range rep.Outcomes {
		if o.Status == ir.StatusPass && !verbose {
			continue
		}
		fmt.Fprintf(w, "    %s %s %s %s\n", mark(string(o.Status)), o.Scope.String(), o.Kind, dimStyle.Render(o.Details))
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
