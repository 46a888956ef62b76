package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeaudit/internal/ledger"
)

func newLogsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Verify and seal audit logs",
	}
	cmd.AddCommand(newLogsVerifyCommand(opts))
	cmd.AddCommand(newLogsSealCommand(opts))
	return cmd
}

func newLogsVerifyCommand(opts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check audit logs against the ledger",
		Long: `Recompute the digests of sealed audit logs and walk the ledger chain.

Without --date every sealed period is verified and logs that have not
been sealed yet are listed. Exit status 7 means tampering was detected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			svc, err := openService(opts)
			if err != nil {
				return err
			}
			defer closeService(svc)

			results, verr := svc.VerifyLogs(commandContext(cmd), date)
			if results == nil && verr != nil {
				return verr
			}

			if formatter.JSON() {
				_ = formatter.Result(results, verr)
			} else {
				printVerify(formatter, results)
			}
			if verr != nil {
				return reported(GetExitCode(verr), verr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "verify a single period (YYYY-MM-DD)")
	return cmd
}

func printVerify(f *OutputFormatter, results []ledger.Result) {
	w := f.Writer
	if len(results) == 0 {
		fmt.Fprintln(w, "No audit logs found")
		return
	}
	for _, r := range results {
		period := r.Period
		if period == "" {
			period = "ledger"
		}
		line := fmt.Sprintf("%s %s", mark(string(r.Status)), period)
		if r.Entry != nil && f.Verbose {
			line += " " + dimStyle.Render(fmt.Sprintf("#%d %s", r.Entry.Seq, r.Entry.ChainDigest))
		}
		fmt.Fprintln(w, line)
		if r.Reason != "" {
			fmt.Fprintf(w, "    %s\n", r.Reason)
		}
	}
}

func newLogsSealCommand(opts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Seal a finished period into the ledger",
		Long: `Seal one period's audit log into the hash-chained ledger.

Periods are normally sealed automatically when the first record of a
later period is written. Without --date yesterday is sealed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			svc, err := openService(opts)
			if err != nil {
				return err
			}
			defer closeService(svc)

			entry, err := svc.SealPeriod(commandContext(cmd), date)
			if err != nil {
				return err
			}
			if formatter.JSON() {
				return formatter.Success(entry)
			}
			fmt.Fprintf(formatter.Writer, "%s sealed %s as entry #%d\n", mark("ok"), entry.PeriodID, entry.Seq)
			fmt.Fprintln(formatter.Writer, dimStyle.Render("    chain "+entry.ChainDigest))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "period to seal (YYYY-MM-DD, default yesterday)")
	return cmd
}
