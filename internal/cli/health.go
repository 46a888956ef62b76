package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the project is ready to run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			svc, err := openService(opts)
			if err != nil {
				return err
			}
			defer closeService(svc)

			report := svc.Health(commandContext(cmd))
			var failure error
			if !report.OK() {
				failure = NewExitError(ExitCommandError, "project is not healthy")
			}

			if formatter.JSON() {
				_ = formatter.Result(report, failure)
			} else {
				for _, c := range report.Checks {
					status := "ok"
					if !c.OK {
						status = "fail"
					}
					fmt.Fprintf(formatter.Writer, "%s %-9s %s\n", mark(status), c.Name, dimStyle.Render(c.Detail))
				}
			}
			if failure != nil {
				return reported(ExitCommandError, failure)
			}
			return nil
		},
	}
}
