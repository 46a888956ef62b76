package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeaudit/internal/service"
)

func newInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a new project with a sample contract",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			dir := opts.Project
			if len(args) == 1 {
				dir = args[0]
			}

			created, err := service.Init(dir)
			if err != nil {
				return WrapExitError(ExitCommandError, "init", err)
			}
			if formatter.JSON() {
				if created == nil {
					created = []string{}
				}
				return formatter.Success(map[string]any{"dir": dir, "created": created})
			}
			if len(created) == 0 {
				fmt.Fprintf(formatter.Writer, "Project in %s is already initialised\n", dir)
				return nil
			}
			for _, p := range created {
				fmt.Fprintf(formatter.Writer, "  created %s\n", p)
			}
			fmt.Fprintln(formatter.Writer, passStyle.Render("Project ready. Try: pipeaudit run example"))
			return nil
		},
	}
}
