package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProfileCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage connector profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List connector profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			svc, err := openService(opts)
			if err != nil {
				return err
			}
			defer closeService(svc)

			set, err := svc.Profiles()
			if err != nil {
				return WrapExitError(ExitCommandError, "load profiles", err)
			}
			if formatter.JSON() {
				type item struct {
					Name     string `json:"name"`
					Provider string `json:"provider"`
					Region   string `json:"region,omitempty"`
					Endpoint string `json:"endpoint,omitempty"`
				}
				items := []item{}
				for _, p := range set.List() {
					items = append(items, item{Name: p.Name, Provider: p.Provider, Region: p.Region, Endpoint: p.Endpoint})
				}
				return formatter.Success(items)
			}
			if len(set) == 0 {
				fmt.Fprintf(formatter.Writer, "No profiles in %s\n", svc.Config().Profiles())
				return nil
			}
			for _, p := range set.List() {
				fmt.Fprintf(formatter.Writer, "  - %s\n", p)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "test <name>",
		Short: "Check that a profile is complete and usable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			svc, err := openService(opts)
			if err != nil {
				return err
			}
			defer closeService(svc)

			if err := svc.TestProfile(args[0]); err != nil {
				return err
			}
			if formatter.JSON() {
				return formatter.Success(map[string]string{"profile": args[0], "status": "ok"})
			}
			fmt.Fprintf(formatter.Writer, "%s profile %s\n", mark("ok"), args[0])
			return nil
		},
	})
	return cmd
}
