package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeaudit/internal/compiler"
	"github.com/roach88/pipeaudit/internal/service"
)

func newContractCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contract",
		Short: "Inspect and validate data contracts",
	}
	cmd.AddCommand(newContractValidateCommand(opts))
	cmd.AddCommand(newContractListCommand(opts))
	return cmd
}

// ValidationResult is the JSON payload of contract validate.
type ValidationResult struct {
	File     string                     `json:"file"`
	Contract string                     `json:"contract,omitempty"`
	Valid    bool                       `json:"valid"`
	Rules    int                        `json:"rules,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Message  string                     `json:"message,omitempty"`
}

func newContractValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file|name]...",
		Short: "Check contracts without running them",
		Long: `Compile contracts and report every problem found.

Arguments may be paths to contract files or contract names in the project's
contracts directory. With no arguments every contract is validated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContractValidate(opts, args, cmd)
		},
	}
}

func runContractValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, err := openService(opts)
	if err != nil {
		return err
	}
	defer closeService(svc)

	paths, err := contractPaths(svc, args)
	if err != nil {
		return err
	}

	var (
		results []ValidationResult
		invalid int
	)
	for _, path := range paths {
		formatter.VerboseLog("validating %s", path)
		res := ValidationResult{File: path}
		c, err := service.ValidateContract(path)
		if err != nil {
			invalid++
			var verrs compiler.ValidationErrors
			if errors.As(err, &verrs) {
				res.Errors = verrs
			} else {
				res.Message = err.Error()
			}
		} else {
			res.Valid = true
			res.Contract = c.Name
			res.Rules = len(c.Instances())
		}
		results = append(results, res)
	}

	var failure error
	if invalid > 0 {
		failure = NewExitError(ExitContractError, fmt.Sprintf("%d of %d contracts are invalid", invalid, len(paths)))
	}

	if formatter.JSON() {
		_ = formatter.Result(results, failure)
	} else {
		w := formatter.Writer
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "%s %s %s\n", mark("ok"), r.Contract, dimStyle.Render(fmt.Sprintf("(%d rules, %s)", r.Rules, r.File)))
				continue
			}
			fmt.Fprintf(w, "%s %s\n", mark("error"), r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "    %s\n", e.Error())
			}
			if r.Message != "" {
				fmt.Fprintf(w, "    %s\n", r.Message)
			}
		}
		if failure != nil {
			fmt.Fprintln(w, failStyle.Render(failure.Error()))
		}
	}
	if failure != nil {
		return reported(ExitContractError, failure)
	}
	return nil
}

// contractPaths resolves validate arguments to contract files.
func contractPaths(svc *service.Service, args []string) ([]string, error) {
	dir := svc.Config().Contracts()
	if len(args) == 0 {
		return compiler.Files(dir)
	}
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		paths = append(paths, filepath.Join(dir, strings.TrimSuffix(arg, compiler.Extension)+compiler.Extension))
	}
	return paths, nil
}

func newContractListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the contracts in the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			svc, err := openService(opts)
			if err != nil {
				return err
			}
			defer closeService(svc)

			list, err := svc.ListContracts()
			if err != nil {
				return err
			}

			if formatter.JSON() {
				type item struct {
					service.ContractInfo
					Error string `json:"error,omitempty"`
				}
				items := make([]item, len(list))
				for i, c := range list {
					items[i] = item{ContractInfo: c}
					if c.Err != nil {
						items[i].Error = c.Err.Error()
					}
				}
				return formatter.Success(items)
			}

			w := formatter.Writer
			if len(list) == 0 {
				fmt.Fprintf(w, "No contracts in %s\n", svc.Config().Contracts())
				return nil
			}
			for _, c := range list {
				if c.Err != nil {
					fmt.Fprintf(w, "%s %s\n", failStyle.Render(c.Name), dimStyle.Render("(invalid: run contract validate)"))
					continue
				}
				line := fmt.Sprintf("%s %s %s", titleStyle.Render(c.Name), c.Version, dimStyle.Render(fmt.Sprintf("%d rules", c.Rules)))
				if len(c.Tags) > 0 {
					line += " " + dimStyle.Render("["+strings.Join(c.Tags, ", ")+"]")
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}
}
