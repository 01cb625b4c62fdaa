package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angela-sh/angela/pkg/execengine"
)

var (
	execDryRun      bool
	execSkipSafety  bool
	execTransaction string
)

func init() {
	execCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "show what would happen without executing")
	execCmd.Flags().BoolVar(&execSkipSafety, "skip-safety", false, "bypass the confirmation gate entirely (dangerous)")
	execCmd.Flags().StringVar(&execTransaction, "tx", "", "attach this execution to an existing transaction id")
}

var execCmd = &cobra.Command{
	Use:   "exec [command]",
	Short: "Run a shell command behind the safety gate, recording it for rollback",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAngela()
		if err != nil {
			return err
		}
		command := strings.Join(args, " ")
		result, err := a.Execute(context.Background(), command, execengine.Options{
			CheckSafety:   !execSkipSafety,
			DryRun:        execDryRun,
			TransactionID: execTransaction,
		})
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		if result.Stdout != "" {
			fmt.Print(result.Stdout)
		}
		if result.Stderr != "" {
			fmt.Fprint(cmd.ErrOrStderr(), result.Stderr)
		}
		if result.ExitCode != 0 {
			return fmt.Errorf("command exited with status %d", result.ExitCode)
		}
		return nil
	},
}
