package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angela-sh/angela/pkg/execengine"
	"github.com/angela-sh/angela/pkg/rollback"
)

var (
	fsDryRun      bool
	fsSkipSafety  bool
	fsTransaction string
	fsContent     string
	fsDestination string
	fsRecursive   bool
)

func init() {
	execFSCmd.Flags().BoolVar(&fsDryRun, "dry-run", false, "show what would happen without executing")
	execFSCmd.Flags().BoolVar(&fsSkipSafety, "skip-safety", false, "bypass the confirmation gate entirely (dangerous)")
	execFSCmd.Flags().StringVar(&fsTransaction, "tx", "", "attach this operation to an existing transaction id")
	execFSCmd.Flags().StringVar(&fsContent, "content", "", "content for create_file/write_file")
	execFSCmd.Flags().StringVar(&fsDestination, "destination", "", "destination path for copy_file/move_file")
	execFSCmd.Flags().BoolVar(&fsRecursive, "recursive", false, "recursive delete for delete_directory")
}

var fsKinds = map[string]rollback.Kind{
	"create_file":      rollback.KindCreateFile,
	"write_file":       rollback.KindWriteFile,
	"delete_file":      rollback.KindDeleteFile,
	"create_directory": rollback.KindCreateDirectory,
	"delete_directory": rollback.KindDeleteDirectory,
	"copy_file":        rollback.KindCopyFile,
	"move_file":        rollback.KindMoveFile,
}

var execFSCmd = &cobra.Command{
	Use:   "exec-fs [kind] [path]",
	Short: "Run a filesystem primitive behind the safety gate, with an automatic backup",
	Long: "kind is one of: create_file, write_file, delete_file, create_directory, delete_directory, copy_file, move_file\n\n" +
		"For copy_file/move_file, path is the source and --destination is required.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, ok := fsKinds[args[0]]
		if !ok {
			return fmt.Errorf("unknown fs op kind %q", args[0])
		}
		a, err := buildAngela()
		if err != nil {
			return err
		}

		params := map[string]string{"path": args[1], "content": fsContent}
		if kind == rollback.KindCopyFile || kind == rollback.KindMoveFile {
			params["source"] = args[1]
			params["destination"] = fsDestination
		}
		if kind == rollback.KindDeleteDirectory && fsRecursive {
			params["recursive"] = "true"
		}

		ok, err = a.ExecuteFS(context.Background(), execengine.FSOp{Kind: kind, Params: params}, execengine.Options{
			CheckSafety:   !fsSkipSafety,
			DryRun:        fsDryRun,
			TransactionID: fsTransaction,
		})
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("not executed")
		}
		return nil
	},
}
