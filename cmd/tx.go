package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angela-sh/angela/pkg/rollback"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Manage transactions: grouped operations that roll back together",
}

var txLimit int

func init() {
	txCmd.AddCommand(txBeginCmd)
	txCmd.AddCommand(txEndCmd)
	txListCmd.Flags().IntVar(&txLimit, "limit", 20, "maximum number of transactions to list")
	txCmd.AddCommand(txListCmd)
	txCmd.AddCommand(txRollbackCmd)
}

var txBeginCmd = &cobra.Command{
	Use:   "begin [description]",
	Short: "Start a new transaction and print its id",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAngela()
		if err != nil {
			return err
		}
		description := args[0]
		for _, arg := range args[1:] {
			description += " " + arg
		}
		txID, err := a.BeginTransaction(description)
		if err != nil {
			return err
		}
		fmt.Println(txID)
		return nil
	},
}

var txEndCmd = &cobra.Command{
	Use:   "end [tx-id] [completed|failed]",
	Short: "Flip a transaction to a terminal status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAngela()
		if err != nil {
			return err
		}
		status := rollback.Status(args[1])
		if status != rollback.StatusCompleted && status != rollback.StatusFailed {
			return fmt.Errorf("status must be %q or %q", rollback.StatusCompleted, rollback.StatusFailed)
		}
		return a.EndTransaction(args[0], status)
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent transactions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAngela()
		if err != nil {
			return err
		}
		for _, tx := range a.ListRecentTransactions(txLimit) {
			fmt.Printf("%s  %-12s %s  (%d ops)\n", tx.TransactionID, tx.Status, tx.Description, len(tx.OperationIDs))
		}
		return nil
	},
}

var txRollbackCmd = &cobra.Command{
	Use:   "rollback [tx-id]",
	Short: "Undo every operation in a transaction, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAngela()
		if err != nil {
			return err
		}
		report, err := a.RollbackTransaction(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("rolled back %d operation(s), %d failure(s)\n", len(report.Succeeded), len(report.Failed))
		for opID, reason := range report.Failed {
			fmt.Printf("  op %d: %s\n", opID, reason)
		}
		return nil
	},
}
