package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview [command]",
	Short: "Show a best-effort description of what a command would do",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAngela()
		if err != nil {
			return err
		}
		text, ok := a.Preview(context.Background(), strings.Join(args, " "))
		if !ok {
			fmt.Println("no preview available for this command")
			return nil
		}
		fmt.Println(text)
		return nil
	},
}
