package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/angela-sh/angela/pkg/resolver"
)

var resolveScopeFlag string

func init() {
	resolveCmd.Flags().StringVar(&resolveScopeFlag, "scope", "", "limit resolution to \"project\" or \"directory\"")
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [text]",
	Short: "Resolve a free-text file reference against the current project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAngela()
		if err != nil {
			return err
		}
		path, ok := a.ResolveReference(strings.Join(args, " "), resolver.Scope(resolveScopeFlag))
		if !ok {
			fmt.Println("no match found")
			return nil
		}
		fmt.Println(path)
		return nil
	},
}
