package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [command]",
	Short: "Show the risk tier, reason, and impact of a command without running it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildAngela()
		if err != nil {
			return err
		}
		command := strings.Join(args, " ")
		tier, reason, impact := a.Classify(command)

		tierColor := map[string]*color.Color{
			"SAFE": color.New(color.FgGreen), "LOW": color.New(color.FgBlue),
			"MEDIUM": color.New(color.FgYellow), "HIGH": color.New(color.FgRed),
			"CRITICAL": color.New(color.FgHiRed, color.Bold),
		}[tier.String()]

		tierColor.Printf("[%s]", tier)
		fmt.Printf(" %s — %s\n", command, reason)
		if impact.Destructive {
			fmt.Println("  destructive: yes")
		}
		if impact.CreatesFiles {
			fmt.Println("  creates files: yes")
		}
		if impact.ModifiesFiles {
			fmt.Println("  modifies files: yes")
		}
		return nil
	},
}
