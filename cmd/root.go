// Package cmd is the CLI consumer of the trust-and-execution core: a
// small Cobra tree over pkg/angela's nine façade operations (spec.md
// §6), in the same command-tree shape the teacher's own CLI used.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/angela-sh/angela/pkg/angela"
	"github.com/angela-sh/angela/pkg/collab"
	"github.com/angela-sh/angela/pkg/configstore"
	"github.com/angela-sh/angela/pkg/hookbus"
	"github.com/angela-sh/angela/pkg/logx"
	"github.com/angela-sh/angela/pkg/session"
)

var rootCmd = &cobra.Command{
	Use:   "angela",
	Short: "A trust-and-execution core for shell-embedded assistance",
	Long: `angela classifies the risk of a shell command, previews its effect,
resolves free-text file references against your project, and executes
commands and filesystem operations behind a confirmation gate that
learns which commands you trust — with every destructive step backed up
and reversible through transactions.`,
}

var yesFlag bool

// Execute adds all child commands to the root command and runs it. It
// is the sole entry point main calls.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "skip confirmation prompts (use with care)")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(execFSCmd)
	rootCmd.AddCommand(txCmd)
}

// buildAngela wires a fresh façade from the per-user config file and a
// terminal-backed prompter, the construction every subcommand shares.
func buildAngela() (*angela.Angela, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(home, ".angela", "config.json")
	store, err := configstore.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logx.Default()
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	projectInfo := collab.StaticProjectInfo{ProjectRoot: cwd}
	sess := session.New(cwd, projectInfo.Root(), projectInfo.Type())

	a, err := angela.New(angela.Deps{
		Config:   store,
		Log:      log,
		Prompter: terminalPrompter{autoYes: yesFlag},
		Session:  sess,
		Cwd:      cwd,
	})
	if err != nil {
		return nil, err
	}
	hookbus.RegisterActivityTracker(a.Hooks(), collab.DiscardActivityObserver{})
	return a, nil
}
