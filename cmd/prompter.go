package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// terminalPrompter renders safety.Gate notifications to stderr and reads
// yes/no answers from stdin; with autoYes set (the --yes flag) it
// answers every prompt affirmatively without blocking, for scripted use.
type terminalPrompter struct {
	autoYes bool
	reader  *bufio.Reader
}

func (p terminalPrompter) Notify(message string) {
	fmt.Fprintln(os.Stderr, message)
}

func (p terminalPrompter) Confirm(prompt string) (bool, error) {
	if p.autoYes {
		color.Yellow("%s [auto-confirmed via --yes]", prompt)
		return true, nil
	}

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := p.reader
	if reader == nil {
		reader = bufio.NewReader(os.Stdin)
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
