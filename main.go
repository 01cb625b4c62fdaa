/*
Package main provides the entry point for the Angela trust-and-execution
core's CLI: a shell-embedded assistant's layer for classifying command
risk, previewing effects, resolving file references, and executing
commands and filesystem operations behind a confirmation gate with full
rollback support.
*/
package main

import (
	"fmt"
	"os"

	"github.com/angela-sh/angela/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
