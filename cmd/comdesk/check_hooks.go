package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/kingrea/comdesk/plugins"
)

func handleCheckHooksCommand(args []string) bool {
	if len(args) < 1 || args[0] != "check-hooks" {
		return false
	}
	os.Exit(runCheckHooks(args[1:], os.Stdout, os.Stderr))
	return true
}

// runCheckHooks loads a restock script and lists the hooks it binds.
// It returns the process exit code.
func runCheckHooks(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: comdesk check-hooks /path/to/restock.go")
		return 2
	}
	hooks, err := plugins.LoadRestockHooks(args[0], zap.NewNop())
	if err != nil {
		fmt.Fprintf(stderr, "Invalid: %v\n", err)
		return 1
	}
	if hooks == nil {
		fmt.Fprintln(stderr, "Invalid: empty script path")
		return 1
	}
	bound := hooks.Bound()
	if len(bound) == 0 {
		fmt.Fprintf(stdout, "OK: %s (no hooks bound; restock actions will do nothing)\n", hooks.Path())
		return 0
	}
	fmt.Fprintf(stdout, "OK: %s\n", hooks.Path())
	for _, name := range bound {
		fmt.Fprintf(stdout, "- %s\n", name)
	}
	return 0
}
