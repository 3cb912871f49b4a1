// Package main provides the entry point for the agent session runtime's
// CLI: a headless server plus a handful of operational subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/agentrt/runtime/cmd/agentrt/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
