// Package main is the entry point of the pfbatch daemon.
package main

import (
	"os"

	"github.com/concave-dev/pfbatch/cmd/pfbatchd/commands"
)

func main() {
	commands.SetupCommands()
	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
