package main

import (
	"os"

	"github.com/Conceptual-Machines/magda-groove/cmd/groove/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := commands.NewRootCommand()
	commands.SetVersionInfo(root, version, commit, date)

	if err := root.Execute(); err != nil {
		commands.PrintError(err)
		os.Exit(1)
	}
}
