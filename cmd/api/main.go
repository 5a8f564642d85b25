package main

import (
	"fmt"
	"os"

	"github.com/spec-kit/fleet-support/cmd/api/commands"
)

// Set during build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.SetVersionInfo(version, commit)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
