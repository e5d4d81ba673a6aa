package main

import (
	"os"

	"github.com/aristath/stresslab/cmd/stress/commands"
)

// main is the entry point for the stress CLI: go run ./cmd/stress [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
