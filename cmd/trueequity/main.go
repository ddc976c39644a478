package main

import (
	"os"

	"github.com/trueequity/backend/cmd/trueequity/commands"
)

// main is the entry point for the trueequity CLI
// ⭐ single CLI entry point: go run ./cmd/trueequity [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
