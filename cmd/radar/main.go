package main

import (
	"os"

	"github.com/wonny/rebound/backend/cmd/radar/commands"
)

// main is the entry point for the Rebound Radar CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/radar [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
