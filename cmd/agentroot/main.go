// Package main provides the entry point for the agentroot CLI.
package main

import (
	"os"

	"github.com/agentroot/agentroot/cmd/agentroot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
