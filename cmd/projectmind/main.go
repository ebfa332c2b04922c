// Package main provides the entry point for the projectmind CLI.
package main

import (
	"os"

	"github.com/Nik0lay1/project-mind-mcp/cmd/projectmind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
