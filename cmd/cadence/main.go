// Package main is the entry point for the cadence CLI.
package main

import (
	"os"

	"github.com/runger/cadence/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
