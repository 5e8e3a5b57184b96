// Package main provides the entry point for the kbexport CLI.
package main

import (
	"os"

	"github.com/randalmurphal/kbexport/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
