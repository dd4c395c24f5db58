// Package main is the entry point for the carrot-recon CLI.
package main

import (
	"os"

	"github.com/carrotexpress/backoffice/cmd/carrot-recon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
