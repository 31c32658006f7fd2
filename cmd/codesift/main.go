// Package main provides the entry point for the codesift CLI.
package main

import (
	"os"

	"github.com/codesift/codesift/cmd/codesift/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
