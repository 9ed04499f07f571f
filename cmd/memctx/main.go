// Package main provides the entry point for the memctx CLI.
package main

import (
	"os"

	"github.com/memctx/memctx/cmd/memctx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
