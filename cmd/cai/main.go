// Package main provides the entry point for the cai CLI.
package main

import (
	"os"

	"github.com/containai/cai/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
