// Package main is the entry point for the gpulab CLI.
//
// gpulab provisions throwaway GPU development instances on AWS EC2:
// spot-first launches with on-demand fallback, persistent EBS data
// volumes, SSH config aliases, and tag-based cleanup of everything it
// creates.
//
// For detailed usage information, run:
//
//	gpulab --help
package main

import (
	"fmt"
	"os"

	"github.com/gpulab/gpulab/cmd/gpulab/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
