// Package main is the entry point for the ekstack CLI.
//
// ekstack provisions and decommissions an application stack on AWS EKS:
// network stack, managed cluster, node group, storage, IAM bindings,
// workload releases, and ingress. Every forward run is idempotent and
// produces a machine-readable evidence record.
//
// Commands: up, down, status, version.
//
// For detailed usage information, run:
//
//	ekstack --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/ekstack/cmd/ekstack/commands"
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
