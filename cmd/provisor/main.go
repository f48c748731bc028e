// Package main is the entry point for the provisor CLI.
//
// provisor is a command-line tool for provisioning a clustered flow-server
// installation across a set of nodes. It idempotently drives every node
// from whatever state it is in (empty, partially installed, or fully
// configured and running) to a complete, configured, running member of the
// cluster.
//
// Commands: apply, probe, install, configure, activate, health.
//
// For detailed usage information, run:
//
//	provisor --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okatz/provisor/cmd/provisor/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
