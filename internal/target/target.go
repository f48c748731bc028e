// Package target abstracts command execution and file transfer against a
// node, hiding the local-vs-remote distinction behind one interface. Each
// node's target is resolved once per run and injected into every pipeline
// stage, so no stage ever re-derives "is this the local machine".
package target

import (
	"context"
	"fmt"
	"strings"
)

// Result carries the outcome of one executed command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Target executes commands and transfers files on one node. A non-zero exit
// code is reported through Result, not through the error; the error return
// is reserved for transport failures (unreachable host, broken session).
type Target interface {
	// Name identifies the node for logging.
	Name() string

	// IsLocal reports whether commands execute in-process on this machine.
	IsLocal() bool

	// Run executes a shell command on the node.
	Run(ctx context.Context, command string) (Result, error)

	// Copy transfers a local file to the given path on the node.
	Copy(ctx context.Context, localPath, remotePath string) error

	// Close releases any underlying connection.
	Close() error
}

// Output runs the command and returns trimmed stdout, converting a non-zero
// exit code into an error. Convenience for stages that treat any failure the
// same way.
func Output(ctx context.Context, t Target, command string) (string, error) {
	res, err := t.Run(ctx, command)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("command %q exited %d: %s", command, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Succeeds runs the command and reports whether it exited zero. Transport
// failures propagate as errors.
func Succeeds(ctx context.Context, t Target, command string) (bool, error) {
	res, err := t.Run(ctx, command)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}
