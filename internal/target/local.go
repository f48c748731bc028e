package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// LocalTarget executes commands in-process on the orchestrator's own machine.
type LocalTarget struct {
	host string
}

// NewLocalTarget creates a target for the local machine.
func NewLocalTarget(host string) *LocalTarget {
	return &LocalTarget{host: host}
}

// Name implements Target.
func (t *LocalTarget) Name() string { return t.host }

// IsLocal implements Target.
func (t *LocalTarget) IsLocal() bool { return true }

// Run implements Target.
func (t *LocalTarget) Run(ctx context.Context, command string) (Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("failed to execute command: %w", err)
	}

	return res, nil
}

// Copy implements Target. For the local machine this is a plain file copy.
func (t *LocalTarget) Copy(_ context.Context, localPath, remotePath string) error {
	// #nosec G304
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(remotePath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	// #nosec G304
	dst, err := os.OpenFile(remotePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}

	return nil
}

// Close implements Target.
func (t *LocalTarget) Close() error { return nil }
