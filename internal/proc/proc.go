// Package proc frees processes bound to the service's well-known ports on a
// node: graceful signal first, forced signal after a grace period, each step
// verified before the next. A stale prior instance must never block startup
// or hold files open during teardown.
package proc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/target"
)

// ListenerPIDs returns the pids of processes listening on the given TCP
// port, parsed from ss output.
func ListenerPIDs(ctx context.Context, tgt target.Target, port int) ([]int, error) {
	cmd := fmt.Sprintf("ss -tlnp 2>/dev/null | grep -E '[:.]%d([[:space:]]|$)' || true", port)
	out, err := target.Output(ctx, tgt, cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect port %d: %w", port, err)
	}
	return ParseListenerPIDs(out), nil
}

// ParseListenerPIDs extracts pids from `ss -tlnp` lines. The process column
// looks like users:(("java",pid=4711,fd=123)).
func ParseListenerPIDs(out string) []int {
	seen := make(map[int]bool)
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		rest := line
		for {
			idx := strings.Index(rest, "pid=")
			if idx < 0 {
				break
			}
			rest = rest[idx+len("pid="):]
			end := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
			field := rest
			if end >= 0 {
				field = rest[:end]
			}
			if pid, err := strconv.Atoi(field); err == nil && !seen[pid] {
				seen[pid] = true
				pids = append(pids, pid)
			}
		}
	}
	return pids
}

// FreePort terminates any process bound to the port: SIGTERM, wait out the
// grace period, SIGKILL whatever survived, then verify the port is free.
// Returns a VerificationError when a listener remains.
func FreePort(ctx context.Context, tgt target.Target, port int, grace time.Duration) error {
	pids, err := ListenerPIDs(ctx, tgt, port)
	if err != nil {
		return err
	}
	if len(pids) == 0 {
		return nil
	}

	if err := signal(ctx, tgt, pids, "TERM"); err != nil {
		return err
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		remaining, err := ListenerPIDs(ctx, tgt, port)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}

	remaining, err := ListenerPIDs(ctx, tgt, port)
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		return nil
	}

	if err := signal(ctx, tgt, remaining, "KILL"); err != nil {
		return err
	}

	// Killed processes can take a moment to release the socket.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
	}

	final, err := ListenerPIDs(ctx, tgt, port)
	if err != nil {
		return err
	}
	if len(final) > 0 {
		return &provisioning.VerificationError{
			Check: fmt.Sprintf("port %d still bound by pids %v after SIGKILL", port, final),
		}
	}
	return nil
}

func signal(ctx context.Context, tgt target.Target, pids []int, sig string) error {
	args := make([]string, 0, len(pids))
	for _, pid := range pids {
		args = append(args, strconv.Itoa(pid))
	}
	cmd := fmt.Sprintf("kill -%s %s 2>/dev/null || true", sig, strings.Join(args, " "))
	if _, err := tgt.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to send SIG%s: %w", sig, err)
	}
	return nil
}
