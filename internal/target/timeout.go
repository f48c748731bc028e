package target

import (
	"context"
	"time"
)

// timeoutTarget bounds each Run and Copy call with its own deadline so a
// wedged remote command cannot stall the whole run. The surrounding context
// still applies; the shorter of the two wins.
type timeoutTarget struct {
	inner Target
	run   time.Duration
	copy  time.Duration
}

// WithTimeouts wraps t so every Run call is bounded by runTimeout and every
// Copy call by copyTimeout. A zero or negative duration leaves that
// operation unbounded; if both are unset, t is returned unchanged.
func WithTimeouts(t Target, runTimeout, copyTimeout time.Duration) Target {
	if runTimeout <= 0 && copyTimeout <= 0 {
		return t
	}
	return &timeoutTarget{inner: t, run: runTimeout, copy: copyTimeout}
}

func (t *timeoutTarget) Name() string { return t.inner.Name() }

func (t *timeoutTarget) IsLocal() bool { return t.inner.IsLocal() }

func (t *timeoutTarget) Run(ctx context.Context, command string) (Result, error) {
	if t.run > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.run)
		defer cancel()
	}
	return t.inner.Run(ctx, command)
}

func (t *timeoutTarget) Copy(ctx context.Context, localPath, remotePath string) error {
	if t.copy > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.copy)
		defer cancel()
	}
	return t.inner.Copy(ctx, localPath, remotePath)
}

func (t *timeoutTarget) Close() error { return t.inner.Close() }
