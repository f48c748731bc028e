package target

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadlineTarget records whether each call arrived with a context deadline.
type deadlineTarget struct {
	runHadDeadline  bool
	copyHadDeadline bool
	runErr          error
}

func (d *deadlineTarget) Name() string  { return "deadline-host" }
func (d *deadlineTarget) IsLocal() bool { return true }

func (d *deadlineTarget) Run(ctx context.Context, _ string) (Result, error) {
	_, d.runHadDeadline = ctx.Deadline()
	return Result{}, d.runErr
}

func (d *deadlineTarget) Copy(ctx context.Context, _, _ string) error {
	_, d.copyHadDeadline = ctx.Deadline()
	return nil
}

func (d *deadlineTarget) Close() error { return nil }

func TestWithTimeoutsBoundsRunAndCopy(t *testing.T) {
	inner := &deadlineTarget{}
	tgt := WithTimeouts(inner, time.Minute, time.Minute)

	_, err := tgt.Run(context.Background(), "true")
	require.NoError(t, err)
	require.NoError(t, tgt.Copy(context.Background(), "/src", "/dst"))

	assert.True(t, inner.runHadDeadline)
	assert.True(t, inner.copyHadDeadline)
}

func TestWithTimeoutsZeroLeavesOperationUnbounded(t *testing.T) {
	inner := &deadlineTarget{}
	tgt := WithTimeouts(inner, 0, time.Minute)

	_, err := tgt.Run(context.Background(), "true")
	require.NoError(t, err)
	assert.False(t, inner.runHadDeadline)

	require.NoError(t, tgt.Copy(context.Background(), "/src", "/dst"))
	assert.True(t, inner.copyHadDeadline)
}

func TestWithTimeoutsBothUnsetReturnsSameTarget(t *testing.T) {
	inner := &deadlineTarget{}
	assert.Same(t, Target(inner), WithTimeouts(inner, 0, 0))
}

// stalledTarget simulates a hung session: Run blocks until the context ends.
type stalledTarget struct {
	deadlineTarget
}

func (s *stalledTarget) Run(ctx context.Context, _ string) (Result, error) {
	<-ctx.Done()
	return Result{}, ctx.Err()
}

func TestWithTimeoutsExpiresStalledCommand(t *testing.T) {
	tgt := WithTimeouts(&stalledTarget{}, 20*time.Millisecond, 0)

	start := time.Now()
	_, err := tgt.Run(context.Background(), "sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWithTimeoutsDelegatesIdentity(t *testing.T) {
	inner := &deadlineTarget{}
	tgt := WithTimeouts(inner, time.Second, time.Second)

	assert.Equal(t, "deadline-host", tgt.Name())
	assert.True(t, tgt.IsLocal())
	assert.NoError(t, tgt.Close())
}
