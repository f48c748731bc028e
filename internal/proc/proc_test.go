package proc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okatz/provisor/internal/target"
)

func TestParseListenerPIDs(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want []int
	}{
		{
			name: "single listener",
			out:  `LISTEN 0 128 *:8443 *:* users:(("java",pid=4711,fd=123))`,
			want: []int{4711},
		},
		{
			name: "multiple processes one line",
			out:  `LISTEN 0 128 *:8443 *:* users:(("java",pid=4711,fd=123),("java",pid=4712,fd=124))`,
			want: []int{4711, 4712},
		},
		{
			name: "duplicate pids deduplicated",
			out: `LISTEN 0 128 0.0.0.0:8443 0.0.0.0:* users:(("java",pid=99,fd=5))
LISTEN 0 128 [::]:8443 [::]:* users:(("java",pid=99,fd=6))`,
			want: []int{99},
		},
		{
			name: "no process info",
			out:  `LISTEN 0 128 *:8443 *:*`,
			want: nil,
		},
		{
			name: "empty",
			out:  "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseListenerPIDs(tt.out))
		})
	}
}

// portTarget scripts ss output per call and accepts every kill.
type portTarget struct {
	listings []string
	calls    int
	signals  []string
}

func (p *portTarget) Name() string  { return "flow-test" }
func (p *portTarget) IsLocal() bool { return false }
func (p *portTarget) Close() error  { return nil }

func (p *portTarget) Run(_ context.Context, cmd string) (target.Result, error) {
	if strings.Contains(cmd, "kill -") {
		p.signals = append(p.signals, cmd)
		return target.Result{}, nil
	}
	listing := ""
	if p.calls < len(p.listings) {
		listing = p.listings[p.calls]
	}
	p.calls++
	return target.Result{Stdout: listing}, nil
}

func (p *portTarget) Copy(context.Context, string, string) error { return nil }

const boundListing = `LISTEN 0 128 *:8443 *:* users:(("java",pid=4711,fd=3))`

func TestFreePortGracefulTerminationSucceeds(t *testing.T) {
	tgt := &portTarget{listings: []string{boundListing, ""}}

	err := FreePort(context.Background(), tgt, 8443, time.Second)
	require.NoError(t, err)
	require.Len(t, tgt.signals, 1)
	assert.Contains(t, tgt.signals[0], "kill -TERM 4711")
}

func TestFreePortCanceledContextReturnsPromptly(t *testing.T) {
	// Every listing reports the same stubborn listener, so with zero grace
	// the flow reaches SIGKILL and its settle wait.
	tgt := &portTarget{listings: []string{boundListing, boundListing, boundListing}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := FreePort(ctx, tgt, 8443, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
