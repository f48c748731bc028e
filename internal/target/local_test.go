package target

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTargetRun(t *testing.T) {
	tgt := NewLocalTarget("localhost")
	defer tgt.Close()

	res, err := tgt.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
}

func TestLocalTargetRunNonZeroExit(t *testing.T) {
	tgt := NewLocalTarget("localhost")

	res, err := tgt.Run(context.Background(), "exit 3")
	require.NoError(t, err, "non-zero exit is not a transport error")
	assert.Equal(t, 3, res.ExitCode)
}

func TestLocalTargetRunStderr(t *testing.T) {
	tgt := NewLocalTarget("localhost")

	res, err := tgt.Run(context.Background(), "echo oops >&2; exit 1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestLocalTargetCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	tgt := NewLocalTarget("localhost")
	dst := filepath.Join(dir, "nested", "dst.txt")
	require.NoError(t, tgt.Copy(context.Background(), src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestOutputHelper(t *testing.T) {
	tgt := NewLocalTarget("localhost")

	out, err := Output(context.Background(), tgt, "echo '  spaced  '")
	require.NoError(t, err)
	assert.Equal(t, "spaced", out)

	_, err = Output(context.Background(), tgt, "echo broken >&2; exit 2")
	assert.ErrorContains(t, err, "exited 2")
	assert.ErrorContains(t, err, "broken")
}

func TestSucceedsHelper(t *testing.T) {
	tgt := NewLocalTarget("localhost")

	ok, err := Succeeds(context.Background(), tgt, "true")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Succeeds(context.Background(), tgt, "false")
	require.NoError(t, err)
	assert.False(t, ok)
}
