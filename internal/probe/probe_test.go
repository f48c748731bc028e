package probe

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/target"
)

// fakeChecker returns a canned liveness answer.
type fakeChecker struct {
	healthy bool
	err     error
}

func (f fakeChecker) CheckRunning(context.Context, string) (bool, error) {
	return f.healthy, f.err
}

func testConfig(t *testing.T, webPort int) *config.Config {
	t.Helper()
	return &config.Config{
		ClusterName: "test",
		Install: config.InstallConfig{
			ParentDir: t.TempDir(),
			DirName:   "flow-server",
		},
		Ports: config.PortsConfig{Web: webPort},
	}
}

func installFixture(t *testing.T, cfg *config.Config, relPaths ...string) string {
	t.Helper()
	root := cfg.Install.Root()
	for _, rel := range relPaths {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}
	return root
}

func completeFixture(t *testing.T, cfg *config.Config) string {
	t.Helper()
	return installFixture(t, cfg,
		config.EntrypointPath,
		config.PropertiesFilePath,
		config.BootstrapFilePath,
	)
}

func TestProbeAbsent(t *testing.T) {
	cfg := testConfig(t, 59999)
	p := New(cfg, fakeChecker{})

	report, err := p.Probe(context.Background(), target.NewLocalTarget("localhost"), config.NodeSpec{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, Absent, report.State)
	assert.False(t, report.LogsOnly)
}

func TestProbeLogsOnlyDirectoryIsAbsent(t *testing.T) {
	cfg := testConfig(t, 59999)
	root := cfg.Install.Root()
	require.NoError(t, os.MkdirAll(filepath.Join(root, config.LogsDirPath), 0o755))

	p := New(cfg, fakeChecker{})
	report, err := p.Probe(context.Background(), target.NewLocalTarget("localhost"), config.NodeSpec{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, Absent, report.State)
	assert.True(t, report.LogsOnly)
}

func TestProbePartialMissingExecutable(t *testing.T) {
	cfg := testConfig(t, 59999)
	installFixture(t, cfg, config.PropertiesFilePath, config.BootstrapFilePath)

	p := New(cfg, fakeChecker{})
	report, err := p.Probe(context.Background(), target.NewLocalTarget("localhost"), config.NodeSpec{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, Partial, report.State)
	require.Len(t, report.Missing, 1)
	assert.Contains(t, report.Missing[0], config.EntrypointPath)
}

func TestProbeCompleteStopped(t *testing.T) {
	cfg := testConfig(t, 59999)
	completeFixture(t, cfg)

	p := New(cfg, fakeChecker{})
	report, err := p.Probe(context.Background(), target.NewLocalTarget("localhost"), config.NodeSpec{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, CompleteStopped, report.State)
}

func TestProbeCompleteRunning(t *testing.T) {
	// Bind a real port so the listening check sees a live process.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	cfg := testConfig(t, port)
	completeFixture(t, cfg)

	p := New(cfg, fakeChecker{healthy: true})
	report, err := p.Probe(context.Background(), target.NewLocalTarget("localhost"), config.NodeSpec{ID: 1, Address: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, CompleteRunning, report.State)
}

func TestProbeListeningButUnhealthyIsStopped(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	port := l.Addr().(*net.TCPAddr).Port
	cfg := testConfig(t, port)
	completeFixture(t, cfg)

	p := New(cfg, fakeChecker{healthy: false})
	report, err := p.Probe(context.Background(), target.NewLocalTarget("localhost"), config.NodeSpec{ID: 1, Address: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, CompleteStopped, report.State)
}

func TestLogsOnly(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		want    bool
	}{
		{"only logs", "logs\n", true},
		{"logs plus conf", "logs\nconf\n", false},
		{"empty listing", "", false},
		{"entry name with spaces", "my old backup\n", false},
		{"logs plus spaced entry", "logs\nflow backup copy\n", false},
		{"trailing whitespace", "  logs  \n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logsOnly(tt.listing))
		})
	}
}
