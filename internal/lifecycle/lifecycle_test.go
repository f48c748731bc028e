package lifecycle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/install"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/target"
)

// fakeTarget scripts command results and records everything that ran.
type fakeTarget struct {
	commands []string
	copies   map[string]string // remote path -> local path
	respond  func(cmd string) target.Result
}

func newFakeTarget(respond func(cmd string) target.Result) *fakeTarget {
	return &fakeTarget{
		copies:  make(map[string]string),
		respond: respond,
	}
}

func (f *fakeTarget) Name() string  { return "flow-test" }
func (f *fakeTarget) IsLocal() bool { return false }
func (f *fakeTarget) Close() error  { return nil }

func (f *fakeTarget) Run(_ context.Context, cmd string) (target.Result, error) {
	f.commands = append(f.commands, cmd)
	if f.respond != nil {
		return f.respond(cmd), nil
	}
	return target.Result{}, nil
}

func (f *fakeTarget) Copy(_ context.Context, localPath, remotePath string) error {
	f.copies[remotePath] = localPath
	return nil
}

func (f *fakeTarget) ranMatching(substr string) int {
	for i, cmd := range f.commands {
		if strings.Contains(cmd, substr) {
			return i
		}
	}
	return -1
}

// fakeChecker returns scripted liveness answers in order.
type fakeChecker struct {
	answers []bool
	calls   int
}

func (f *fakeChecker) CheckRunning(context.Context, string) (bool, error) {
	if f.calls < len(f.answers) {
		answer := f.answers[f.calls]
		f.calls++
		return answer, nil
	}
	return false, nil
}

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		Command:           time.Minute,
		Copy:              time.Minute,
		StartPollAttempts: 3,
		StartPollDelay:    time.Millisecond,
		StopGrace:         10 * time.Millisecond,
		RetryMaxAttempts:  2,
		RetryDelay:        time.Millisecond,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		ClusterName: "analytics",
		Install: config.InstallConfig{
			ParentDir: "/opt/flow",
			DirName:   "flow-server",
		},
		Service: config.ServiceConfig{
			UnitName: "flow-server",
			User:     "flowsvc",
			Group:    "flowsvc",
		},
		Ports: config.PortsConfig{Web: 8443, Cluster: 11443},
		Runtime: config.RuntimeConfig{
			MajorVersion: 11,
			SearchDirs:   []string{"/usr/lib/jvm"},
		},
	}
}

// happyResponder emulates a healthy node: runtime present, account present,
// ports free, unit active.
func happyResponder(cmd string) target.Result {
	switch {
	case strings.Contains(cmd, "bin/java"):
		return target.Result{} // first well-known location wins
	case strings.Contains(cmd, "id -u"):
		return target.Result{}
	case strings.Contains(cmd, "ss -tlnp"):
		return target.Result{} // nothing listening
	case strings.Contains(cmd, "is-active"):
		return target.Result{}
	default:
		return target.Result{}
	}
}

func TestActivateHappyPath(t *testing.T) {
	cfg := testConfig()
	tgt := newFakeTarget(happyResponder)
	checker := &fakeChecker{answers: []bool{true}}

	c := New(cfg, testTimeouts(), provisioning.NopObserver{}, checker)
	art := install.NewArtifact(cfg.Install.Root())

	err := c.Activate(context.Background(), tgt, config.NodeSpec{ID: 1, Address: "10.0.0.11"}, art)
	require.NoError(t, err)

	// The unit file landed on the node.
	assert.Contains(t, tgt.copies, "/etc/systemd/system/flow-server.service")

	// Ordering: ownership before unit install, port check before start,
	// start before liveness poll.
	chown := tgt.ranMatching("chown -R flowsvc:flowsvc /opt/flow/flow-server")
	reload := tgt.ranMatching("daemon-reload")
	portCheck := tgt.ranMatching("ss -tlnp")
	start := tgt.ranMatching("systemctl enable --now flow-server")
	poll := tgt.ranMatching("is-active")

	require.GreaterOrEqual(t, chown, 0)
	require.GreaterOrEqual(t, reload, 0)
	require.GreaterOrEqual(t, portCheck, 0)
	require.GreaterOrEqual(t, start, 0)
	require.GreaterOrEqual(t, poll, 0)

	assert.Less(t, chown, reload)
	assert.Less(t, reload, start)
	assert.Less(t, portCheck, start)
	assert.Less(t, start, poll)
}

func TestActivateStartTimeout(t *testing.T) {
	cfg := testConfig()
	tgt := newFakeTarget(func(cmd string) target.Result {
		if strings.Contains(cmd, "is-active") {
			return target.Result{ExitCode: 3} // unit never becomes active
		}
		return happyResponder(cmd)
	})

	c := New(cfg, testTimeouts(), provisioning.NopObserver{}, &fakeChecker{})
	art := install.NewArtifact(cfg.Install.Root())

	err := c.Activate(context.Background(), tgt, config.NodeSpec{ID: 1, Address: "10.0.0.11"}, art)
	require.Error(t, err)

	var timeoutErr *provisioning.StartTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3, timeoutErr.Attempts)
}

func TestActivateActiveButUnhealthyTimesOut(t *testing.T) {
	cfg := testConfig()
	tgt := newFakeTarget(happyResponder)
	checker := &fakeChecker{answers: []bool{false, false, false}}

	c := New(cfg, testTimeouts(), provisioning.NopObserver{}, checker)
	art := install.NewArtifact(cfg.Install.Root())

	err := c.Activate(context.Background(), tgt, config.NodeSpec{ID: 1, Address: "10.0.0.11"}, art)

	var timeoutErr *provisioning.StartTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 3, checker.calls, "unit-active alone is not Running; health must pass too")
}

func TestActivateTimeoutSkipsDelayAfterFinalAttempt(t *testing.T) {
	cfg := testConfig()
	tgt := newFakeTarget(happyResponder)
	timeouts := testTimeouts()
	timeouts.StartPollAttempts = 2
	timeouts.StartPollDelay = 200 * time.Millisecond

	c := New(cfg, timeouts, provisioning.NopObserver{}, &fakeChecker{})
	art := install.NewArtifact(cfg.Install.Root())

	start := time.Now()
	err := c.Activate(context.Background(), tgt, config.NodeSpec{ID: 1, Address: "10.0.0.11"}, art)
	elapsed := time.Since(start)

	var timeoutErr *provisioning.StartTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	// Two attempts are separated by one delay; none follows the verdict.
	assert.Less(t, elapsed, 2*timeouts.StartPollDelay)
}

func TestActivateFreesConflictingListener(t *testing.T) {
	cfg := testConfig()
	killed := false
	tgt := newFakeTarget(func(cmd string) target.Result {
		switch {
		case strings.Contains(cmd, "ss -tlnp") && strings.Contains(cmd, "8443") && !killed:
			return target.Result{Stdout: `LISTEN 0 128 *:8443 *:* users:(("java",pid=4711,fd=3))`}
		case strings.Contains(cmd, "kill -TERM"):
			killed = true
			return target.Result{}
		default:
			return happyResponder(cmd)
		}
	})

	c := New(cfg, testTimeouts(), provisioning.NopObserver{}, &fakeChecker{answers: []bool{true}})
	art := install.NewArtifact(cfg.Install.Root())

	err := c.Activate(context.Background(), tgt, config.NodeSpec{ID: 1, Address: "10.0.0.11"}, art)
	require.NoError(t, err)

	termIdx := tgt.ranMatching("kill -TERM 4711")
	startIdx := tgt.ranMatching("systemctl enable --now")
	require.GreaterOrEqual(t, termIdx, 0, "stale listener must be signalled")
	assert.Less(t, termIdx, startIdx, "port freed before the service starts")
}

func TestActivateRunAsRootSkipsAccountCreation(t *testing.T) {
	cfg := testConfig()
	cfg.Service.RunAsRoot = true
	tgt := newFakeTarget(happyResponder)

	c := New(cfg, testTimeouts(), provisioning.NopObserver{}, &fakeChecker{answers: []bool{true}})
	art := install.NewArtifact(cfg.Install.Root())

	err := c.Activate(context.Background(), tgt, config.NodeSpec{ID: 1, Address: "10.0.0.11"}, art)
	require.NoError(t, err)

	assert.Equal(t, -1, tgt.ranMatching("useradd"))
	assert.GreaterOrEqual(t, tgt.ranMatching("chown -R root:root"), 0)
}
