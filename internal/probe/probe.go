// Package probe classifies a target node's installation state. The state is
// computed fresh at the start of every provisioning pass and never cached:
// tolerating stale state is the whole point of the pipeline.
package probe

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/health"
	"github.com/okatz/provisor/internal/target"
)

// State classifies what is on a node.
type State string

const (
	// Absent means no installation directory exists.
	Absent State = "absent"
	// Partial means the directory exists but critical files are missing.
	Partial State = "partial"
	// CompleteStopped means all critical files are present but the service
	// is not running.
	CompleteStopped State = "complete-stopped"
	// CompleteRunning means the service is active and the liveness probe
	// passes.
	CompleteRunning State = "complete-running"
)

// Report is the result of probing one node.
type Report struct {
	State State

	// LogsOnly is set when the install root contained nothing but a logs
	// directory. The installer treats such a root as Absent but preserves
	// the logs across reinstallation.
	LogsOnly bool

	// Missing lists the critical paths absent from a Partial install.
	Missing []string
}

// Prober inspects a node's filesystem and process state through its
// execution target.
type Prober struct {
	cfg     *config.Config
	checker health.Checker
}

// New creates a prober.
func New(cfg *config.Config, checker health.Checker) *Prober {
	return &Prober{cfg: cfg, checker: checker}
}

// criticalPaths are the files whose presence distinguishes a complete
// install from a partial one.
func criticalPaths(root string) []string {
	return []string{
		path.Join(root, config.EntrypointPath),
		path.Join(root, config.PropertiesFilePath),
		path.Join(root, config.BootstrapFilePath),
	}
}

// Probe classifies the node's current state.
func (p *Prober) Probe(ctx context.Context, tgt target.Target, node config.NodeSpec) (Report, error) {
	root := p.cfg.Install.Root()

	exists, err := target.Succeeds(ctx, tgt, fmt.Sprintf("test -d %s", root))
	if err != nil {
		return Report{}, fmt.Errorf("failed to check install root on %s: %w", tgt.Name(), err)
	}
	if !exists {
		return Report{State: Absent}, nil
	}

	entries, err := target.Output(ctx, tgt, fmt.Sprintf("ls -A %s", root))
	if err != nil {
		return Report{}, fmt.Errorf("failed to list install root on %s: %w", tgt.Name(), err)
	}
	if logsOnly(entries) {
		return Report{State: Absent, LogsOnly: true}, nil
	}

	var missing []string
	for _, critical := range criticalPaths(root) {
		present, err := target.Succeeds(ctx, tgt, fmt.Sprintf("test -f %s", critical))
		if err != nil {
			return Report{}, fmt.Errorf("failed to check %s on %s: %w", critical, tgt.Name(), err)
		}
		if !present {
			missing = append(missing, critical)
		}
	}
	if len(missing) > 0 {
		return Report{State: Partial, Missing: missing}, nil
	}

	listening, err := PortListening(ctx, tgt, p.cfg.Ports.Web)
	if err != nil {
		return Report{}, fmt.Errorf("failed to check service port on %s: %w", tgt.Name(), err)
	}
	if listening {
		healthy, err := p.checker.CheckRunning(ctx, node.Address)
		if err != nil {
			return Report{}, fmt.Errorf("liveness probe against %s failed: %w", node.Address, err)
		}
		if healthy {
			return Report{State: CompleteRunning}, nil
		}
	}

	return Report{State: CompleteStopped}, nil
}

// logsOnly reports whether the directory listing contains exactly the logs
// subdirectory left behind by a previous teardown. The listing is split per
// line, not per word, so entry names containing spaces stay intact.
func logsOnly(listing string) bool {
	var entries []string
	for _, line := range strings.Split(listing, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			entries = append(entries, line)
		}
	}
	return len(entries) == 1 && entries[0] == config.LogsDirPath
}

// PortListening reports whether any process on the node is listening on the
// given TCP port.
func PortListening(ctx context.Context, tgt target.Target, port int) (bool, error) {
	cmd := fmt.Sprintf("ss -tln 2>/dev/null | grep -Eq '[:.]%d([[:space:]]|$)'", port)
	return target.Succeeds(ctx, tgt, cmd)
}
