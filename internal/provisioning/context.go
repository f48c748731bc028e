// Package provisioning provides the shared types threaded through every
// pipeline stage: the run context, the structured observer, the per-node
// outcome model, and the error taxonomy.
//
// The pipeline stages themselves live in focused packages:
//   - probe/ for node state classification
//   - install/ for idempotent artifact installation
//   - render/ for per-node configuration
//   - lifecycle/ for the service unit, start, and liveness polling
//   - orchestrate/ for the per-node dispatch loop and run report
package provisioning

import (
	"context"

	"github.com/google/uuid"

	"github.com/okatz/provisor/internal/config"
)

// Context wraps all state shared by provisioning stages for one run. It is
// built once per invocation and treated as immutable by every stage,
// replacing any ambient global state with explicit injection.
type Context struct {
	context.Context

	Config   *config.Config
	Topology *config.Topology
	Observer Observer
	Timeouts *config.Timeouts

	// RunID tags the persistent log and temporary files of this invocation.
	RunID string

	// ConnectString is the coordination-service membership string, computed
	// from the complete topology before any node is configured.
	ConnectString string
}

// NewRunID returns a short random identifier for one invocation. The id is
// generated before the context so the observer's log file can carry it.
func NewRunID() string {
	return uuid.NewString()[:8]
}

// NewContext creates a provisioning context for one run. The membership
// connect string is derived from the full topology up front so every node
// receives an identical, complete value.
func NewContext(ctx context.Context, cfg *config.Config, topo *config.Topology, obs Observer, runID string) *Context {
	return &Context{
		Context:       ctx,
		Config:        cfg,
		Topology:      topo,
		Observer:      obs,
		Timeouts:      config.LoadTimeouts(),
		RunID:         runID,
		ConnectString: topo.ConnectString(cfg.Ports.Coordination),
	}
}
