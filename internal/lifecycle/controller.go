// Package lifecycle brings an installed, configured artifact to a running
// service: runtime resolution, service account, permissions, unit
// installation, port conflict recovery, start, and bounded liveness polling.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/health"
	"github.com/okatz/provisor/internal/install"
	"github.com/okatz/provisor/internal/proc"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/target"
)

// Controller activates the service on one node at a time.
type Controller struct {
	cfg      *config.Config
	timeouts *config.Timeouts
	observer provisioning.Observer
	checker  health.Checker
}

// New creates a lifecycle controller.
func New(cfg *config.Config, timeouts *config.Timeouts, obs provisioning.Observer, checker health.Checker) *Controller {
	return &Controller{
		cfg:      cfg,
		timeouts: timeouts,
		observer: obs,
		checker:  checker,
	}
}

// Activate drives the node through runtime resolution, account and
// permission setup, unit installation, port freeing, start, and liveness
// polling. Any step before the start failing is fatal for the node; a start
// that never reports healthy yields a StartTimeoutError without affecting
// sibling nodes.
func (c *Controller) Activate(ctx context.Context, tgt target.Target, node config.NodeSpec, art install.Artifact) error {
	obs := c.observer.WithFields(map[string]string{"host": tgt.Name()})

	runtimePath, err := ResolveRuntime(ctx, tgt, c.cfg.Runtime)
	if err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	obs.Printf("resolved runtime at %s", runtimePath)

	if err := EnsureServiceAccount(ctx, tgt, c.cfg.Service); err != nil {
		return fmt.Errorf("service account: %w", err)
	}

	if err := c.applyPermissions(ctx, tgt, art); err != nil {
		return fmt.Errorf("permissions: %w", err)
	}

	def := UnitDefinition{
		UnitName:           c.cfg.Service.UnitName,
		Description:        fmt.Sprintf("%s flow server", c.cfg.ClusterName),
		InstallRoot:        art.Root,
		Entrypoint:         art.Entrypoint,
		User:               c.runUser(),
		Group:              c.runGroup(),
		RuntimePath:        runtimePath,
		RestartSec:         10,
		StartLimitInterval: 600,
		StartLimitBurst:    5,
	}
	if err := WriteUnit(ctx, tgt, def); err != nil {
		return fmt.Errorf("unit: %w", err)
	}

	// A stale prior instance must never block startup.
	for _, port := range []int{c.cfg.Ports.Web, c.cfg.Ports.Cluster} {
		if err := proc.FreePort(ctx, tgt, port, c.timeouts.StopGrace); err != nil {
			return fmt.Errorf("port conflict: %w", err)
		}
	}

	if _, err := target.Output(ctx, tgt, fmt.Sprintf("systemctl enable --now %s", def.UnitName)); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	return c.awaitRunning(ctx, tgt, node, def.UnitName)
}

// awaitRunning polls until the service manager reports the unit active AND
// the application-level status endpoint reports healthy, up to the
// configured retry budget with a fixed inter-attempt delay.
func (c *Controller) awaitRunning(ctx context.Context, tgt target.Target, node config.NodeSpec, unit string) error {
	obs := c.observer.WithFields(map[string]string{"host": tgt.Name()})

	for attempt := 1; attempt <= c.timeouts.StartPollAttempts; attempt++ {
		active, err := target.Succeeds(ctx, tgt, fmt.Sprintf("systemctl is-active --quiet %s", unit))
		if err != nil {
			return fmt.Errorf("liveness poll: %w", err)
		}

		if active {
			healthy, err := c.checker.CheckRunning(ctx, node.Address)
			if err != nil {
				return fmt.Errorf("liveness poll: %w", err)
			}
			if healthy {
				obs.Printf("service reported running after %d attempt(s)", attempt)
				return nil
			}
		}

		obs.Printf("waiting for service to report running (%d/%d)", attempt, c.timeouts.StartPollAttempts)

		// No delay after the final attempt; the verdict is already in.
		if attempt == c.timeouts.StartPollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.timeouts.StartPollDelay):
		}
	}

	return &provisioning.StartTimeoutError{Attempts: c.timeouts.StartPollAttempts}
}

// applyPermissions sets ownership across the artifact tree and restricts
// config and security material to the service account.
func (c *Controller) applyPermissions(ctx context.Context, tgt target.Target, art install.Artifact) error {
	owner := fmt.Sprintf("%s:%s", c.runUser(), c.runGroup())

	cmds := []string{
		fmt.Sprintf("chown -R %s %s", owner, art.Root),
		fmt.Sprintf("chmod 755 %s", art.Root),
		fmt.Sprintf("chmod -R 750 %s", art.ConfDir),
		fmt.Sprintf("chmod -R 700 %s", art.SecurityDir),
	}
	for _, repo := range art.Repositories {
		cmds = append(cmds, fmt.Sprintf("chown -R %s %s", owner, repo))
	}

	for _, cmd := range cmds {
		if _, err := target.Output(ctx, tgt, cmd); err != nil {
			return &provisioning.PermissionError{Op: cmd, Err: err}
		}
	}
	return nil
}

func (c *Controller) runUser() string {
	if c.cfg.Service.RunAsRoot {
		return "root"
	}
	return c.cfg.Service.User
}

func (c *Controller) runGroup() string {
	if c.cfg.Service.RunAsRoot {
		return "root"
	}
	return c.cfg.Service.Group
}
