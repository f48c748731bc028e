package install

import (
	"context"
	"fmt"
	"path"

	"github.com/okatz/provisor/internal/proc"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/target"
)

// teardown fully removes a partial or force-replaced installation. Ordering
// matters: processes and services are stopped before any file is deleted,
// and each destructive step is verified before the next one runs. A live
// process must not hold deleted files open, and a dying process must not
// recreate a directory we are about to extract into.
func (i *Installer) teardown(ctx context.Context, tgt target.Target) error {
	if err := i.stopService(ctx, tgt); err != nil {
		return err
	}

	for _, port := range []int{i.cfg.Ports.Web, i.cfg.Ports.Cluster} {
		if err := i.freePortVerified(ctx, tgt, port); err != nil {
			return err
		}
	}

	if err := i.removeUnit(ctx, tgt); err != nil {
		return err
	}

	root := i.cfg.Install.Root()
	paths := append([]string{root}, NewArtifact(root).Repositories...)
	for _, p := range paths {
		if err := i.removeVerified(ctx, tgt, p); err != nil {
			return err
		}
	}

	return nil
}

// stopService stops the service-manager unit if one is active. Best effort:
// on a host that never had the unit this is a no-op.
func (i *Installer) stopService(ctx context.Context, tgt target.Target) error {
	unit := i.cfg.Service.UnitName
	cmd := fmt.Sprintf("command -v systemctl >/dev/null 2>&1 && systemctl stop %s 2>/dev/null || true", unit)
	if _, err := tgt.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to stop service unit: %w", err)
	}
	return nil
}

// freePortVerified frees a port and retries the same destructive step once
// when verification fails.
func (i *Installer) freePortVerified(ctx context.Context, tgt target.Target, port int) error {
	err := proc.FreePort(ctx, tgt, port, i.timeouts.StopGrace)
	if err == nil {
		return nil
	}
	if !provisioning.IsVerification(err) {
		return err
	}
	i.observer.Printf("port %d still bound after kill, retrying once", port)
	return proc.FreePort(ctx, tgt, port, i.timeouts.StopGrace)
}

// removeUnit deletes the service-manager unit definition if present.
func (i *Installer) removeUnit(ctx context.Context, tgt target.Target) error {
	unitFile := fmt.Sprintf("/etc/systemd/system/%s.service", i.cfg.Service.UnitName)
	cmd := fmt.Sprintf("rm -f %s && { command -v systemctl >/dev/null 2>&1 && systemctl daemon-reload || true; }", unitFile)
	if _, err := target.Output(ctx, tgt, cmd); err != nil {
		return fmt.Errorf("failed to remove service unit: %w", err)
	}
	return nil
}

// removeVerified forcibly removes a path and confirms it is gone, retrying
// the removal once when the check fails.
func (i *Installer) removeVerified(ctx context.Context, tgt target.Target, p string) error {
	for attempt := 0; attempt < 2; attempt++ {
		if _, err := target.Output(ctx, tgt, fmt.Sprintf("rm -rf %s", p)); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
		gone, err := target.Succeeds(ctx, tgt, fmt.Sprintf("test ! -e %s", p))
		if err != nil {
			return err
		}
		if gone {
			return nil
		}
		i.observer.Printf("%s still present after removal, retrying once", p)
	}
	return &provisioning.VerificationError{Check: fmt.Sprintf("%s still present after removal", p)}
}

// preserveLogs moves a pre-existing logs directory aside before teardown so
// it survives reinstallation. Returns empty when the node has no logs.
func (i *Installer) preserveLogs(ctx context.Context, tgt target.Target) (string, error) {
	logsDir := path.Join(i.cfg.Install.Root(), "logs")
	present, err := target.Succeeds(ctx, tgt, fmt.Sprintf("test -d %s", logsDir))
	if err != nil {
		return "", err
	}
	if !present {
		return "", nil
	}

	keep := path.Join("/tmp", fmt.Sprintf("provisor-logs-%s", i.runID))
	if _, err := target.Output(ctx, tgt, fmt.Sprintf("mv %s %s", logsDir, keep)); err != nil {
		return "", fmt.Errorf("failed to preserve logs directory: %w", err)
	}
	return keep, nil
}

// restoreLogs puts a preserved logs directory back under the new install
// root, merging with any logs directory the archive shipped.
func (i *Installer) restoreLogs(ctx context.Context, tgt target.Target, keep string) error {
	logsDir := path.Join(i.cfg.Install.Root(), "logs")
	cmd := fmt.Sprintf("mkdir -p %s && cp -r %s/. %s/ && rm -rf %s", logsDir, keep, logsDir, keep)
	if _, err := target.Output(ctx, tgt, cmd); err != nil {
		return fmt.Errorf("failed to restore logs directory: %w", err)
	}
	return nil
}
