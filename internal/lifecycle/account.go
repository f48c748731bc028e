package lifecycle

import (
	"context"
	"fmt"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/target"
)

// EnsureServiceAccount creates the dedicated low-privilege service account
// and group unless the operator explicitly opted into running privileged.
func EnsureServiceAccount(ctx context.Context, tgt target.Target, svc config.ServiceConfig) error {
	if svc.RunAsRoot {
		return nil
	}

	exists, err := target.Succeeds(ctx, tgt, fmt.Sprintf("id -u %s >/dev/null 2>&1", svc.User))
	if err != nil {
		return fmt.Errorf("failed to check service account: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := target.Output(ctx, tgt, fmt.Sprintf("groupadd -f %s", svc.Group)); err != nil {
		return &provisioning.PermissionError{Op: "group creation", Err: err}
	}

	cmd := fmt.Sprintf("useradd -r -g %s -s /usr/sbin/nologin -M %s", svc.Group, svc.User)
	if _, err := target.Output(ctx, tgt, cmd); err != nil {
		return &provisioning.PermissionError{Op: "service account creation", Err: err}
	}

	return nil
}
