package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/target"
)

// wellKnownRuntimePaths returns the ordered candidate install locations for
// the required runtime major version.
func wellKnownRuntimePaths(major int) []string {
	return []string{
		fmt.Sprintf("/usr/lib/jvm/java-%d-openjdk-amd64", major),
		fmt.Sprintf("/usr/lib/jvm/java-%d-openjdk", major),
		fmt.Sprintf("/opt/java/jdk-%d", major),
	}
}

// ResolveRuntime locates the managed runtime on the node, installing it when
// absent. Resolution order: well-known locations, then a directory search
// under the configured search roots, then installation followed by one more
// resolution pass.
func ResolveRuntime(ctx context.Context, tgt target.Target, cfg config.RuntimeConfig) (string, error) {
	if home, err := findRuntime(ctx, tgt, cfg); err != nil {
		return "", err
	} else if home != "" {
		return home, nil
	}

	installCmd := cfg.InstallCmd
	if installCmd == "" {
		installCmd = fmt.Sprintf("apt-get install -y openjdk-%d-jre-headless", cfg.MajorVersion)
	}
	if _, err := target.Output(ctx, tgt, installCmd); err != nil {
		return "", fmt.Errorf("runtime installation failed: %w", err)
	}

	home, err := findRuntime(ctx, tgt, cfg)
	if err != nil {
		return "", err
	}
	if home == "" {
		return "", fmt.Errorf("runtime major version %d not found after installation", cfg.MajorVersion)
	}
	return home, nil
}

func findRuntime(ctx context.Context, tgt target.Target, cfg config.RuntimeConfig) (string, error) {
	for _, candidate := range wellKnownRuntimePaths(cfg.MajorVersion) {
		ok, err := target.Succeeds(ctx, tgt, fmt.Sprintf("test -x %s/bin/java", candidate))
		if err != nil {
			return "", fmt.Errorf("failed to probe runtime at %s: %w", candidate, err)
		}
		if ok {
			return candidate, nil
		}
	}

	// Fall back to a bounded directory search.
	for _, dir := range cfg.SearchDirs {
		cmd := fmt.Sprintf(
			"find %s -maxdepth 1 -type d -name '*%d*' 2>/dev/null | head -n 1",
			dir, cfg.MajorVersion)
		out, err := target.Output(ctx, tgt, cmd)
		if err != nil {
			continue
		}
		out = strings.TrimSpace(out)
		if out == "" {
			continue
		}
		ok, err := target.Succeeds(ctx, tgt, fmt.Sprintf("test -x %s/bin/java", out))
		if err != nil {
			return "", err
		}
		if ok {
			return out, nil
		}
	}

	return "", nil
}
