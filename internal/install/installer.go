// Package install drives a node from its probed state to "artifact
// installed, directories correct" with the minimum necessary destructive
// actions. A partial install is never repaired in place, only torn down and
// replaced; a complete install is reused unless the operator forces a
// reinstall.
package install

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/okatz/provisor/internal/artifact"
	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/probe"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/retry"
	"github.com/okatz/provisor/internal/target"
)

// Installer performs idempotent artifact installation on one node at a time.
type Installer struct {
	cfg      *config.Config
	timeouts *config.Timeouts
	observer provisioning.Observer
	source   artifact.Source
	runID    string
}

// New creates an installer.
func New(cfg *config.Config, timeouts *config.Timeouts, obs provisioning.Observer, source artifact.Source, runID string) *Installer {
	return &Installer{
		cfg:      cfg,
		timeouts: timeouts,
		observer: obs,
		source:   source,
		runID:    runID,
	}
}

// Install drives the node to an installed artifact based on its probed
// state. The returned Artifact describes the resulting layout; it is valid
// even on the skip path so the renderer can re-run against existing files.
func (i *Installer) Install(ctx context.Context, tgt target.Target, node config.NodeSpec, report probe.Report) (Artifact, error) {
	root := i.cfg.Install.Root()
	art := NewArtifact(root)
	obs := i.observer.WithFields(map[string]string{"host": tgt.Name()})

	if report.State == probe.CompleteStopped || report.State == probe.CompleteRunning {
		if !i.cfg.Install.ForceReinstall {
			obs.Event(provisioning.Event{
				Type:    provisioning.EventStageSkipped,
				Stage:   provisioning.StageInstall,
				NodeID:  node.ID,
				Message: "existing complete installation reused",
			})
			return art, nil
		}
		obs.Printf("force reinstall requested, tearing down complete installation")
	}

	// Logs from a previous installation survive replacement: move them
	// aside before anything destructive, restore them at the end.
	preservedLogs, err := i.preserveLogs(ctx, tgt)
	if err != nil {
		return Artifact{}, err
	}

	switch report.State {
	case probe.Partial, probe.CompleteStopped, probe.CompleteRunning:
		if err := i.teardown(ctx, tgt); err != nil {
			return Artifact{}, fmt.Errorf("teardown failed: %w", err)
		}
	case probe.Absent:
		// A logs-only leftover root must not survive into extraction.
		if report.LogsOnly {
			if err := i.removeVerified(ctx, tgt, root); err != nil {
				return Artifact{}, err
			}
		}
	}

	if err := i.extract(ctx, tgt); err != nil {
		return Artifact{}, err
	}

	if preservedLogs != "" {
		if err := i.restoreLogs(ctx, tgt, preservedLogs); err != nil {
			return Artifact{}, err
		}
	}

	if err := i.createDataDirs(ctx, tgt, art); err != nil {
		return Artifact{}, err
	}

	obs.Event(provisioning.Event{
		Type:    provisioning.EventStageCompleted,
		Stage:   provisioning.StageInstall,
		NodeID:  node.ID,
		Message: fmt.Sprintf("artifact installed at %s", root),
	})
	return art, nil
}

// extract fetches and validates the archive locally, stages it on the node,
// unpacks it, locates the produced directory by name pattern, and moves it
// into place.
func (i *Installer) extract(ctx context.Context, tgt target.Target) error {
	localPath, err := i.fetchValidated(ctx)
	if err != nil {
		return &provisioning.ArtifactError{Reason: "invalid_artifact", Err: err}
	}

	staged := path.Join("/tmp", fmt.Sprintf("provisor-%s-%s", i.runID, path.Base(localPath)))
	err = retry.Do(ctx, func() error {
		return tgt.Copy(ctx, localPath, staged)
	}, retry.WithMaxAttempts(i.timeouts.RetryMaxAttempts), retry.WithDelay(i.timeouts.RetryDelay))
	if err != nil {
		return &provisioning.ArtifactError{Reason: "stage_copy", Err: err}
	}
	defer func() {
		_, _ = tgt.Run(ctx, fmt.Sprintf("rm -f %s", staged))
	}()

	parent := i.cfg.Install.ParentDir
	extracted, err := i.extractAndLocate(ctx, tgt, staged, parent)
	if err != nil {
		// One retry in an alternate location before giving up.
		alt := path.Join("/tmp", fmt.Sprintf("provisor-extract-%s", i.runID))
		i.observer.Printf("no %s* directory under %s after extraction, retrying in %s",
			i.cfg.Install.ArchiveDirPrefix, parent, alt)
		extracted, err = i.extractAndLocate(ctx, tgt, staged, alt)
		if err != nil {
			return &provisioning.ArtifactError{Reason: "extraction_not_found", Err: err}
		}
	}

	return i.moveIntoPlace(ctx, tgt, extracted)
}

// fetchValidated obtains the archive and confirms it really is a gzipped tar
// before anything on a node is touched. An archive that fails validation is
// re-fetched once: a downloader can claim success while delivering an error
// page.
func (i *Installer) fetchValidated(ctx context.Context) (string, error) {
	localPath, err := i.source.Fetch(ctx)
	if err != nil {
		return "", err
	}

	if _, err := artifact.Validate(localPath); err != nil {
		if !errors.Is(err, artifact.ErrNotArchive) {
			return "", err
		}
		i.observer.Printf("archive %s failed validation, re-fetching once: %v", localPath, err)
		localPath, err = i.source.Fetch(ctx)
		if err != nil {
			return "", err
		}
		if _, err := artifact.Validate(localPath); err != nil {
			return "", err
		}
	}
	return localPath, nil
}

// extractAndLocate unpacks the staged archive into dest and returns the path
// of the single top-level directory matching the configured name prefix.
func (i *Installer) extractAndLocate(ctx context.Context, tgt target.Target, staged, dest string) (string, error) {
	cmd := fmt.Sprintf("mkdir -p %s && tar -xzf %s -C %s", dest, staged, dest)
	if _, err := target.Output(ctx, tgt, cmd); err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}

	pattern := path.Join(dest, i.cfg.Install.ArchiveDirPrefix+"*")
	out, err := target.Output(ctx, tgt, fmt.Sprintf("ls -d %s 2>/dev/null | head -n 1", pattern))
	if err != nil || out == "" {
		return "", fmt.Errorf("no directory matching %s after extraction", pattern)
	}

	return out, nil
}

// moveIntoPlace renames the extracted directory to the install root, falling
// back to a recursive copy when rename crosses filesystems or otherwise
// fails.
func (i *Installer) moveIntoPlace(ctx context.Context, tgt target.Target, extracted string) error {
	root := i.cfg.Install.Root()
	if extracted == root {
		return nil
	}

	ok, err := target.Succeeds(ctx, tgt, fmt.Sprintf("mv %s %s", extracted, root))
	if err != nil {
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	if !ok {
		i.observer.Printf("mv %s -> %s failed, falling back to recursive copy", extracted, root)
		cmd := fmt.Sprintf("mkdir -p %s && cp -r %s/. %s/ && rm -rf %s", root, extracted, root, extracted)
		if _, err := target.Output(ctx, tgt, cmd); err != nil {
			return &provisioning.ArtifactError{Reason: "move_into_place", Err: err}
		}
	}

	present, err := target.Succeeds(ctx, tgt, fmt.Sprintf("test -d %s", root))
	if err != nil {
		return err
	}
	if !present {
		return &provisioning.VerificationError{Check: fmt.Sprintf("install root %s missing after move", root)}
	}
	return nil
}

// createDataDirs ensures the data repositories and logs directory exist
// under the install root.
func (i *Installer) createDataDirs(ctx context.Context, tgt target.Target, art Artifact) error {
	dirs := append([]string{art.LogsDir, art.SecurityDir}, art.Repositories...)
	for _, dir := range dirs {
		if _, err := target.Output(ctx, tgt, fmt.Sprintf("mkdir -p %s", dir)); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
