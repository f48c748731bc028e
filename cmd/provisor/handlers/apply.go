// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/install"
	"github.com/okatz/provisor/internal/orchestrate"
	"github.com/okatz/provisor/internal/probe"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/target"
)

const defaultConfigPath = "provisor.yaml"

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file.
	loadConfigFile = config.LoadFile

	// readFile reads a file's contents.
	readFile = os.ReadFile

	// saveTopology persists the membership file.
	saveTopology = func(topo *config.Topology, path string) error {
		return topo.Save(path)
	}

	// newObserver creates the run observer and returns its close function.
	newObserver = func(logDir, runID string) (provisioning.Observer, func() error, error) {
		obs, err := provisioning.NewLogObserver(logDir, runID)
		if err != nil {
			return nil, nil, err
		}
		return obs, obs.Close, nil
	}

	// newTargetFactory creates the local/remote target resolver.
	newTargetFactory = func(cfg *config.Config, privateKey []byte) (orchestrate.TargetFactory, error) {
		return target.NewResolver(cfg.SSH, privateKey)
	}

	// newPipeline creates the production stage pipeline.
	newPipeline = orchestrate.NewPipeline

	// runOrchestrator executes the run.
	runOrchestrator = func(ctx context.Context, pctx *provisioning.Context, targets orchestrate.TargetFactory, pipeline orchestrate.Pipeline, metrics *orchestrate.Metrics) map[int]provisioning.Outcome {
		return orchestrate.New(pctx, targets, pipeline, metrics).Run(ctx)
	}

	// stdout is the summary destination.
	stdout io.Writer = os.Stdout
)

// ApplyOptions carries the apply command's flags.
type ApplyOptions struct {
	ConfigPath     string
	ForceReinstall bool
	MetricsListen  string

	// StopAfter truncates the pipeline after the named stage. Empty runs
	// the full pipeline.
	StopAfter provisioning.Stage
}

// Apply provisions the cluster described by the configuration file.
//
// The workflow:
//  1. Loads and validates the cluster configuration
//  2. Persists the membership file from the complete declared topology
//  3. Drives every node through the provisioning pipeline, with per-node
//     failure isolation
//  4. Prints a per-node summary and fails if any node failed
//
// The membership file is written before any node is touched so every node
// receives a connect string derived from the full topology, never from the
// subset provisioned so far.
func Apply(ctx context.Context, opts ApplyOptions) error {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.ForceReinstall {
		cfg.Install.ForceReinstall = true
	}

	topo, err := cfg.Topology()
	if err != nil {
		return fmt.Errorf("failed to build topology: %w", err)
	}

	if err := saveTopology(topo, cfg.TopologyFile); err != nil {
		return fmt.Errorf("failed to persist topology: %w", err)
	}

	runID := provisioning.NewRunID()
	obs, closeObs, err := newObserver(cfg.LogDir, runID)
	if err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}
	defer func() { _ = closeObs() }()

	pctx := provisioning.NewContext(ctx, cfg, topo, obs, runID)
	obs.Printf("provisioning cluster %s (%d nodes, run %s)", cfg.ClusterName, topo.Len(), runID)

	targets, err := buildTargetFactory(cfg)
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(pctx)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	if opts.StopAfter != "" {
		pipeline = &truncatedPipeline{inner: pipeline, stopAfter: opts.StopAfter}
	}

	var metrics *orchestrate.Metrics
	if opts.MetricsListen != "" {
		metrics = orchestrate.NewMetrics()
		stop := metrics.Serve(opts.MetricsListen)
		defer stop()
	}

	outcomes := runOrchestrator(ctx, pctx, targets, pipeline, metrics)
	failed := orchestrate.PrintSummary(stdout, topo, outcomes)
	if len(failed) > 0 {
		if cause := cancellation(ctx, outcomes); cause != nil {
			return fmt.Errorf("provisioning interrupted, failed nodes %v: %w", failed, cause)
		}
		return fmt.Errorf("provisioning failed on nodes %v (%d of %d)", failed, len(failed), topo.Len())
	}
	return nil
}

// cancellation distinguishes an interrupted run from genuine node failures:
// it returns the cancellation error when the run context was canceled or
// any outcome failed because of it, so callers can map an operator abort to
// its own exit code.
func cancellation(ctx context.Context, outcomes map[int]provisioning.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, outcome := range outcomes {
		if outcome.Err != nil && errors.Is(outcome.Err, context.Canceled) {
			return context.Canceled
		}
	}
	return nil
}

// loadConfig loads and validates the cluster configuration. If configPath
// is empty, it looks for provisor.yaml in the current directory. A missing
// file is a ConfigMissingError: nothing was touched yet and the operator
// must supply the prerequisite.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &provisioning.ConfigMissingError{Path: configPath, Err: err}
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// buildTargetFactory reads the SSH private key, when one is configured, and
// creates the target resolver. A missing key is acceptable for topologies
// that resolve entirely to local targets.
func buildTargetFactory(cfg *config.Config) (orchestrate.TargetFactory, error) {
	var key []byte
	if cfg.SSH.PrivateKeyPath != "" {
		var err error
		key, err = readFile(cfg.SSH.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSH private key: %w", err)
		}
	}
	return newTargetFactory(cfg, key)
}

// truncatedPipeline runs the inner pipeline only up to a chosen stage,
// turning the later stages into no-ops. Used by the stage-scoped commands.
type truncatedPipeline struct {
	inner     orchestrate.Pipeline
	stopAfter provisioning.Stage
}

func (p *truncatedPipeline) Probe(ctx context.Context, tgt target.Target, node config.NodeSpec) (probe.Report, error) {
	return p.inner.Probe(ctx, tgt, node)
}

func (p *truncatedPipeline) Install(ctx context.Context, tgt target.Target, node config.NodeSpec, report probe.Report) (install.Artifact, error) {
	if p.stopAfter == provisioning.StageProbe {
		return install.NewArtifact(""), nil
	}
	return p.inner.Install(ctx, tgt, node, report)
}

func (p *truncatedPipeline) Configure(ctx context.Context, tgt target.Target, node config.NodeSpec, art install.Artifact) error {
	if p.stopAfter == provisioning.StageProbe || p.stopAfter == provisioning.StageInstall {
		return nil
	}
	return p.inner.Configure(ctx, tgt, node, art)
}

func (p *truncatedPipeline) Activate(ctx context.Context, tgt target.Target, node config.NodeSpec, art install.Artifact) error {
	if p.stopAfter != provisioning.StageActivate && p.stopAfter != "" {
		return nil
	}
	return p.inner.Activate(ctx, tgt, node, art)
}
