// Package orchestrate iterates the cluster topology and drives every node
// through the provisioning pipeline, aggregating per-node outcomes into a
// run report. A node's failure never aborts its siblings.
package orchestrate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/install"
	"github.com/okatz/provisor/internal/probe"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/retry"
	"github.com/okatz/provisor/internal/target"
)

// maxPrepareConcurrency bounds how many nodes are probed, installed, and
// configured at once. Activation is always serialized regardless.
const maxPrepareConcurrency = 4

// TargetFactory resolves the execution target for a node.
// *target.Resolver implements it.
type TargetFactory interface {
	Resolve(node config.NodeSpec) target.Target
}

// Pipeline is the per-node stage sequence the orchestrator dispatches.
// The production implementation wires the probe, install, render, and
// lifecycle packages; tests substitute fakes.
type Pipeline interface {
	Probe(ctx context.Context, tgt target.Target, node config.NodeSpec) (probe.Report, error)
	Install(ctx context.Context, tgt target.Target, node config.NodeSpec, report probe.Report) (install.Artifact, error)
	Configure(ctx context.Context, tgt target.Target, node config.NodeSpec, art install.Artifact) error
	Activate(ctx context.Context, tgt target.Target, node config.NodeSpec, art install.Artifact) error
}

// Orchestrator runs the provisioning pipeline across the topology.
type Orchestrator struct {
	pctx     *provisioning.Context
	targets  TargetFactory
	pipeline Pipeline
	metrics  *Metrics
}

// New creates an orchestrator. metrics may be nil.
func New(pctx *provisioning.Context, targets TargetFactory, pipeline Pipeline, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		pctx:     pctx,
		targets:  targets,
		pipeline: pipeline,
		metrics:  metrics,
	}
}

// prepared carries the state a node accumulates before activation.
type prepared struct {
	node     config.NodeSpec
	tgt      target.Target
	artifact install.Artifact
}

// Run processes every node and returns one outcome per node id. Probing,
// installation, and configuration run with bounded parallelism: they are
// independent per node, and the membership connect string was computed from
// the complete topology up front. The final start is strictly serialized in
// node-id order so each node's startup can be observed before the next
// begins.
func (o *Orchestrator) Run(ctx context.Context) map[int]provisioning.Outcome {
	outcomes := make(map[int]provisioning.Outcome)
	preparedNodes := make(map[int]*prepared)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPrepareConcurrency)

	for _, node := range o.pctx.Topology.Nodes {
		node := node
		g.Go(func() error {
			prep, outcome := o.prepareNode(gctx, node)
			mu.Lock()
			defer mu.Unlock()
			if prep != nil {
				preparedNodes[node.ID] = prep
			} else {
				outcomes[node.ID] = outcome
			}
			// Sibling nodes continue regardless of this node's outcome.
			return nil
		})
	}
	_ = g.Wait()

	// Serial activation in ascending node-id order.
	for _, id := range o.pctx.Topology.SortedIDs() {
		prep, ok := preparedNodes[id]
		if !ok {
			continue
		}
		outcomes[id] = o.activateNode(ctx, prep)
		_ = prep.tgt.Close()
	}

	if o.metrics != nil {
		for _, outcome := range outcomes {
			o.metrics.RecordOutcome(outcome)
		}
	}

	return outcomes
}

// prepareNode runs connectivity check, probe, install, and configure for
// one node. On failure the target is closed and a failed outcome returned.
func (o *Orchestrator) prepareNode(ctx context.Context, node config.NodeSpec) (*prepared, provisioning.Outcome) {
	obs := o.pctx.Observer.WithFields(map[string]string{"host": node.Host})
	tgt := target.WithTimeouts(o.targets.Resolve(node), o.pctx.Timeouts.Command, o.pctx.Timeouts.Copy)

	fail := func(stage provisioning.Stage, err error) (*prepared, provisioning.Outcome) {
		obs.Event(provisioning.Event{
			Type:    provisioning.EventStageFailed,
			Stage:   stage,
			NodeID:  node.ID,
			Message: err.Error(),
		})
		_ = tgt.Close()
		return nil, provisioning.Failed(node.ID, stage, err)
	}

	if err := o.checkConnectivity(ctx, tgt, node); err != nil {
		return fail(provisioning.StageConnectivity, err)
	}

	report, err := timed(o.metrics, provisioning.StageProbe, func() (probe.Report, error) {
		return o.pipeline.Probe(ctx, tgt, node)
	})
	if err != nil {
		return fail(provisioning.StageProbe, err)
	}
	obs.Printf("node %d probed as %s", node.ID, report.State)

	art, err := timed(o.metrics, provisioning.StageInstall, func() (install.Artifact, error) {
		return o.pipeline.Install(ctx, tgt, node, report)
	})
	if err != nil {
		return fail(provisioning.StageInstall, err)
	}

	_, err = timed(o.metrics, provisioning.StageConfigure, func() (struct{}, error) {
		return struct{}{}, o.pipeline.Configure(ctx, tgt, node, art)
	})
	if err != nil {
		return fail(provisioning.StageConfigure, err)
	}

	return &prepared{node: node, tgt: tgt, artifact: art}, provisioning.Outcome{}
}

// activateNode runs the serialized start for one prepared node.
func (o *Orchestrator) activateNode(ctx context.Context, prep *prepared) provisioning.Outcome {
	obs := o.pctx.Observer.WithFields(map[string]string{"host": prep.node.Host})

	obs.Event(provisioning.Event{
		Type:    provisioning.EventStageStarted,
		Stage:   provisioning.StageActivate,
		NodeID:  prep.node.ID,
		Message: "starting service",
	})

	_, err := timed(o.metrics, provisioning.StageActivate, func() (struct{}, error) {
		return struct{}{}, o.pipeline.Activate(ctx, prep.tgt, prep.node, prep.artifact)
	})
	if err != nil {
		obs.Event(provisioning.Event{
			Type:    provisioning.EventStageFailed,
			Stage:   provisioning.StageActivate,
			NodeID:  prep.node.ID,
			Message: err.Error(),
		})
		return provisioning.Failed(prep.node.ID, provisioning.StageActivate, err)
	}

	obs.Event(provisioning.Event{
		Type:    provisioning.EventStageCompleted,
		Stage:   provisioning.StageActivate,
		NodeID:  prep.node.ID,
		Message: "service running",
	})
	return provisioning.Success(prep.node.ID)
}

// checkConnectivity verifies the target answers a trivial command, with
// bounded retry and fixed backoff for network flakiness.
func (o *Orchestrator) checkConnectivity(ctx context.Context, tgt target.Target, node config.NodeSpec) error {
	err := retry.Do(ctx, func() error {
		_, err := tgt.Run(ctx, "true")
		return err
	},
		retry.WithMaxAttempts(o.pctx.Timeouts.RetryMaxAttempts),
		retry.WithDelay(o.pctx.Timeouts.RetryDelay),
	)
	if err != nil {
		return &provisioning.ConnectivityError{Host: node.Host, Err: err}
	}
	return nil
}

// timed measures a stage's duration for metrics. m may be nil.
func timed[T any](m *Metrics, stage provisioning.Stage, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	if m != nil {
		m.ObserveStage(stage, time.Since(start))
	}
	return result, err
}
