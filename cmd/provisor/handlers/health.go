package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/health"
	"github.com/okatz/provisor/internal/probe"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/target"
)

// NodeStatus represents one node's state for JSON output.
type NodeStatus struct {
	ID      int    `json:"id"`
	Host    string `json:"host"`
	Address string `json:"address"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// ClusterStatus represents the cluster state for JSON output.
type ClusterStatus struct {
	ClusterName string       `json:"clusterName"`
	Nodes       []NodeStatus `json:"nodes"`
}

// newProber creates the node prober (for testing injection).
var newProber = func(cfg *config.Config) *probe.Prober {
	return probe.New(cfg, health.NewHTTPChecker(cfg.Ports.Web))
}

// Health handles the health command.
//
// It probes every node read-only and reports its state. The command fails
// when any node is not fully configured and running, so the exit code alone
// answers "is the cluster healthy".
func Health(ctx context.Context, configPath string, jsonOutput bool) error {
	status, err := surveyCluster(ctx, configPath)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Fprintln(stdout, string(data))
	} else {
		printStatusFormatted(status)
	}

	var notRunning int
	for _, n := range status.Nodes {
		if n.State != string(probe.CompleteRunning) {
			notRunning++
		}
	}
	if notRunning > 0 {
		return fmt.Errorf("%d of %d nodes are not running", notRunning, len(status.Nodes))
	}
	return nil
}

// Probe handles the probe command: the same read-only survey as health, but
// purely informational.
func Probe(ctx context.Context, configPath string) error {
	status, err := surveyCluster(ctx, configPath)
	if err != nil {
		return err
	}
	printStatusFormatted(status)
	return nil
}

// surveyCluster probes every node in the topology without modifying it.
func surveyCluster(ctx context.Context, configPath string) (*ClusterStatus, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	topo, err := loadSurveyTopology(cfg)
	if err != nil {
		return nil, err
	}

	targets, err := buildTargetFactory(cfg)
	if err != nil {
		return nil, err
	}

	prober := newProber(cfg)
	timeouts := config.LoadTimeouts()

	status := &ClusterStatus{ClusterName: cfg.ClusterName}
	for _, id := range topo.SortedIDs() {
		node, err := topo.Node(id)
		if err != nil {
			return nil, err
		}

		ns := NodeStatus{ID: node.ID, Host: node.Host, Address: node.Address}
		tgt := target.WithTimeouts(targets.Resolve(node), timeouts.Command, timeouts.Copy)
		report, err := prober.Probe(ctx, tgt, node)
		if err != nil {
			ns.State = "unreachable"
			ns.Error = err.Error()
		} else {
			ns.State = string(report.State)
		}
		_ = tgt.Close()

		status.Nodes = append(status.Nodes, ns)
	}
	return status, nil
}

// loadSurveyTopology prefers the topology file persisted by a previous
// apply, so health checks see exactly the membership that was provisioned.
// It falls back to the declared node list when no file exists yet.
func loadSurveyTopology(cfg *config.Config) (*config.Topology, error) {
	if _, err := os.Stat(cfg.TopologyFile); err == nil {
		topo, err := config.LoadTopology(cfg.TopologyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load topology file: %w", err)
		}
		return topo, nil
	}

	if len(cfg.Nodes) == 0 {
		return nil, &provisioning.ConfigMissingError{Path: cfg.TopologyFile, Err: os.ErrNotExist}
	}
	topo, err := cfg.Topology()
	if err != nil {
		return nil, fmt.Errorf("failed to build topology: %w", err)
	}
	return topo, nil
}

// printStatusFormatted outputs the cluster state as a readable table.
func printStatusFormatted(status *ClusterStatus) {
	fmt.Fprintf(stdout, "Cluster: %s\n\n", status.ClusterName)
	for _, n := range status.Nodes {
		indicator := "○"
		if n.State == string(probe.CompleteRunning) {
			indicator = "✓"
		}
		if n.Error != "" {
			fmt.Fprintf(stdout, "  %s %-20s %s (%s)\n", indicator, n.Host, n.State, n.Error)
			continue
		}
		fmt.Fprintf(stdout, "  %s %-20s %s\n", indicator, n.Host, n.State)
	}
}
