package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// NodeSpec identifies one target machine in the cluster.
type NodeSpec struct {
	ID      int    `mapstructure:"id" yaml:"id"`
	Host    string `mapstructure:"host" yaml:"host"`
	Address string `mapstructure:"address" yaml:"address"`
	SSHUser string `mapstructure:"ssh_user" yaml:"ssh_user"`
}

// Topology is the ordered node list for one cluster. It is built once from
// operator input, validated, and never mutated during a run.
type Topology struct {
	Nodes []NodeSpec
}

// NewTopology validates the node list and returns an immutable topology.
// Node ids must form a dense 1..N range matching slice position, and no two
// nodes may share a host or an address.
func NewTopology(nodes []NodeSpec) (*Topology, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("topology requires at least one node")
	}

	hosts := make(map[string]int, len(nodes))
	addrs := make(map[string]int, len(nodes))

	for i, n := range nodes {
		if n.ID != i+1 {
			return nil, fmt.Errorf("node at position %d has id %d, expected %d", i, n.ID, i+1)
		}
		if n.Host == "" {
			return nil, fmt.Errorf("node %d: host is required", n.ID)
		}
		if n.Address == "" {
			return nil, fmt.Errorf("node %d: address is required", n.ID)
		}
		if prev, ok := hosts[n.Host]; ok {
			return nil, fmt.Errorf("nodes %d and %d share host %q", prev, n.ID, n.Host)
		}
		if prev, ok := addrs[n.Address]; ok {
			return nil, fmt.Errorf("nodes %d and %d share address %q", prev, n.ID, n.Address)
		}
		hosts[n.Host] = n.ID
		addrs[n.Address] = n.ID
	}

	out := make([]NodeSpec, len(nodes))
	copy(out, nodes)
	return &Topology{Nodes: out}, nil
}

// Len returns the number of nodes.
func (t *Topology) Len() int { return len(t.Nodes) }

// Node returns the node with the given id.
func (t *Topology) Node(id int) (NodeSpec, error) {
	if id < 1 || id > len(t.Nodes) {
		return NodeSpec{}, fmt.Errorf("no node with id %d in %d-node topology", id, len(t.Nodes))
	}
	return t.Nodes[id-1], nil
}

// ConnectString joins every node's address with the coordination port,
// comma-separated, in ascending node-id order. The result is identical no
// matter which node it is rendered for, so it must be computed from the
// complete topology before any node is configured.
func (t *Topology) ConnectString(coordinationPort int) string {
	parts := make([]string, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		parts = append(parts, fmt.Sprintf("%s:%d", n.Address, coordinationPort))
	}
	return strings.Join(parts, ",")
}

// Save persists the topology as a line-oriented KEY=VALUE file so a later
// invocation (for example a health-check run) can reload the same node list
// without re-prompting.
func (t *Topology) Save(path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "NODE_COUNT=%d\n", len(t.Nodes))
	for _, n := range t.Nodes {
		fmt.Fprintf(&b, "NODE_%d_HOST=%s\n", n.ID, n.Host)
		fmt.Fprintf(&b, "NODE_%d_IP=%s\n", n.ID, n.Address)
		fmt.Fprintf(&b, "NODE_%d_USER=%s\n", n.ID, n.SSHUser)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write topology file: %w", err)
	}
	return nil
}

// LoadTopology reads a topology file written by Save. The round-trip is
// lossless: LoadTopology(Save(t)) yields a topology equal to t.
func LoadTopology(path string) (*Topology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open topology file: %w", err)
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("malformed topology line %q", line)
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	count, err := strconv.Atoi(values["NODE_COUNT"])
	if err != nil || count < 1 {
		return nil, fmt.Errorf("topology file %s has invalid NODE_COUNT %q", path, values["NODE_COUNT"])
	}

	nodes := make([]NodeSpec, 0, count)
	for i := 1; i <= count; i++ {
		host, ok := values[fmt.Sprintf("NODE_%d_HOST", i)]
		if !ok {
			return nil, fmt.Errorf("topology file %s missing NODE_%d_HOST", path, i)
		}
		nodes = append(nodes, NodeSpec{
			ID:      i,
			Host:    host,
			Address: values[fmt.Sprintf("NODE_%d_IP", i)],
			SSHUser: values[fmt.Sprintf("NODE_%d_USER", i)],
		})
	}

	return NewTopology(nodes)
}

// SortedIDs returns the node ids in ascending order. Outcome maps are keyed
// by node id; reports iterate in this order.
func (t *Topology) SortedIDs() []int {
	ids := make([]int, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		ids = append(ids, n.ID)
	}
	sort.Ints(ids)
	return ids
}
