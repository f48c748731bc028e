package target

import (
	"fmt"
	"net"
	"os"

	"github.com/okatz/provisor/internal/config"
)

// Resolver builds the execution target for each node, deciding local versus
// remote exactly once per node.
type Resolver struct {
	sshPort    int
	privateKey []byte

	localHost  string
	localAddrs map[string]bool
}

// NewResolver creates a resolver using the orchestrator's own hostname and
// interface addresses as the reference for the local/remote decision.
func NewResolver(sshCfg config.SSHConfig, privateKey []byte) (*Resolver, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to determine local hostname: %w", err)
	}

	addrs, err := localInterfaceAddrs()
	if err != nil {
		return nil, err
	}

	return &Resolver{
		sshPort:    sshCfg.Port,
		privateKey: privateKey,
		localHost:  hostname,
		localAddrs: addrs,
	}, nil
}

// Resolve returns the target for one node: a LocalTarget when the node's
// declared host or address matches this machine, an SSHTarget otherwise.
func (r *Resolver) Resolve(node config.NodeSpec) Target {
	if r.isLocal(node) {
		return NewLocalTarget(node.Host)
	}
	return NewSSHTarget(node.Host, node.Address, node.SSHUser, r.sshPort, r.privateKey)
}

func (r *Resolver) isLocal(node config.NodeSpec) bool {
	if node.Host == r.localHost {
		return true
	}
	if node.Address == "127.0.0.1" || node.Address == "::1" {
		return true
	}
	return r.localAddrs[node.Address]
}

func localInterfaceAddrs() (map[string]bool, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("failed to list interface addresses: %w", err)
	}

	out := make(map[string]bool, len(addrs))
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			out[ipNet.IP.String()] = true
		}
	}
	return out, nil
}
