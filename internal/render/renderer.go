// Package render applies per-node configuration onto an installed artifact:
// identity, security material, cluster membership, storage paths, heap
// sizing, and GC flags. Re-running against an already-configured artifact is
// a no-op; specific lines are overwritten in place and whole files are never
// regenerated, so operator customizations to untouched keys survive.
package render

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/install"
	"github.com/okatz/provisor/internal/provisioning"
	"github.com/okatz/provisor/internal/secure"
	"github.com/okatz/provisor/internal/target"
)

// Property keys written into flow.properties.
const (
	keyWebHost           = "flow.web.https.host"
	keyWebPort           = "flow.web.https.port"
	keyNodeAddress       = "flow.cluster.node.address"
	keyNodePort          = "flow.cluster.node.protocol.port"
	keyKeystore          = "flow.security.keystore"
	keyKeystoreType      = "flow.security.keystoreType"
	keyKeystorePasswd    = "flow.security.keystorePasswd"
	keyTruststore        = "flow.security.truststore"
	keyTruststoreType    = "flow.security.truststoreType"
	keyTruststorePasswd  = "flow.security.truststorePasswd"
	keySensitiveKey      = "flow.sensitive.props.key"
	keyConnectString     = "flow.coordination.connect.string"
	keyContentRepo       = "flow.content.repository.directory"
	keyEventRepo         = "flow.event.repository.directory"
	keyStateRepo         = "flow.state.repository.directory"
	keyMetadataRepo      = "flow.metadata.repository.directory"
)

// Bootstrap keys and appended JVM flags.
const (
	keyRunAs    = "run.as"
	keyInitHeap = "java.arg.2"
	keyMaxHeap  = "java.arg.3"
)

var jvmFlags = []string{
	"java.arg.13=-XX:+UseG1GC",
	"java.arg.14=-XX:+HeapDumpOnOutOfMemoryError",
	"java.arg.15=-Djava.net.preferIPv4Stack=true",
}

// Renderer applies per-node configuration.
type Renderer struct {
	cfg      *config.Config
	observer provisioning.Observer
	secrets  secure.Provider

	// connect is the full-topology coordination connect string, identical
	// for every node.
	connect string
}

// New creates a renderer. connect must be computed from the complete
// topology before any node is configured.
func New(cfg *config.Config, obs provisioning.Observer, secrets secure.Provider, connect string) *Renderer {
	return &Renderer{
		cfg:      cfg,
		observer: obs,
		secrets:  secrets,
		connect:  connect,
	}
}

// Configure renders the node's configuration onto the installed artifact.
func (r *Renderer) Configure(ctx context.Context, tgt target.Target, node config.NodeSpec, art install.Artifact) error {
	material, err := r.secrets.MaterialFor(node.ID)
	if err != nil {
		return fmt.Errorf("failed to obtain security material: %w", err)
	}

	if err := r.placeSecurityMaterial(ctx, tgt, art, material); err != nil {
		return err
	}

	ownAddr, err := r.discoverOwnAddress(ctx, tgt, node)
	if err != nil {
		return err
	}

	if err := r.renderProperties(ctx, tgt, art, material, ownAddr); err != nil {
		return err
	}

	plan, err := PlanFor(ctx, tgt, r.cfg.Memory)
	if err != nil {
		return err
	}

	return r.renderBootstrap(ctx, tgt, art, plan)
}

// discoverOwnAddress asks the node for its own primary address. The address
// the orchestrator dials can differ from the address the node should bind:
// NAT and multi-homing make the orchestrator's view unreliable, so the bind
// address is always discovered on the node itself.
func (r *Renderer) discoverOwnAddress(ctx context.Context, tgt target.Target, node config.NodeSpec) (string, error) {
	out, err := target.Output(ctx, tgt, "hostname -I 2>/dev/null | awk '{print $1}'")
	if err != nil {
		return "", fmt.Errorf("failed to discover node address: %w", err)
	}
	if out == "" {
		// Fall back to the declared address rather than binding nothing.
		r.observer.Printf("node %s reported no address, using declared %s", tgt.Name(), node.Address)
		return node.Address, nil
	}
	return out, nil
}

// placeSecurityMaterial copies the keystore and truststore into the
// artifact's security directory.
func (r *Renderer) placeSecurityMaterial(ctx context.Context, tgt target.Target, art install.Artifact, m secure.Material) error {
	if err := tgt.Copy(ctx, m.KeystorePath, path.Join(art.SecurityDir, "keystore.jks")); err != nil {
		return fmt.Errorf("failed to place keystore: %w", err)
	}
	if err := tgt.Copy(ctx, m.TruststorePath, path.Join(art.SecurityDir, "truststore.jks")); err != nil {
		return fmt.Errorf("failed to place truststore: %w", err)
	}
	return nil
}

func (r *Renderer) renderProperties(ctx context.Context, tgt target.Target, art install.Artifact, m secure.Material, ownAddr string) error {
	props, err := LoadProperties(ctx, tgt, art.Properties)
	if err != nil {
		return err
	}

	// Identity: the node binds its own locally-discovered address.
	props.Set(keyWebHost, ownAddr)
	props.Set(keyWebPort, fmt.Sprintf("%d", r.cfg.Ports.Web))
	props.Set(keyNodeAddress, ownAddr)
	props.Set(keyNodePort, fmt.Sprintf("%d", r.cfg.Ports.Cluster))

	// Security material.
	props.Set(keyKeystore, path.Join(art.SecurityDir, "keystore.jks"))
	props.Set(keyKeystoreType, "JKS")
	props.Set(keyKeystorePasswd, m.Passphrase)
	props.Set(keyTruststore, path.Join(art.SecurityDir, "truststore.jks"))
	props.Set(keyTruststoreType, "JKS")
	props.Set(keyTruststorePasswd, m.Passphrase)

	// The sensitive-value encryption key is freshly random per node and
	// never reused across nodes. It is only generated when unset so a
	// re-run does not rewrite values encrypted under the existing key.
	if props.Get(keySensitiveKey) == "" {
		props.Set(keySensitiveKey, uuid.NewString())
	}

	// Cluster membership: identical complete string on every node.
	props.Set(keyConnectString, r.connect)

	// Storage paths: shipped defaults are relative and a known source of
	// confusion; always normalize to absolute paths under the install root.
	repos := []string{keyContentRepo, keyEventRepo, keyStateRepo, keyMetadataRepo}
	for i, key := range repos {
		props.Set(key, art.Repositories[i])
	}

	return props.Save(ctx, tgt)
}

func (r *Renderer) renderBootstrap(ctx context.Context, tgt target.Target, art install.Artifact, plan MemoryPlan) error {
	boot, err := LoadProperties(ctx, tgt, art.Bootstrap)
	if err != nil {
		return err
	}

	boot.Set(keyRunAs, r.cfg.Service.User)
	boot.Set(keyInitHeap, "-Xms"+plan.InitHeap)
	boot.Set(keyMaxHeap, "-Xmx"+plan.MaxHeap)

	for _, flag := range jvmFlags {
		boot.AppendLineIfAbsent(flag)
	}

	return boot.Save(ctx, tgt)
}
