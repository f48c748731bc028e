// Package secure models the TLS material handed over by the external
// certificate authority collaborator. The orchestrator never generates key
// material itself; it only places the provided stores and references them
// from configuration.
package secure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Material is the per-node credential set produced by the certificate
// authority: one keystore per node, one truststore shared by the cluster,
// and the shared store passphrase. All contents are treated as opaque bytes.
type Material struct {
	KeystorePath   string
	TruststorePath string
	Passphrase     string
}

// Provider hands out the security material for a node.
type Provider interface {
	MaterialFor(nodeID int) (Material, error)
}

// DirProvider reads pre-generated material from a directory laid out as
// keystore-<id>.jks plus a shared truststore.jks, with the passphrase in a
// separate file.
type DirProvider struct {
	dir        string
	passphrase string
}

// NewDirProvider validates the material directory and loads the shared
// passphrase.
func NewDirProvider(dir, passphraseFile string) (*DirProvider, error) {
	if _, err := os.Stat(filepath.Join(dir, "truststore.jks")); err != nil {
		return nil, fmt.Errorf("shared truststore not found in %s: %w", dir, err)
	}

	// #nosec G304
	data, err := os.ReadFile(passphraseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase file: %w", err)
	}
	passphrase := strings.TrimSpace(string(data))
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase file %s is empty", passphraseFile)
	}

	return &DirProvider{dir: dir, passphrase: passphrase}, nil
}

// MaterialFor implements Provider.
func (p *DirProvider) MaterialFor(nodeID int) (Material, error) {
	keystore := filepath.Join(p.dir, fmt.Sprintf("keystore-%d.jks", nodeID))
	if _, err := os.Stat(keystore); err != nil {
		return Material{}, fmt.Errorf("keystore for node %d not found: %w", nodeID, err)
	}

	return Material{
		KeystorePath:   keystore,
		TruststorePath: filepath.Join(p.dir, "truststore.jks"),
		Passphrase:     p.passphrase,
	}, nil
}
