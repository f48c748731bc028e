package secure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func materialDir(t *testing.T, nodeIDs ...int) (string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "truststore.jks"), []byte("trust"), 0o600))
	for _, id := range nodeIDs {
		name := filepath.Join(dir, "keystore-"+string(rune('0'+id))+".jks")
		require.NoError(t, os.WriteFile(name, []byte("key"), 0o600))
	}
	passFile := filepath.Join(dir, "passphrase")
	require.NoError(t, os.WriteFile(passFile, []byte("s3cret\n"), 0o600))
	return dir, passFile
}

func TestDirProviderMaterialFor(t *testing.T) {
	dir, passFile := materialDir(t, 1, 2)

	p, err := NewDirProvider(dir, passFile)
	require.NoError(t, err)

	m, err := p.MaterialFor(1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "keystore-1.jks"), m.KeystorePath)
	assert.Equal(t, filepath.Join(dir, "truststore.jks"), m.TruststorePath)
	assert.Equal(t, "s3cret", m.Passphrase, "passphrase is trimmed")
}

func TestDirProviderMissingKeystore(t *testing.T) {
	dir, passFile := materialDir(t, 1)

	p, err := NewDirProvider(dir, passFile)
	require.NoError(t, err)

	_, err = p.MaterialFor(3)
	assert.ErrorContains(t, err, "keystore for node 3")
}

func TestDirProviderMissingTruststore(t *testing.T) {
	dir := t.TempDir()
	passFile := filepath.Join(dir, "passphrase")
	require.NoError(t, os.WriteFile(passFile, []byte("x"), 0o600))

	_, err := NewDirProvider(dir, passFile)
	assert.ErrorContains(t, err, "truststore not found")
}

func TestDirProviderEmptyPassphrase(t *testing.T) {
	dir, _ := materialDir(t, 1)
	passFile := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(passFile, []byte("  \n"), 0o600))

	_, err := NewDirProvider(dir, passFile)
	assert.ErrorContains(t, err, "is empty")
}
