package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okatz/provisor/internal/target"
)

func loadFixture(t *testing.T, content string) (*PropertiesFile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.properties")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := LoadProperties(context.Background(), target.NewLocalTarget("localhost"), path)
	require.NoError(t, err)
	return f, path
}

func TestSetReplacesExactKeyOnly(t *testing.T) {
	f, _ := loadFixture(t, "flow.web.https.host=\nflow.web.https.host.extra=untouched\n# flow.web.https.host=commented\n")

	f.Set("flow.web.https.host", "10.0.0.11")

	assert.Equal(t,
		"flow.web.https.host=10.0.0.11\nflow.web.https.host.extra=untouched\n# flow.web.https.host=commented\n",
		f.Content())
}

func TestSetAppendsMissingKey(t *testing.T) {
	f, _ := loadFixture(t, "existing=1\n")

	f.Set("added", "2")

	assert.Equal(t, "existing=1\nadded=2\n", f.Content())
}

func TestSetUnchangedValueDoesNotMarkChanged(t *testing.T) {
	f, _ := loadFixture(t, "key=value\n")

	f.Set("key", "value")

	assert.False(t, f.Changed())
}

func TestAppendLineIfAbsent(t *testing.T) {
	f, _ := loadFixture(t, "java.arg.2=-Xms1g\n")

	f.AppendLineIfAbsent("java.arg.13=-XX:+UseG1GC")
	f.AppendLineIfAbsent("java.arg.13=-XX:+UseG1GC")

	assert.Equal(t, "java.arg.2=-Xms1g\njava.arg.13=-XX:+UseG1GC\n", f.Content())
}

func TestGet(t *testing.T) {
	f, _ := loadFixture(t, "a=1\nb=\n")

	assert.Equal(t, "1", f.Get("a"))
	assert.Equal(t, "", f.Get("b"))
	assert.Equal(t, "", f.Get("missing"))
}

func TestSaveOnlyWhenChanged(t *testing.T) {
	f, path := loadFixture(t, "a=1\n")
	tgt := target.NewLocalTarget("localhost")

	info, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, f.Save(context.Background(), tgt), "unchanged file save is a no-op")
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime())

	f.Set("a", "2")
	require.NoError(t, f.Save(context.Background(), tgt))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a=2\n", string(data))
	assert.False(t, f.Changed(), "save resets the dirty flag")
}

func TestLoadPropertiesMissingFile(t *testing.T) {
	_, err := LoadProperties(context.Background(), target.NewLocalTarget("localhost"),
		filepath.Join(t.TempDir(), "absent.properties"))
	assert.Error(t, err)
}
