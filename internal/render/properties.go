package render

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/okatz/provisor/internal/target"
)

// PropertiesFile edits a key=value text configuration file on a node.
// Edits are line-anchored substitutions against an exact key match, so
// unrelated keys, including operator customizations, are never touched,
// and the file is only rewritten when something actually changed.
type PropertiesFile struct {
	path    string
	lines   []string
	changed bool
}

// LoadProperties reads the file from the node.
func LoadProperties(ctx context.Context, tgt target.Target, path string) (*PropertiesFile, error) {
	res, err := tgt.Run(ctx, fmt.Sprintf("cat %s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("failed to read %s: %s", path, strings.TrimSpace(res.Stderr))
	}

	return &PropertiesFile{
		path:  path,
		lines: strings.Split(res.Stdout, "\n"),
	}, nil
}

// Set replaces the value of an existing key or appends the pair when the key
// is absent. Matching is exact on the text before the first '=': "key=" does
// not match "key.suffix=" or "# key=".
func (f *PropertiesFile) Set(key, value string) {
	want := key + "=" + value
	for i, line := range f.lines {
		k, _, found := strings.Cut(line, "=")
		if !found || k != key {
			continue
		}
		if line != want {
			f.lines[i] = want
			f.changed = true
		}
		return
	}

	f.appendLine(want)
}

// Get returns the current value of a key, or empty when unset.
func (f *PropertiesFile) Get(key string) string {
	for _, line := range f.lines {
		k, v, found := strings.Cut(line, "=")
		if found && k == key {
			return v
		}
	}
	return ""
}

// AppendLineIfAbsent appends a raw line unless an identical line is already
// present. Re-running the renderer must never duplicate a GC flag.
func (f *PropertiesFile) AppendLineIfAbsent(line string) {
	for _, existing := range f.lines {
		if existing == line {
			return
		}
	}
	f.appendLine(line)
}

func (f *PropertiesFile) appendLine(line string) {
	// Keep the trailing newline at the end of the file.
	if n := len(f.lines); n > 0 && f.lines[n-1] == "" {
		f.lines = append(f.lines[:n-1], line, "")
	} else {
		f.lines = append(f.lines, line)
	}
	f.changed = true
}

// Changed reports whether any edit modified the content.
func (f *PropertiesFile) Changed() bool { return f.changed }

// Content returns the current file content.
func (f *PropertiesFile) Content() string { return strings.Join(f.lines, "\n") }

// Save writes the file back to the node if it changed.
func (f *PropertiesFile) Save(ctx context.Context, tgt target.Target) error {
	if !f.changed {
		return nil
	}

	tmp, err := os.CreateTemp("", "provisor-props-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(f.Content()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := tgt.Copy(ctx, tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.path, err)
	}

	f.changed = false
	return nil
}
