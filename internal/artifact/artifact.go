// Package artifact models the distribution archive collaborator: a source
// that hands over a verified local archive path, and the format validation
// the installer performs before trusting it.
package artifact

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Source hands out the local path of the distribution archive. The real
// downloader lives outside this core; LocalSource covers the common case of
// an archive that is already on disk.
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// LocalSource returns a pre-existing local archive path.
type LocalSource struct {
	Path string
}

// Fetch implements Source.
func (s LocalSource) Fetch(_ context.Context) (string, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return "", fmt.Errorf("artifact archive not found: %w", err)
	}
	return s.Path, nil
}

// ErrNotArchive indicates the file is not a gzipped tar archive. A source
// claiming success while producing a non-archive file must be rejected and
// re-fetched rather than extracted.
var ErrNotArchive = errors.New("file is not a gzipped tar archive")

// Validate confirms the file is a readable gzipped tar archive and returns
// the name of its single top-level directory.
func Validate(path string) (string, error) {
	// #nosec G304
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotArchive, path)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	topLevel := ""
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: corrupt tar stream in %s", ErrNotArchive, path)
		}

		name := strings.TrimPrefix(hdr.Name, "./")
		if name == "" {
			continue
		}
		root, _, _ := strings.Cut(name, "/")
		if root == "" {
			continue
		}
		if topLevel == "" {
			topLevel = root
		} else if topLevel != root {
			return "", fmt.Errorf("archive %s has multiple top-level entries (%s, %s)", path, topLevel, root)
		}
	}

	if topLevel == "" {
		return "", fmt.Errorf("archive %s is empty", path)
	}
	return topLevel, nil
}
