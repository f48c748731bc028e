package install

import (
	"path"

	"github.com/okatz/provisor/internal/config"
)

// Artifact is the set of paths that constitute one node's installation. It
// is created by the installer, mutated in place by the renderer, and read by
// the lifecycle controller.
type Artifact struct {
	Root         string
	Entrypoint   string
	ConfDir      string
	LibDir       string
	LogsDir      string
	Properties   string
	Bootstrap    string
	SecurityDir  string
	Repositories []string
}

// NewArtifact derives the artifact layout for an install root.
func NewArtifact(root string) Artifact {
	repos := make([]string, 0, len(config.RepositoryDirs))
	for _, dir := range config.RepositoryDirs {
		repos = append(repos, path.Join(root, dir))
	}
	return Artifact{
		Root:         root,
		Entrypoint:   path.Join(root, config.EntrypointPath),
		ConfDir:      path.Join(root, config.ConfDirPath),
		LibDir:       path.Join(root, config.LibDirPath),
		LogsDir:      path.Join(root, config.LogsDirPath),
		Properties:   path.Join(root, config.PropertiesFilePath),
		Bootstrap:    path.Join(root, config.BootstrapFilePath),
		SecurityDir:  path.Join(root, config.SecurityDirPath),
		Repositories: repos,
	}
}
