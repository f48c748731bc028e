// Package config holds the cluster configuration model: the declarative
// provisioning settings loaded from YAML, the persisted node topology, and
// the timeout/retry knobs read from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	ClusterName string `mapstructure:"cluster_name" yaml:"cluster_name"`

	Install  InstallConfig  `mapstructure:"install" yaml:"install"`
	Service  ServiceConfig  `mapstructure:"service" yaml:"service"`
	Ports    PortsConfig    `mapstructure:"ports" yaml:"ports"`
	Memory   MemoryConfig   `mapstructure:"memory" yaml:"memory"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
	Runtime  RuntimeConfig  `mapstructure:"runtime" yaml:"runtime"`
	SSH      SSHConfig      `mapstructure:"ssh" yaml:"ssh"`

	// Nodes is the declarative target host list. It is expanded into a
	// validated Topology by Topology().
	Nodes []NodeSpec `mapstructure:"nodes" yaml:"nodes"`

	// TopologyFile is where the node list is persisted between runs.
	TopologyFile string `mapstructure:"topology_file" yaml:"topology_file"`

	// LogDir receives the persistent per-run log files.
	LogDir string `mapstructure:"log_dir" yaml:"log_dir"`
}

// InstallConfig describes where the artifact lives and where it is installed.
type InstallConfig struct {
	ParentDir string `mapstructure:"parent_dir" yaml:"parent_dir"`
	DirName   string `mapstructure:"dir_name" yaml:"dir_name"`

	// ArchivePath is the local path to the verified distribution archive,
	// as handed over by the artifact downloader collaborator.
	ArchivePath string `mapstructure:"archive_path" yaml:"archive_path"`

	// ArchiveDirPrefix is the name prefix of the single top-level directory
	// the archive extracts to. Extraction locates it by pattern rather than
	// assuming a fixed name.
	ArchiveDirPrefix string `mapstructure:"archive_dir_prefix" yaml:"archive_dir_prefix"`

	// ForceReinstall makes complete installs take the full
	// teardown-and-replace path instead of being reused.
	ForceReinstall bool `mapstructure:"force_reinstall" yaml:"force_reinstall"`
}

// Root returns the absolute install root directory.
func (c InstallConfig) Root() string {
	return filepath.Join(c.ParentDir, c.DirName)
}

// ServiceConfig describes the service-manager unit and the account the
// service runs as.
type ServiceConfig struct {
	UnitName string `mapstructure:"unit_name" yaml:"unit_name"`
	User     string `mapstructure:"user" yaml:"user"`
	Group    string `mapstructure:"group" yaml:"group"`

	// RunAsRoot skips service-account creation and runs the service as a
	// privileged account. Explicit opt-in only.
	RunAsRoot bool `mapstructure:"run_as_root" yaml:"run_as_root"`
}

// PortsConfig holds the service's well-known ports.
type PortsConfig struct {
	Web          int `mapstructure:"web" yaml:"web"`
	Cluster      int `mapstructure:"cluster" yaml:"cluster"`
	Coordination int `mapstructure:"coordination" yaml:"coordination"`
}

// MemoryPolicy selects how total system memory is determined for heap sizing.
type MemoryPolicy string

const (
	// MemoryPolicyFixed uses the configured total_mb constant.
	MemoryPolicyFixed MemoryPolicy = "fixed"
	// MemoryPolicyDetect detects actual system memory on each node.
	MemoryPolicyDetect MemoryPolicy = "detect"
)

// MemoryConfig drives heap sizing for the managed service.
type MemoryConfig struct {
	Policy  MemoryPolicy `mapstructure:"policy" yaml:"policy"`
	TotalMB int          `mapstructure:"total_mb" yaml:"total_mb"`
	Percent int          `mapstructure:"percent" yaml:"percent"`

	// InitHeap/MaxHeap, when both set, bypass the percentage policy with a
	// fixed operator-supplied pair (e.g. "2g"/"4g").
	InitHeap string `mapstructure:"init_heap" yaml:"init_heap"`
	MaxHeap  string `mapstructure:"max_heap" yaml:"max_heap"`
}

// SecurityConfig points at the material produced by the certificate
// authority collaborator.
type SecurityConfig struct {
	// MaterialDir contains one keystore per node plus the shared truststore.
	MaterialDir string `mapstructure:"material_dir" yaml:"material_dir"`

	// PassphraseFile holds the shared store passphrase.
	PassphraseFile string `mapstructure:"passphrase_file" yaml:"passphrase_file"`
}

// RuntimeConfig describes the managed runtime prerequisite.
type RuntimeConfig struct {
	MajorVersion int      `mapstructure:"major_version" yaml:"major_version"`
	SearchDirs   []string `mapstructure:"search_dirs" yaml:"search_dirs"`
	InstallCmd   string   `mapstructure:"install_cmd" yaml:"install_cmd"`
}

// SSHConfig holds connection settings for remote nodes.
type SSHConfig struct {
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path"`
	Port           int    `mapstructure:"port" yaml:"port"`
}

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	if err := mapstructure.Decode(rawConfig, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Install.ParentDir == "" {
		c.Install.ParentDir = DefaultParentDir
	}
	if c.Install.DirName == "" {
		c.Install.DirName = DefaultDirName
	}
	if c.Install.ArchiveDirPrefix == "" {
		c.Install.ArchiveDirPrefix = c.Install.DirName
	}
	if c.Service.UnitName == "" {
		c.Service.UnitName = DefaultUnitName
	}
	if c.Service.User == "" {
		c.Service.User = DefaultServiceUser
	}
	if c.Service.Group == "" {
		c.Service.Group = c.Service.User
	}
	if c.Ports.Web == 0 {
		c.Ports.Web = DefaultWebPort
	}
	if c.Ports.Cluster == 0 {
		c.Ports.Cluster = DefaultClusterPort
	}
	if c.Ports.Coordination == 0 {
		c.Ports.Coordination = DefaultCoordinationPort
	}
	if c.Memory.Policy == "" {
		c.Memory.Policy = MemoryPolicyFixed
	}
	if c.Memory.TotalMB == 0 {
		c.Memory.TotalMB = 8192
	}
	if c.Memory.Percent == 0 {
		c.Memory.Percent = 75
	}
	if c.Runtime.MajorVersion == 0 {
		c.Runtime.MajorVersion = 11
	}
	if len(c.Runtime.SearchDirs) == 0 {
		c.Runtime.SearchDirs = []string{"/usr/lib/jvm", "/opt/java"}
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	if c.TopologyFile == "" {
		c.TopologyFile = TopologyFileName
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fmt.Errorf("cluster_name is required")
	}
	if c.Memory.Policy != MemoryPolicyFixed && c.Memory.Policy != MemoryPolicyDetect {
		return fmt.Errorf("memory.policy must be %q or %q, got %q",
			MemoryPolicyFixed, MemoryPolicyDetect, c.Memory.Policy)
	}
	if c.Memory.Percent < 1 || c.Memory.Percent > 100 {
		return fmt.Errorf("memory.percent must be in 1..100, got %d", c.Memory.Percent)
	}
	if (c.Memory.InitHeap == "") != (c.Memory.MaxHeap == "") {
		return fmt.Errorf("memory.init_heap and memory.max_heap must be set together")
	}
	if !filepath.IsAbs(c.Install.ParentDir) {
		return fmt.Errorf("install.parent_dir must be absolute, got %q", c.Install.ParentDir)
	}
	if len(c.Nodes) > 0 {
		if _, err := NewTopology(c.Nodes); err != nil {
			return fmt.Errorf("invalid node list: %w", err)
		}
	}
	return nil
}

// Topology expands the declarative node list into a validated topology.
func (c *Config) Topology() (*Topology, error) {
	if len(c.Nodes) == 0 {
		return nil, fmt.Errorf("no nodes declared in configuration")
	}
	return NewTopology(c.Nodes)
}
