package config

// Well-known service ports. The web port serves the HTTPS status API, the
// cluster port carries node-to-node protocol traffic, and the coordination
// port is where every node reaches the coordination service.
const (
	DefaultWebPort          = 8443
	DefaultClusterPort      = 11443
	DefaultCoordinationPort = 2181
)

// Default filesystem layout of an installed flow server.
const (
	DefaultParentDir   = "/opt/flow"
	DefaultDirName     = "flow-server"
	DefaultUnitName    = "flow-server"
	DefaultServiceUser = "flowsvc"
)

// Relative paths inside an install root that make up a working installation.
// The prober treats EntrypointPath plus the two critical config files as the
// markers of a complete install.
const (
	EntrypointPath     = "bin/flow-server.sh"
	ConfDirPath        = "conf"
	LibDirPath         = "lib"
	LogsDirPath        = "logs"
	PropertiesFilePath = "conf/flow.properties"
	BootstrapFilePath  = "conf/bootstrap.conf"
	SecurityDirPath    = "conf/security"
)

// RepositoryDirs are the data repository directories created under the
// install root. The renderer always rewrites their configured locations to
// absolute paths.
var RepositoryDirs = []string{
	"content_repository",
	"event_repository",
	"state_repository",
	"metadata_repository",
}

// TopologyFileName is the default name of the persisted node list.
const TopologyFileName = "cluster-nodes.env"
