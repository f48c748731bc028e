package provisioning

import "fmt"

// Stage identifies the pipeline component a per-node outcome refers to.
type Stage string

const (
	StageConnectivity Stage = "connectivity"
	StageProbe        Stage = "probe"
	StageInstall      Stage = "install"
	StageConfigure    Stage = "configure"
	StageActivate     Stage = "activate"
)

// Outcome is the terminal result of one node's provisioning pass.
type Outcome struct {
	NodeID int
	Stage  Stage // empty on success
	Err    error // nil on success
}

// Succeeded reports whether the node completed the full pipeline.
func (o Outcome) Succeeded() bool { return o.Err == nil }

func (o Outcome) String() string {
	if o.Succeeded() {
		return fmt.Sprintf("node %d: success", o.NodeID)
	}
	return fmt.Sprintf("node %d: failed at %s: %v", o.NodeID, o.Stage, o.Err)
}

// Success returns a successful outcome for the node.
func Success(nodeID int) Outcome {
	return Outcome{NodeID: nodeID}
}

// Failed returns a failed outcome attributed to the given stage.
func Failed(nodeID int, stage Stage, err error) Outcome {
	return Outcome{NodeID: nodeID, Stage: stage, Err: err}
}

// AllSucceeded reports whether every recorded outcome succeeded.
func AllSucceeded(outcomes map[int]Outcome) bool {
	for _, o := range outcomes {
		if !o.Succeeded() {
			return false
		}
	}
	return len(outcomes) > 0
}
