package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/provisioning"
)

// PrintSummary writes a per-node run summary in ascending node-id order and
// returns the ids of the nodes that failed.
func PrintSummary(w io.Writer, topo *config.Topology, outcomes map[int]provisioning.Outcome) []int {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	ids := make([]int, 0, len(outcomes))
	for id := range outcomes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Provisioning summary:")

	var failed []int
	for _, id := range ids {
		outcome := outcomes[id]
		host := fmt.Sprintf("node-%d", id)
		if node, err := topo.Node(id); err == nil {
			host = node.Host
		}

		if outcome.Succeeded() {
			fmt.Fprintf(w, "  %s  %-20s configured and running\n", green("OK"), host)
			continue
		}

		failed = append(failed, id)
		marker := red("FAIL")
		if errors.Is(outcome.Err, context.Canceled) {
			marker = yellow("ABORT")
		}
		fmt.Fprintf(w, "  %s %-20s %s stage: %v\n", marker, host, outcome.Stage, outcome.Err)
	}

	if len(failed) == 0 {
		fmt.Fprintf(w, "\nAll %d nodes provisioned successfully.\n", len(ids))
	} else {
		fmt.Fprintf(w, "\n%d of %d nodes failed: %v\n", len(failed), len(ids), failed)
	}
	return failed
}
