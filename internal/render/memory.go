package render

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/okatz/provisor/internal/config"
	"github.com/okatz/provisor/internal/target"
)

// MemoryPlan is the derived heap sizing for one node, in megabytes for
// arithmetic and as unit strings for writing into config.
type MemoryPlan struct {
	TotalMB    int
	UsableMB   int
	InitHeapMB int
	MaxHeapMB  int
	InitHeap   string // e.g. "1g"
	MaxHeap    string // e.g. "2g"
}

// ComputePlan derives the heap sizing from total memory and a usable
// percentage. The 40/80 split leaves young/old generation headroom without
// under- or over-committing a shared host: init heap is 40% of usable
// memory (floor 1g), max heap 80% (floor 2g), and max is raised to init+1g
// when the two would land within the same gigabyte.
func ComputePlan(totalMB, percent int) MemoryPlan {
	usable := totalMB * percent / 100

	initMB := usable * 40 / 100
	maxMB := usable * 80 / 100

	initGB := initMB / 1024
	if initGB < 1 {
		initGB = 1
	}
	maxGB := maxMB / 1024
	if maxGB < 2 {
		maxGB = 2
	}
	if maxGB-initGB < 1 {
		maxGB = initGB + 1
	}

	return MemoryPlan{
		TotalMB:    totalMB,
		UsableMB:   usable,
		InitHeapMB: initMB,
		MaxHeapMB:  maxMB,
		InitHeap:   fmt.Sprintf("%dg", initGB),
		MaxHeap:    fmt.Sprintf("%dg", maxGB),
	}
}

// FixedPlan wraps an operator-supplied heap pair, bypassing the percentage
// policy entirely.
func FixedPlan(initHeap, maxHeap string) MemoryPlan {
	return MemoryPlan{InitHeap: initHeap, MaxHeap: maxHeap}
}

// PlanFor resolves the memory plan for one node according to the configured
// policy: an explicit operator pair wins, then detected system memory when
// the detect policy is selected, otherwise the fixed total constant.
func PlanFor(ctx context.Context, tgt target.Target, memCfg config.MemoryConfig) (MemoryPlan, error) {
	if memCfg.InitHeap != "" && memCfg.MaxHeap != "" {
		return FixedPlan(memCfg.InitHeap, memCfg.MaxHeap), nil
	}

	totalMB := memCfg.TotalMB
	if memCfg.Policy == config.MemoryPolicyDetect {
		detected, err := detectTotalMB(ctx, tgt)
		if err != nil {
			return MemoryPlan{}, fmt.Errorf("failed to detect system memory: %w", err)
		}
		totalMB = detected
	}

	return ComputePlan(totalMB, memCfg.Percent), nil
}

// detectTotalMB reads actual system memory: gopsutil in-process for the
// local machine, free(1) over the wire for remote nodes.
func detectTotalMB(ctx context.Context, tgt target.Target) (int, error) {
	if tgt.IsLocal() {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, err
		}
		return int(vm.Total / (1024 * 1024)), nil
	}

	out, err := target.Output(ctx, tgt, "free -m | awk '/^Mem:/{print $2}'")
	if err != nil {
		return 0, err
	}
	totalMB, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected free(1) output %q: %w", out, err)
	}
	return totalMB, nil
}
