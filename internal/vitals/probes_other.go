//go:build !linux

package vitals

import (
	"fmt"
	"runtime"
)

// Non-Linux hosts omit the procfs-backed categories; the collection
// cycle still emits everything it can probe.

func (c *Collector) bootTime() (any, error) {
	return nil, fmt.Errorf("boot time probe not supported on %s", runtime.GOOS)
}

func (c *Collector) cpuInfo() (any, error) {
	return map[string]any{
		"total_cores": runtime.NumCPU(),
	}, nil
}

func (c *Collector) memoryInfo() (any, error) {
	return nil, fmt.Errorf("memory probe not supported on %s", runtime.GOOS)
}

func (c *Collector) swapInfo() (any, error) {
	return nil, fmt.Errorf("swap probe not supported on %s", runtime.GOOS)
}

func statfs(path string) (total, free, used uint64, err error) {
	return 0, 0, 0, fmt.Errorf("statfs not supported on %s", runtime.GOOS)
}

func listMounts() ([]Mount, error) {
	return nil, fmt.Errorf("mount listing not supported on %s", runtime.GOOS)
}

func diskCounters() (map[string]any, error) {
	return nil, fmt.Errorf("disk counters not supported on %s", runtime.GOOS)
}

func netCounters() (map[string]any, error) {
	return nil, fmt.Errorf("network counters not supported on %s", runtime.GOOS)
}
