//go:build linux

package vitals

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func (c *Collector) bootTime() (any, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return nil, fmt.Errorf("reading /proc/stat: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "btime ") {
			continue
		}
		sec, err := strconv.ParseInt(strings.TrimSpace(line[len("btime "):]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing btime: %w", err)
		}
		return map[string]any{
			"boot_time": time.Unix(sec, 0).UTC().Format(time.RFC3339),
		}, nil
	}
	return nil, fmt.Errorf("btime not found in /proc/stat")
}

func (c *Collector) cpuInfo() (any, error) {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return nil, fmt.Errorf("reading /proc/cpuinfo: %w", err)
	}

	brand := ""
	frequency := 0.0
	physical := map[string]struct{}{}
	var physicalID, coreID string

	for _, line := range strings.Split(string(data), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "model name":
			if brand == "" {
				brand = value
			}
		case "cpu MHz":
			if frequency == 0 {
				frequency, _ = strconv.ParseFloat(value, 64)
			}
		case "physical id":
			physicalID = value
		case "core id":
			coreID = value
			physical[physicalID+":"+coreID] = struct{}{}
		}
	}

	physicalCores := len(physical)
	if physicalCores == 0 {
		physicalCores = runtime.NumCPU()
	}

	info := map[string]any{
		"cpu_brand":         brand,
		"physical_cores":    physicalCores,
		"total_cores":       runtime.NumCPU(),
		"current_frequency": frequency,
	}

	if perCore, total, err := cpuUsage(); err == nil {
		info["cpu_usage_per_core"] = perCore
		info["total_cpu_usage"] = total
	}
	return info, nil
}

func (c *Collector) memoryInfo() (any, error) {
	mem, err := readMeminfo()
	if err != nil {
		return nil, err
	}

	total := mem["MemTotal"]
	available := mem["MemAvailable"]
	used := total - available
	percentage := 0.0
	if total > 0 {
		percentage = float64(used) / float64(total) * 100
	}
	return map[string]any{
		"total":      humanSize(total),
		"available":  humanSize(available),
		"used":       humanSize(used),
		"percentage": percentage,
	}, nil
}

func (c *Collector) swapInfo() (any, error) {
	mem, err := readMeminfo()
	if err != nil {
		return nil, err
	}

	total := mem["SwapTotal"]
	free := mem["SwapFree"]
	used := total - free
	percentage := 0.0
	if total > 0 {
		percentage = float64(used) / float64(total) * 100
	}
	return map[string]any{
		"total":      humanSize(total),
		"free":       humanSize(free),
		"used":       humanSize(used),
		"percentage": percentage,
	}, nil
}

// readMeminfo returns /proc/meminfo values in bytes.
func readMeminfo() (map[string]uint64, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return nil, fmt.Errorf("reading /proc/meminfo: %w", err)
	}

	values := map[string]uint64{}
	for _, line := range strings.Split(string(data), "\n") {
		key, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		values[key] = kb * 1024
	}
	return values, nil
}

// cpuUsage samples /proc/stat twice and derives busy percentages.
func cpuUsage() ([]float64, float64, error) {
	first, err := readCPUStat()
	if err != nil {
		return nil, 0, err
	}
	time.Sleep(200 * time.Millisecond)
	second, err := readCPUStat()
	if err != nil {
		return nil, 0, err
	}

	var perCore []float64
	total := 0.0
	for i, after := range second {
		if i >= len(first) {
			break
		}
		usage := busyPercent(first[i], after)
		if i == 0 {
			total = usage
		} else {
			perCore = append(perCore, usage)
		}
	}
	return perCore, total, nil
}

type cpuSample struct{ busy, total uint64 }

// readCPUStat returns the aggregate sample first, then one per core.
func readCPUStat() ([]cpuSample, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return nil, err
	}

	var samples []cpuSample
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "cpu") {
			continue
		}
		fields := strings.Fields(line)
		var sample cpuSample
		for i, field := range fields[1:] {
			v, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				continue
			}
			sample.total += v
			// idle and iowait are fields 4 and 5 of the line.
			if i != 3 && i != 4 {
				sample.busy += v
			}
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func busyPercent(before, after cpuSample) float64 {
	dTotal := float64(after.total - before.total)
	if dTotal <= 0 {
		return 0
	}
	return float64(after.busy-before.busy) / dTotal * 100
}

func statfs(path string) (total, free, used uint64, err error) {
	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		return 0, 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(fs.Bsize)
	total = fs.Blocks * bsize
	free = fs.Bavail * bsize
	used = (fs.Blocks - fs.Bfree) * bsize
	return total, free, used, nil
}

// listMounts reads block-device mounts from /proc/mounts.
func listMounts() ([]Mount, error) {
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return nil, fmt.Errorf("reading /proc/mounts: %w", err)
	}

	var mounts []Mount
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		mounts = append(mounts, Mount{
			Device:     fields[0],
			Mountpoint: fields[1],
			Fstype:     fields[2],
		})
	}
	return mounts, nil
}

func diskCounters() (map[string]any, error) {
	data, err := os.ReadFile("/proc/diskstats")
	if err != nil {
		return nil, fmt.Errorf("reading /proc/diskstats: %w", err)
	}

	const sectorSize = 512
	var read, written uint64
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 10 {
			continue
		}
		// Whole devices only; partitions end in a digit after a
		// letter prefix (sda1, nvme0n1p1).
		name := fields[2]
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
			continue
		}
		sectorsRead, _ := strconv.ParseUint(fields[5], 10, 64)
		sectorsWritten, _ := strconv.ParseUint(fields[9], 10, 64)
		read += sectorsRead * sectorSize
		written += sectorsWritten * sectorSize
	}
	return map[string]any{
		"total_read":  humanSize(read),
		"total_write": humanSize(written),
	}, nil
}

func netCounters() (map[string]any, error) {
	data, err := os.ReadFile("/proc/net/dev")
	if err != nil {
		return nil, fmt.Errorf("reading /proc/net/dev: %w", err)
	}

	var sent, received uint64
	for _, line := range strings.Split(string(data), "\n") {
		_, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 9 {
			continue
		}
		rx, _ := strconv.ParseUint(fields[0], 10, 64)
		tx, _ := strconv.ParseUint(fields[8], 10, 64)
		received += rx
		sent += tx
	}
	return map[string]any{
		"bytes_sent": humanSize(sent),
		"bytes_recv": humanSize(received),
	}, nil
}
