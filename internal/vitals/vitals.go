// Package vitals assembles a point-in-time snapshot of host resource
// state as a nested tree. Every probe is isolated: a failing category
// is logged and omitted, never aborting the collection cycle.
package vitals

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// Collector gathers the vitals tree. The statfs and mounts hooks are
// swappable for tests simulating partition-level failures.
type Collector struct {
	log    zerolog.Logger
	statfs StatfsFunc
	mounts MountsFunc
}

// StatfsFunc reports total/free/used bytes for a mountpoint.
type StatfsFunc func(path string) (total, free, used uint64, err error)

// MountsFunc lists mounted block-device filesystems.
type MountsFunc func() ([]Mount, error)

// Mount is one mounted filesystem.
type Mount struct {
	Device     string
	Mountpoint string
	Fstype     string
}

func NewCollector(log zerolog.Logger) *Collector {
	return &Collector{
		log:    log.With().Str("component", "vitals").Logger(),
		statfs: statfs,
		mounts: listMounts,
	}
}

// Collect builds the full vitals tree. Package inventories are only
// probed when the corresponding tool is installed.
func (c *Collector) Collect() map[string]any {
	info := map[string]any{}

	c.probe(info, "system_info", c.systemInfo)
	c.probe(info, "boot_time", c.bootTime)
	c.probe(info, "cpu_info", c.cpuInfo)
	c.probe(info, "memory_info", c.memoryInfo)
	c.probe(info, "swap_info", c.swapInfo)
	c.probe(info, "disk_info", c.diskInfo)
	c.probe(info, "network_info", c.networkInfo)

	if hasCommand("pip") {
		c.probe(info, "python_packages", c.pythonPackages)
	}
	if hasCommand("dpkg") {
		c.probe(info, "deb_packages", c.debPackages)
	}
	if hasCommand("rpm") {
		c.probe(info, "rpm_packages", c.rpmPackages)
	}

	return info
}

// probe runs one category probe; on failure the category is omitted.
func (c *Collector) probe(info map[string]any, name string, fn func() (any, error)) {
	value, err := fn()
	if err != nil {
		c.log.Warn().Err(err).Str("category", name).Msg("vitals probe failed")
		return
	}
	info[name] = value
}

func (c *Collector) systemInfo() (any, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("reading hostname: %w", err)
	}

	release, _ := runCommand("uname", "-r")
	version, _ := runCommand("uname", "-v")

	return map[string]any{
		"system":    runtime.GOOS,
		"node_name": hostname,
		"release":   release,
		"version":   version,
		"machine":   runtime.GOARCH,
		"processor": runtime.GOARCH,
	}, nil
}

func (c *Collector) networkInfo() (any, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	interfaces := map[string]any{}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			c.log.Warn().Err(err).Str("interface", iface.Name).Msg("skipping interface")
			continue
		}
		var addrInfo []map[string]any
		for _, addr := range addrs {
			entry := map[string]any{
				"address": addr.String(),
				"family":  addr.Network(),
			}
			addrInfo = append(addrInfo, entry)
		}
		interfaces[iface.Name] = addrInfo
	}

	hostname, _ := os.Hostname()
	ipAddress := ""
	if addrs, err := net.LookupHost(hostname); err == nil && len(addrs) > 0 {
		ipAddress = addrs[0]
	}

	info := map[string]any{
		"host_name":  hostname,
		"ip_address": ipAddress,
		"interfaces": interfaces,
	}
	if counters, err := netCounters(); err == nil {
		info["io_counters"] = counters
	}
	return info, nil
}

func (c *Collector) diskInfo() (any, error) {
	mounts, err := c.mounts()
	if err != nil {
		return nil, fmt.Errorf("listing mounts: %w", err)
	}

	partitions := []map[string]any{}
	for _, m := range mounts {
		total, free, used, err := c.statfs(m.Mountpoint)
		if err != nil {
			// One unreadable partition must not take out the
			// whole disk section.
			c.log.Warn().Err(err).Str("mountpoint", m.Mountpoint).Msg("skipping partition")
			continue
		}
		percentage := 0.0
		if total > 0 {
			percentage = float64(used) / float64(total) * 100
		}
		partitions = append(partitions, map[string]any{
			"device":     m.Device,
			"mountpoint": m.Mountpoint,
			"fstype":     m.Fstype,
			"total_size": humanSize(total),
			"used":       humanSize(used),
			"free":       humanSize(free),
			"percentage": percentage,
		})
	}

	info := map[string]any{"partitions": partitions}
	if counters, err := diskCounters(); err == nil {
		info["disk_io"] = counters
	}
	return info, nil
}

func (c *Collector) pythonPackages() (any, error) {
	out, err := runCommand("pip", "list")
	if err != nil {
		return nil, fmt.Errorf("pip list: %w", err)
	}
	lines := strings.Split(out, "\n")
	if len(lines) <= 2 {
		return [][]string{}, nil
	}
	packages := make([][]string, 0, len(lines)-2)
	for _, line := range lines[2:] {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			packages = append(packages, fields[:2])
		}
	}
	return packages, nil
}

func (c *Collector) debPackages() (any, error) {
	out, err := runCommand("dpkg", "-l")
	if err != nil {
		return nil, fmt.Errorf("dpkg -l: %w", err)
	}
	var packages [][]string
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "ii") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			packages = append(packages, []string{fields[1], fields[2]})
		}
	}
	return packages, nil
}

func (c *Collector) rpmPackages() (any, error) {
	out, err := runCommand("rpm", "-qa")
	if err != nil {
		return nil, fmt.Errorf("rpm -qa: %w", err)
	}
	return strings.Split(out, "\n"), nil
}

// humanSize renders a byte count with two decimals and a binary unit
// suffix, matching the service's display convention.
func humanSize(size uint64) string {
	const factor = 1024.0
	value := float64(size)
	for _, unit := range []string{"", "K", "M", "G", "T", "P"} {
		if value < factor {
			return fmt.Sprintf("%.2f%sB", value, unit)
		}
		value /= factor
	}
	return fmt.Sprintf("%.2fEB", value)
}

func hasCommand(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func runCommand(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
