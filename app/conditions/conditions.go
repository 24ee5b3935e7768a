// Package conditions provides host-load checks gating scheduled sync triggers.
// A heavy sync shouldn't be kicked off while the machine is already busy.
package conditions

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Config defines thresholds a trigger requires before creating a job.
// Nil fields are not checked.
type Config struct {
	CPUBelow      *int           `yaml:"cpu_below,omitempty" json:"cpu_below,omitempty"`
	MemoryBelow   *int           `yaml:"memory_below,omitempty" json:"memory_below,omitempty"`
	LoadAvgBelow  *float64       `yaml:"loadavg_below,omitempty" json:"loadavg_below,omitempty"`
	DiskFreeAbove *int           `yaml:"disk_free_above,omitempty" json:"disk_free_above,omitempty"`
	DiskFreePath  string         `yaml:"disk_free_path,omitempty" json:"disk_free_path,omitempty"`
	MaxPostpone   *time.Duration `yaml:"max_postpone,omitempty" json:"max_postpone,omitempty"`
	CheckInterval *time.Duration `yaml:"check_interval,omitempty" json:"check_interval,omitempty"`
}

// Empty reports whether no thresholds are set
func (c Config) Empty() bool {
	return c.CPUBelow == nil && c.MemoryBelow == nil && c.LoadAvgBelow == nil && c.DiskFreeAbove == nil
}

// Checker verifies conditions against live system metrics
type Checker struct {
	cpuSampleTime time.Duration
}

// NewChecker makes a checker, sampleTime controls the CPU measurement window
func NewChecker(sampleTime time.Duration) *Checker {
	if sampleTime <= 0 {
		sampleTime = time.Second
	}
	return &Checker{cpuSampleTime: sampleTime}
}

// Check verifies if all conditions are met.
// Returns true if satisfied, false with reason otherwise.
func (c *Checker) Check(conditions Config) (bool, string) {
	if conditions.CPUBelow != nil {
		if ok, reason := c.checkCPU(*conditions.CPUBelow); !ok {
			return false, reason
		}
	}

	if conditions.MemoryBelow != nil {
		if ok, reason := c.checkMemory(*conditions.MemoryBelow); !ok {
			return false, reason
		}
	}

	if conditions.LoadAvgBelow != nil {
		if ok, reason := c.checkLoadAvg(*conditions.LoadAvgBelow); !ok {
			return false, reason
		}
	}

	if conditions.DiskFreeAbove != nil {
		path := conditions.DiskFreePath
		if path == "" {
			path = "/"
		}
		if ok, reason := c.checkDiskFree(*conditions.DiskFreeAbove, path); !ok {
			return false, reason
		}
	}

	return true, ""
}

// checkCPU checks if CPU usage is below threshold
func (c *Checker) checkCPU(threshold int) (bool, string) {
	cpuPercent, err := cpu.Percent(c.cpuSampleTime, false)
	if err != nil {
		return false, fmt.Sprintf("failed to get CPU: %v", err)
	}
	if len(cpuPercent) == 0 {
		return false, "no CPU data available"
	}
	current := int(cpuPercent[0])
	if current >= threshold {
		return false, fmt.Sprintf("CPU at %d%%, threshold %d%%", current, threshold)
	}
	return true, ""
}

// checkMemory checks if memory usage is below threshold
func (c *Checker) checkMemory(threshold int) (bool, string) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return false, fmt.Sprintf("failed to get memory: %v", err)
	}
	current := int(v.UsedPercent)
	if current >= threshold {
		return false, fmt.Sprintf("memory at %d%%, threshold %d%%", current, threshold)
	}
	return true, ""
}

// checkLoadAvg checks if load average is below threshold
func (c *Checker) checkLoadAvg(threshold float64) (bool, string) {
	loads, err := load.Avg()
	if err != nil {
		return false, fmt.Sprintf("failed to get load average: %v", err)
	}
	if loads.Load1 >= threshold {
		return false, fmt.Sprintf("load at %.2f, threshold %.2f", loads.Load1, threshold)
	}
	return true, ""
}

// checkDiskFree checks if disk free space is above threshold
func (c *Checker) checkDiskFree(minFreePercent int, path string) (bool, string) {
	usage, err := disk.Usage(path)
	if err != nil {
		return false, fmt.Sprintf("failed to get disk usage for %s: %v", path, err)
	}
	freePercent := 100 - int(usage.UsedPercent)
	if freePercent < minFreePercent {
		return false, fmt.Sprintf("disk free at %d%%, need %d%% on %s", freePercent, minFreePercent, path)
	}
	return true, ""
}
