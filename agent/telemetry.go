package main

import (
	"math"
	"os"
)

// Collector produces one telemetry sample.
type Collector interface {
	Collect() SysInfo
}

// systemCollector reads telemetry from procfs and the root filesystem.
// CPU usage is the delta between two consecutive calls, so the first sample
// reports 0.
type systemCollector struct {
	proc     procfs
	diskPath string
	hostname string
	ip       func() string

	prevIdle  uint64
	prevTotal uint64
}

func newSystemCollector(hostname string) *systemCollector {
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	return &systemCollector{
		proc:     procfs{root: "/"},
		diskPath: "/",
		hostname: hostname,
		ip:       localIPv4,
	}
}

func (c *systemCollector) Collect() SysInfo {
	info := SysInfo{
		Hostname:      c.hostname,
		IPAddress:     c.ip(),
		UptimeSeconds: c.proc.uptimeSeconds(),
	}
	if info.IPAddress == "" {
		info.IPAddress = "0.0.0.0"
	}

	if total, avail, err := c.proc.meminfo(); err == nil {
		info.MemTotalMB = round(float64(total)/1024, 2)
		info.MemUsedMB = round(float64(total-min(avail, total))/1024, 2)
	}

	if total, free := detectDiskUsage(c.diskPath); total > 0 {
		info.DiskTotalGB = round(float64(total)/(1<<30), 3)
		info.DiskUsedGB = round(float64(total-min(free, total))/(1<<30), 3)
	}

	if idle, total, err := c.proc.cpuTimes(); err == nil {
		if c.prevTotal > 0 && total > c.prevTotal {
			idleDelta := float64(idle - min(c.prevIdle, idle))
			totalDelta := float64(total - c.prevTotal)
			info.CPUPercent = round((1-idleDelta/totalDelta)*100, 1)
		}
		c.prevIdle, c.prevTotal = idle, total
	}

	if t, ok := c.proc.temperature(); ok {
		t = round(t, 1)
		info.TempCelsius = &t
	}
	if f, ok := c.proc.cpuFreqMHz(); ok {
		info.CPUFreqMHz = &f
	}
	return info
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
