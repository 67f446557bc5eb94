package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// procfs reads kernel-exported files under root ("/" on a real device).
type procfs struct {
	root string
}

func (p procfs) path(elem ...string) string {
	return filepath.Join(append([]string{p.root}, elem...)...)
}

func (p procfs) read(elem ...string) string {
	return readFileTrim(p.path(elem...))
}

// meminfo returns MemTotal and MemAvailable in kB.
func (p procfs) meminfo() (total, available uint64, err error) {
	content := p.read("proc", "meminfo")
	if content == "" {
		return 0, 0, fmt.Errorf("meminfo unavailable")
	}
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = parseUint(fields[1])
		case "MemAvailable:":
			available = parseUint(fields[1])
		}
	}
	if total == 0 {
		return 0, 0, fmt.Errorf("meminfo has no MemTotal")
	}
	return total, available, nil
}

// cpuTimes returns the idle and total jiffies of the aggregate cpu line.
func (p procfs) cpuTimes() (idle, total uint64, err error) {
	content := p.read("proc", "stat")
	line, _, _ := strings.Cut(content, "\n")
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, fmt.Errorf("unexpected /proc/stat format")
	}
	for i, f := range fields[1:] {
		v := parseUint(f)
		total += v
		if i == 3 || i == 4 { // idle, iowait
			idle += v
		}
	}
	return idle, total, nil
}

func (p procfs) uptimeSeconds() int64 {
	fields := strings.Fields(p.read("proc", "uptime"))
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return int64(v)
}

// temperature reads thermal zone 0 in degrees Celsius.
func (p procfs) temperature() (float64, bool) {
	raw := p.read("sys", "class", "thermal", "thermal_zone0", "temp")
	if raw == "" {
		return 0, false
	}
	milli, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return milli / 1000, true
}

// cpuFreqMHz reads the current frequency of cpu0.
func (p procfs) cpuFreqMHz() (float64, bool) {
	raw := p.read("sys", "devices", "system", "cpu", "cpu0", "cpufreq", "scaling_cur_freq")
	if raw == "" {
		return 0, false
	}
	khz, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return khz / 1000, true
}

func readFileTrim(path string) string {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(bytes))
}

func parseUint(val string) uint64 {
	val = strings.TrimSpace(val)
	num, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0
	}
	return num
}
