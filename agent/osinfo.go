package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const probeTimeout = 2 * time.Second

// OSInfo is the static description reported by the osinfo command.
type OSInfo struct {
	OS      string
	Version string
	CPU     string
	Arch    string
	Cores   int
}

func (i OSInfo) String() string {
	cpu := i.CPU
	if cpu == "" {
		cpu = "unknown"
	}
	return fmt.Sprintf("OS: %s %s\nCPU: %s\nArch: %s\nCores: %d", i.OS, i.Version, cpu, i.Arch, i.Cores)
}

func collectOSInfo(proc procfs) OSInfo {
	info := OSInfo{Arch: runtime.GOARCH, Cores: runtime.NumCPU()}

	switch runtime.GOOS {
	case "linux":
		info.OS, info.Version = parseOSRelease(proc.read("etc", "os-release"))
		if info.OS == "" {
			info.OS, info.Version = "Linux", probe("uname", "-r")
		}
		info.CPU = detectCPUName(proc)
	case "darwin":
		info.OS = probe("sw_vers", "-productName")
		if info.OS == "" {
			info.OS = "macOS"
		}
		info.Version = probe("sw_vers", "-productVersion")
		info.CPU = probe("sysctl", "-n", "machdep.cpu.brand_string")
	default:
		info.OS = runtime.GOOS
	}
	return info
}

// parseOSRelease returns the display name and version from os-release
// content. PRETTY_NAME wins over NAME.
func parseOSRelease(content string) (name, version string) {
	kv := parseFields(content, "=")
	name = kv["PRETTY_NAME"]
	if name == "" {
		name = kv["NAME"]
	}
	return name, kv["VERSION"]
}

// detectCPUName reads the CPU model from cpuinfo: "model name" on x86,
// "Model" on Raspberry Pi boards.
func detectCPUName(proc procfs) string {
	kv := parseFields(proc.read("proc", "cpuinfo"), ":")
	for _, key := range []string{"model name", "Model"} {
		if v := kv[key]; v != "" {
			return v
		}
	}
	return ""
}

// parseFields splits each line at the first sep. Keys and values are
// trimmed and values unquoted; the first occurrence of a key wins.
func parseFields(content, sep string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, sep)
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := out[key]; seen || key == "" {
			continue
		}
		out[key] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return out
}

// probe runs a short host command and returns its trimmed stdout, or "" on
// any failure.
func probe(name string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output() // #nosec G204
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
