package main

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOSRelease(t *testing.T) {
	name, version := parseOSRelease(`NAME="Debian GNU/Linux"
VERSION_ID="12"
VERSION="12 (bookworm)"
PRETTY_NAME="Debian GNU/Linux 12 (bookworm)"
`)
	assert.Equal(t, "Debian GNU/Linux 12 (bookworm)", name)
	assert.Equal(t, "12 (bookworm)", version)

	name, _ = parseOSRelease("NAME=Alpine Linux\n")
	assert.Equal(t, "Alpine Linux", name)
}

func TestDetectCPUNameFromCPUInfo(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("cpuinfo is linux only")
	}
	p := fakeRoot(t, map[string]string{
		"proc/cpuinfo": "processor\t: 0\nBogoMIPS\t: 108.00\n\nModel\t\t: Raspberry Pi 4 Model B Rev 1.4\n",
	})
	assert.Equal(t, "Raspberry Pi 4 Model B Rev 1.4", detectCPUName(p))

	x86 := fakeRoot(t, map[string]string{"proc/cpuinfo": "model name\t: Intel(R) Core(TM) i5\n"})
	assert.Equal(t, "Intel(R) Core(TM) i5", detectCPUName(x86))
}

func TestOSInfoString(t *testing.T) {
	info := OSInfo{OS: "Debian", Version: "12", Arch: "arm64", Cores: 4}
	assert.Equal(t, "OS: Debian 12\nCPU: unknown\nArch: arm64\nCores: 4", info.String())
}

func TestParseFieldsKeepsFirstKey(t *testing.T) {
	kv := parseFields("a = 1\nb: x\na = 2\n= orphan\nno separator\n", "=")
	assert.Equal(t, map[string]string{"a": "1"}, kv)
}
