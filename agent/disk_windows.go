//go:build windows

package main

import (
	"path/filepath"

	"golang.org/x/sys/windows"
)

// detectDiskUsage returns total and available bytes of the volume holding path.
func detectDiskUsage(path string) (uint64, uint64) {
	root := filepath.VolumeName(path) + `\`
	if root == `\` {
		root = `C:\`
	}
	p, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return 0, 0
	}
	var avail, total, free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &avail, &total, &free); err != nil {
		return 0, 0
	}
	return total, avail
}
