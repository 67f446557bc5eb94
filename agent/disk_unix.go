//go:build !windows

package main

import "golang.org/x/sys/unix"

// detectDiskUsage returns total and available bytes of the filesystem at path.
func detectDiskUsage(path string) (uint64, uint64) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err == nil {
		total := uint64(stat.Blocks) * uint64(stat.Bsize)
		free := uint64(stat.Bavail) * uint64(stat.Bsize)
		return total, free
	}
	return 0, 0
}
