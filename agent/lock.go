package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const lockFileName = "forgeai-node.lock"

// InstanceInfo is written to the lock file by the running agent.
type InstanceInfo struct {
	PID     int    `json:"pid"`
	NodeID  string `json:"nodeId"`
	Gateway string `json:"gateway"`
}

// instanceLock guards against two agents driving the same device.
type instanceLock struct {
	path string
	pid  int
}

func newInstanceLock(dir string) *instanceLock {
	if dir == "" {
		dir = os.TempDir()
	}
	return &instanceLock{path: filepath.Join(dir, lockFileName), pid: os.Getpid()}
}

// Acquire writes info to the lock file. It returns the running instance when
// another live process holds the lock. A lock written by this pid is treated
// as ours, which covers the reboot capability re-executing the binary.
func (l *instanceLock) Acquire(info InstanceInfo) (*InstanceInfo, error) {
	info.PID = l.pid

	existing, err := l.read()
	if err == nil && existing.PID != l.pid && processRunning(existing.PID) {
		return existing, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	// Best-effort overwrite if stale; if another process races we will fail.
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write lock: %w", err)
	}
	return nil, nil
}

// Release removes the lock file if this process owns it.
func (l *instanceLock) Release() error {
	info, err := l.read()
	if err != nil {
		// Nothing to release.
		return nil
	}
	if info.PID != l.pid {
		return errors.New("lock owned by another process")
	}
	return os.Remove(l.path)
}

func (l *instanceLock) read() (*InstanceInfo, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var info InstanceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
