package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLockLifecycle(t *testing.T) {
	dir := t.TempDir()
	lock := newInstanceLock(dir)

	running, err := lock.Acquire(InstanceInfo{NodeID: "node-1", Gateway: "ws://gw:18800/ws/node"})
	require.NoError(t, err)
	assert.Nil(t, running)

	stored, err := lock.read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), stored.PID)
	assert.Equal(t, "node-1", stored.NodeID)

	// a re-exec keeps the pid and must be able to take the lock again
	running, err = lock.Acquire(InstanceInfo{NodeID: "node-1"})
	require.NoError(t, err)
	assert.Nil(t, running)

	require.NoError(t, lock.Release())
	_, err = os.Stat(filepath.Join(dir, lockFileName))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, lock.Release())
}

func TestInstanceLockHeldByLiveProcess(t *testing.T) {
	dir := t.TempDir()
	other := &instanceLock{path: filepath.Join(dir, lockFileName), pid: os.Getppid()}
	_, err := other.Acquire(InstanceInfo{NodeID: "node-other"})
	require.NoError(t, err)

	running, err := newInstanceLock(dir).Acquire(InstanceInfo{NodeID: "node-1"})
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, "node-other", running.NodeID)

	assert.Error(t, newInstanceLock(dir).Release())
}

func TestInstanceLockStale(t *testing.T) {
	dir := t.TempDir()
	// pid 0 is never a live agent
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte(`{"pid":0,"nodeId":"gone"}`), 0o644))

	running, err := newInstanceLock(dir).Acquire(InstanceInfo{NodeID: "node-1"})
	require.NoError(t, err)
	assert.Nil(t, running)
}
