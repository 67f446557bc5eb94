package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDockerPS(t *testing.T) {
	out := []byte(`{"Names":"web","Ports":"0.0.0.0:8080->80/tcp, :::8080->80/tcp"}
not json

{"Names":"worker","Ports":""}
`)
	containers := parseDockerPS(out)
	require.Len(t, containers, 2)
	assert.Equal(t, "web", containers[0].Name)
	assert.Equal(t, []string{"0.0.0.0:8080->80/tcp", ":::8080->80/tcp"}, containers[0].Ports)
	assert.Equal(t, "worker", containers[1].Name)
	assert.Empty(t, containers[1].Ports)
}

func fakeDocker(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "docker")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestDockerPSHandler(t *testing.T) {
	docker := fakeDocker(t, `echo '{"Names":"web","Ports":"0.0.0.0:80->80/tcp"}'`+"\n")
	out, err := dockerPSHandler(docker)(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "web\t0.0.0.0:80->80/tcp", out.Stdout)

	empty := fakeDocker(t, "exit 0\n")
	out, err = dockerPSHandler(empty)(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "no running containers", out.Stdout)
}

func TestDockerPSHandlerReportsStderr(t *testing.T) {
	docker := fakeDocker(t, "echo 'Cannot connect to the Docker daemon' >&2\nexit 1\n")
	_, err := dockerPSHandler(docker)(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot connect to the Docker daemon")
}
