package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const dockerTimeout = 3 * time.Second

// psRow is the subset of `docker ps --format '{{json .}}'` the agent reports.
type psRow struct {
	Names string `json:"Names"`
	Ports string `json:"Ports"`
}

// listDockerContainers returns the running containers and their published
// ports as reported by `docker ps`.
func listDockerContainers(ctx context.Context, docker string) ([]DockerContainer, error) {
	ctx, cancel := context.WithTimeout(ctx, dockerTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, docker, "ps", "--format", "{{json .}}") // #nosec G204
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return nil, fmt.Errorf("docker ps: %s", detail)
		}
		return nil, fmt.Errorf("docker ps: %w", err)
	}
	return parseDockerPS(stdout.Bytes()), nil
}

// parseDockerPS decodes one JSON object per line. Rows that do not decode
// are skipped.
func parseDockerPS(out []byte) []DockerContainer {
	containers := []DockerContainer{}
	for _, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var row psRow
		if json.Unmarshal(line, &row) != nil || row.Names == "" {
			continue
		}
		containers = append(containers, DockerContainer{Name: row.Names, Ports: splitPorts(row.Ports)})
	}
	return containers
}

func splitPorts(raw string) []string {
	var ports []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ports = append(ports, p)
		}
	}
	return ports
}

func dockerPSHandler(docker string) Handler {
	return func(ctx context.Context, _ []string) (Output, error) {
		containers, err := listDockerContainers(ctx, docker)
		if err != nil {
			return Output{}, err
		}
		if len(containers) == 0 {
			return Output{Stdout: "no running containers"}, nil
		}
		lines := make([]string, 0, len(containers))
		for _, c := range containers {
			lines = append(lines, c.Name+"\t"+strings.Join(c.Ports, ", "))
		}
		return Output{Stdout: strings.Join(lines, "\n")}, nil
	}
}
