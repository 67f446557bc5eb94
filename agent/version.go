package main

import (
	"runtime/debug"
	"sync"
)

// agentVersion is set at build time with -ldflags "-X main.agentVersion=...".
var agentVersion string
var agentVersionOnce sync.Once

func getAgentVersion() string {
	agentVersionOnce.Do(func() {
		if agentVersion != "" {
			return
		}
		agentVersion = "dev"
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			agentVersion = info.Main.Version
		}
	})
	return agentVersion
}
