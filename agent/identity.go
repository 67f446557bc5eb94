package main

import (
	"net"
	"runtime"
	"sort"
	"strings"
)

// resolveNodeID picks the node id: the configured one, then one derived from
// the first hardware MAC, then the persisted random device id.
func resolveNodeID(configured, stateDir string, macs []string) (string, error) {
	if id := strings.TrimSpace(configured); id != "" {
		return id, nil
	}
	if id := nodeIDFromMAC(macs); id != "" {
		return id, nil
	}
	info, err := ensureDeviceInfo(stateDir)
	if err != nil {
		return "", err
	}
	return "node-" + info.DeviceID, nil
}

// nodeIDFromMAC returns "node-" plus the last three octets of the first usable MAC.
func nodeIDFromMAC(macs []string) string {
	for _, mac := range macs {
		hw, err := net.ParseMAC(mac)
		if err != nil || len(hw) < 3 || isZeroMAC(hw) {
			continue
		}
		tail := hw[len(hw)-3:]
		return "node-" + strings.ToLower(strings.ReplaceAll(net.HardwareAddr(tail).String(), ":", ""))
	}
	return ""
}

func isZeroMAC(hw net.HardwareAddr) bool {
	for _, b := range hw {
		if b != 0 {
			return false
		}
	}
	return true
}

func buildNodeInfo(nodeID, name string, capabilities, tags []string) NodeInfo {
	if capabilities == nil {
		capabilities = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	return NodeInfo{
		NodeID:       nodeID,
		Name:         name,
		Platform:     runtime.GOOS + "-" + runtime.GOARCH,
		Version:      getAgentVersion(),
		Capabilities: capabilities,
		Tags:         tags,
	}
}

// listInterfaces returns the hardware addresses of this host's non-loopback
// interfaces in kernel order.
func listInterfaces() []string {
	ifs, err := net.Interfaces()
	if err != nil {
		return nil
	}
	return hardwareAddrs(ifs)
}

func hardwareAddrs(ifs []net.Interface) []string {
	macs := []string{}
	for _, iface := range ifs {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		macs = append(macs, iface.HardwareAddr.String())
	}
	return macs
}

func mergeTags(sets ...[]string) []string {
	seen := map[string]struct{}{}
	for _, set := range sets {
		for _, t := range set {
			if t = strings.TrimSpace(t); t != "" {
				seen[t] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
