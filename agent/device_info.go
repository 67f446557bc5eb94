package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const deviceInfoFile = "device-info.json"

type DeviceInfo struct {
	DeviceID string `json:"deviceId"`
}

// defaultStateDir is where the device id and lock live when state.dir is unset.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".forgeai-node")
	}
	return filepath.Join(home, ".forgeai-node")
}

// ensureDeviceInfo loads the persisted device id from dir, creating it on first run.
func ensureDeviceInfo(dir string) (DeviceInfo, error) {
	path := filepath.Join(dir, deviceInfoFile)

	if data, err := os.ReadFile(path); err == nil {
		var info DeviceInfo
		if json.Unmarshal(data, &info) == nil && info.DeviceID != "" {
			return info, nil
		}
	}

	info := DeviceInfo{DeviceID: uuid.NewString()}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return DeviceInfo{}, err
	}

	payload, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return DeviceInfo{}, err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return DeviceInfo{}, err
	}
	return info, nil
}
