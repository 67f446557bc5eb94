package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("FORGEAI_GATEWAY", "https://gw.example.com")
	t.Setenv("FORGEAI_NODE_TOKEN", "tok")
	t.Setenv("FORGEAI_NODE_NAME", "greenhouse")
	t.Setenv("FORGEAI_STATE_DIR", t.TempDir())

	cfg, err := loadConfig(newViper(), "")
	require.NoError(t, err)

	assert.Equal(t, Target{Host: "gw.example.com", Port: 443, TLS: true, Path: "/ws/node"}, cfg.Gateway)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "greenhouse", cfg.NodeName)
	assert.Equal(t, 25*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 60*time.Second, cfg.TelemetryInterval)
	assert.Equal(t, Backoff{Base: 2 * time.Second, Max: 60 * time.Second}, cfg.Reconnect)
	assert.Equal(t, 5*time.Second, cfg.LinkRetry)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
	assert.False(t, cfg.AllowShell)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  host: 192.168.1.20
  port: 9000
  tls: false
node:
  token: from-file
  id: node-lab1
  tags: [lab, " arm ", lab]
heartbeat:
  interval: 10s
reconnect:
  base: 1s
  max: 30s
commands:
  allow_shell: true
log:
  level: debug
  format: json
state:
  dir: `+dir+`
`), 0o600))

	t.Setenv("FORGEAI_HEARTBEAT_INTERVAL", "15s")

	cfg, err := loadConfig(newViper(), path)
	require.NoError(t, err)

	assert.Equal(t, Target{Host: "192.168.1.20", Port: 9000, Path: "/ws/node"}, cfg.Gateway)
	assert.Equal(t, "from-file", cfg.Token)
	assert.Equal(t, "node-lab1", cfg.NodeID)
	assert.Equal(t, []string{"arm", "lab"}, cfg.Tags)
	// env wins over the file
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, Backoff{Base: time.Second, Max: 30 * time.Second}, cfg.Reconnect)
	assert.True(t, cfg.AllowShell)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, dir, cfg.StateDir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(newViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig()
	valid.Log.Level = "info"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no host", func(c *Config) { c.Gateway.Host = "" }},
		{"bad port", func(c *Config) { c.Gateway.Port = 70000 }},
		{"no token", func(c *Config) { c.Token = "" }},
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }},
		{"zero telemetry", func(c *Config) { c.TelemetryInterval = 0 }},
		{"max below base", func(c *Config) { c.Reconnect.Max = time.Second }},
		{"zero link retry", func(c *Config) { c.LinkRetry = 0 }},
		{"zero dial timeout", func(c *Config) { c.DialTimeout = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("FORGEAI_GATEWAY", "gw.local")
	t.Setenv("FORGEAI_STATE_DIR", t.TempDir())
	_, err := loadConfig(newViper(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestGatewayEnvForms(t *testing.T) {
	t.Setenv("FORGEAI_NODE_TOKEN", "tok")
	t.Setenv("FORGEAI_STATE_DIR", t.TempDir())

	t.Run("short form keeps the gateway section", func(t *testing.T) {
		t.Setenv("FORGEAI_GATEWAY", "http://10.0.0.5:18800")
		v := newViper()
		assert.Equal(t, "http://10.0.0.5:18800", v.GetString("gateway.url"))
		assert.Equal(t, defaultGatewayPath, v.GetString("gateway.path"))

		cfg, err := loadConfig(v, "")
		require.NoError(t, err)
		assert.Equal(t, Target{Host: "10.0.0.5", Port: 18800, Path: "/ws/node"}, cfg.Gateway)
	})

	t.Run("long form wins over short form", func(t *testing.T) {
		t.Setenv("FORGEAI_GATEWAY", "http://short:1")
		t.Setenv("FORGEAI_GATEWAY_URL", "wss://long.example.com/agents")
		cfg, err := loadConfig(newViper(), "")
		require.NoError(t, err)
		assert.Equal(t, Target{Host: "long.example.com", Port: 443, TLS: true, Path: "/agents"}, cfg.Gateway)
	})

	t.Run("host and port variables", func(t *testing.T) {
		t.Setenv("FORGEAI_GATEWAY_HOST", "gw.lan")
		t.Setenv("FORGEAI_GATEWAY_PORT", "9001")
		t.Setenv("FORGEAI_GATEWAY_TLS", "true")
		cfg, err := loadConfig(newViper(), "")
		require.NoError(t, err)
		assert.Equal(t, Target{Host: "gw.lan", Port: 9001, TLS: true, Path: "/ws/node"}, cfg.Gateway)
	})
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "FORGEAI_COMMANDS_ALLOW_SHELL", envName("commands.allow_shell"))
	assert.Equal(t, "FORGEAI_NODE_TOKEN", envName("node.token"))
}
