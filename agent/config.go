package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "FORGEAI"

// Config is the validated, read-only agent configuration.
type Config struct {
	Gateway           Target
	Token             string
	NodeID            string
	NodeName          string
	Tags              []string
	HeartbeatInterval time.Duration
	TelemetryInterval time.Duration
	Reconnect         Backoff
	LinkRetry         time.Duration
	DialTimeout       time.Duration
	AllowShell        bool
	StateDir          string
	Log               LogConfig
}

type fileConfig struct {
	Gateway struct {
		URL  string `mapstructure:"url"`
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
		TLS  bool   `mapstructure:"tls"`
		Path string `mapstructure:"path"`
	} `mapstructure:"gateway"`
	Node struct {
		Token string   `mapstructure:"token"`
		ID    string   `mapstructure:"id"`
		Name  string   `mapstructure:"name"`
		Tags  []string `mapstructure:"tags"`
	} `mapstructure:"node"`
	Heartbeat struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"heartbeat"`
	Telemetry struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"telemetry"`
	Reconnect struct {
		Base time.Duration `mapstructure:"base"`
		Max  time.Duration `mapstructure:"max"`
	} `mapstructure:"reconnect"`
	Link struct {
		Retry time.Duration `mapstructure:"retry"`
	} `mapstructure:"link"`
	Dial struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"dial"`
	Commands struct {
		AllowShell bool `mapstructure:"allow_shell"`
	} `mapstructure:"commands"`
	Log   LogConfig `mapstructure:"log"`
	State struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"state"`
}

// newViper returns a viper instance with defaults and FORGEAI_ env binding.
// Every leaf key is bound to its own variable (node.token -> FORGEAI_NODE_TOKEN).
// AutomaticEnv is not used: it would read FORGEAI_GATEWAY as the whole
// gateway section and shadow gateway.*.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	for _, key := range v.AllKeys() {
		if key == "gateway.url" {
			continue
		}
		_ = v.BindEnv(key, envName(key))
	}
	// FORGEAI_GATEWAY is the short form used by service units.
	_ = v.BindEnv("gateway.url", envName("gateway.url"), envPrefix+"_GATEWAY")
	return v
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.url", "")
	v.SetDefault("gateway.host", "")
	v.SetDefault("gateway.port", defaultGatewayPort)
	v.SetDefault("gateway.tls", false)
	v.SetDefault("gateway.path", defaultGatewayPath)

	v.SetDefault("node.token", "")
	v.SetDefault("node.id", "")
	v.SetDefault("node.name", "")
	v.SetDefault("node.tags", []string{})

	v.SetDefault("heartbeat.interval", 25*time.Second)
	v.SetDefault("telemetry.interval", 60*time.Second)
	v.SetDefault("reconnect.base", 2*time.Second)
	v.SetDefault("reconnect.max", 60*time.Second)
	v.SetDefault("link.retry", 5*time.Second)
	v.SetDefault("dial.timeout", 10*time.Second)
	v.SetDefault("commands.allow_shell", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("state.dir", "")
}

// loadConfig reads the optional YAML file at path and builds a Config from v.
func loadConfig(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return raw.build()
}

func (f fileConfig) build() (Config, error) {
	cfg := Config{
		Token:             strings.TrimSpace(f.Node.Token),
		NodeID:            strings.TrimSpace(f.Node.ID),
		NodeName:          strings.TrimSpace(f.Node.Name),
		Tags:              mergeTags(f.Node.Tags),
		HeartbeatInterval: f.Heartbeat.Interval,
		TelemetryInterval: f.Telemetry.Interval,
		Reconnect:         Backoff{Base: f.Reconnect.Base, Max: f.Reconnect.Max},
		LinkRetry:         f.Link.Retry,
		DialTimeout:       f.Dial.Timeout,
		AllowShell:        f.Commands.AllowShell,
		StateDir:          f.State.Dir,
		Log:               f.Log,
	}

	if f.Gateway.URL != "" {
		target, err := parseGatewayURL(f.Gateway.URL)
		if err != nil {
			return Config{}, err
		}
		cfg.Gateway = target
	} else {
		cfg.Gateway = Target{
			Host: strings.TrimSpace(f.Gateway.Host),
			Port: f.Gateway.Port,
			TLS:  f.Gateway.TLS,
			Path: f.Gateway.Path,
		}
	}
	if cfg.Gateway.Path == "" {
		cfg.Gateway.Path = defaultGatewayPath
	}
	if cfg.NodeName == "" {
		cfg.NodeName, _ = os.Hostname()
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Gateway.Host == "" {
		errs = append(errs, errors.New("gateway host is required (--gateway or --host)"))
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway port %d out of range", c.Gateway.Port))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("node token is required (--token or FORGEAI_NODE_TOKEN)"))
	}
	if c.HeartbeatInterval <= 0 {
		errs = append(errs, errors.New("heartbeat.interval must be positive"))
	}
	if c.TelemetryInterval <= 0 {
		errs = append(errs, errors.New("telemetry.interval must be positive"))
	}
	if c.Reconnect.Base <= 0 || c.Reconnect.Max < c.Reconnect.Base {
		errs = append(errs, errors.New("reconnect.base must be positive and not exceed reconnect.max"))
	}
	if c.LinkRetry <= 0 {
		errs = append(errs, errors.New("link.retry must be positive"))
	}
	if c.DialTimeout <= 0 {
		errs = append(errs, errors.New("dial.timeout must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
