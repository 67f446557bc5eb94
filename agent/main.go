package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(newViper())
}

func buildRootCmd(v *viper.Viper) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Device agent that keeps a session with a ForgeAI gateway",
		Version:       getAgentVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAgent(ctx, cmd, cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&configPath, "config", "", "YAML config file")
	flags.String("gateway", "", "Gateway URL (http(s)://host:port or ws(s)://host:port/path)")
	flags.String("host", "", "Gateway host")
	flags.Int("port", defaultGatewayPort, "Gateway port")
	flags.Bool("tls", false, "Use TLS to reach the gateway")
	flags.String("path", defaultGatewayPath, "Gateway WebSocket path")
	flags.String("token", "", "Node token")
	flags.String("id", "", "Node id (derived from the hardware address when empty)")
	flags.String("name", "", "Node display name (hostname when empty)")
	flags.StringSlice("tags", nil, "Node tags")
	flags.Duration("heartbeat", 0, "Heartbeat interval")
	flags.Duration("telemetry", 0, "Telemetry interval")
	flags.Bool("allow-shell", false, "Enable the shell capability")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text, json)")
	flags.String("log-output", "", "Log output (stdout, stderr or a file path)")
	flags.String("state-dir", "", "Directory for the device id and lock file")

	bindFlags(v, root, map[string]string{
		"gateway.url":          "gateway",
		"gateway.host":         "host",
		"gateway.port":         "port",
		"gateway.tls":          "tls",
		"gateway.path":         "path",
		"node.token":           "token",
		"node.id":              "id",
		"node.name":            "name",
		"node.tags":            "tags",
		"heartbeat.interval":   "heartbeat",
		"telemetry.interval":   "telemetry",
		"commands.allow_shell": "allow-shell",
		"log.level":            "log-level",
		"log.format":           "log-format",
		"log.output":           "log-output",
		"state.dir":            "state-dir",
	})

	root.SetVersionTemplate(fmt.Sprintf("%s %s\n", serviceName, getAgentVersion()))
	root.AddCommand(newServiceCmd(), newVersionCmd())
	return root
}

// bindFlags makes flags override config file and environment. Only flags the
// user actually set take effect, so zero-value defaults never mask the file.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		_ = v.BindPFlag(key, cmd.Flags().Lookup(name))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(getAgentVersion())
		},
	}
}

func runAgent(ctx context.Context, cmd *cobra.Command, cfg Config) error {
	logger, err := setupLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	reg := NewRegistry()
	opts := defaultCapabilityOptions(cfg.AllowShell)
	if err := registerDefaultCapabilities(reg, opts); err != nil {
		return fmt.Errorf("register capabilities: %w", err)
	}

	nodeID, err := resolveNodeID(cfg.NodeID, cfg.StateDir, listInterfaces())
	if err != nil {
		return fmt.Errorf("resolve node id: %w", err)
	}
	node := buildNodeInfo(nodeID, cfg.NodeName, detectCapabilities(reg, opts), cfg.Tags)

	lock := newInstanceLock(cfg.StateDir)
	running, err := lock.Acquire(InstanceInfo{NodeID: nodeID, Gateway: cfg.Gateway.URL()})
	if err != nil {
		return err
	}
	if running != nil {
		return fmt.Errorf("agent already running (pid %d, node %s, gateway %s)", running.PID, running.NodeID, running.Gateway)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release instance lock", "error", err)
		}
	}()

	printBanner(cmd.OutOrStdout(), cfg, node)

	agent := newAgent(cfg, node, agentDeps{
		Registry: reg,
		Link:     opts.Link,
		Logger:   logger,
	})
	return agent.Run(ctx)
}
