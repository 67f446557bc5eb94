package main

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	serviceName      = "forgeai-node"
	systemdUnitPath  = "/etc/systemd/system/forgeai-node.service"
	launchdPlistPath = "/Library/LaunchDaemons/ai.forge.node.plist"
	launchdLabel     = "ai.forge.node"
)

// serviceSpec is what the installed unit runs. The token goes into the
// unit environment instead of the command line.
type serviceSpec struct {
	Exe   string
	Args  []string
	Token string
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install or remove the agent as a system service",
	}

	var (
		configPath string
		gateway    string
		token      string
		name       string
		allowShell bool
	)
	up := &cobra.Command{
		Use:   "up",
		Short: "Install and start the service (systemd or launchd)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			exe, _ = filepath.EvalSymlinks(exe)

			spec := serviceSpec{
				Exe:   exe,
				Args:  buildExecArgs(configPath, gateway, name, allowShell),
				Token: token,
			}
			if err := serviceUp(spec); err != nil {
				return err
			}
			cmd.Printf("%s service installed\n", serviceName)
			return nil
		},
	}
	up.Flags().StringVar(&configPath, "config", "", "Config file the service should load")
	up.Flags().StringVar(&gateway, "gateway", "", "Gateway URL (http(s)://host:port or ws(s)://host:port/path)")
	up.Flags().StringVar(&token, "token", "", "Node token, stored in the unit environment")
	up.Flags().StringVar(&name, "name", "", "Node display name")
	up.Flags().BoolVar(&allowShell, "allow-shell", false, "Enable the shell capability")

	down := &cobra.Command{
		Use:   "down",
		Short: "Stop and remove the service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := serviceDown(); err != nil {
				return err
			}
			cmd.Printf("%s service removed\n", serviceName)
			return nil
		},
	}

	cmd.AddCommand(up, down)
	return cmd
}

func serviceUp(spec serviceSpec) error {
	switch runtime.GOOS {
	case "linux":
		return installSystemdService(spec)
	case "darwin":
		return installLaunchdService(spec)
	default:
		return fmt.Errorf("service management is not supported on %s", runtime.GOOS)
	}
}

func serviceDown() error {
	switch runtime.GOOS {
	case "linux":
		return uninstallSystemdService()
	case "darwin":
		return uninstallLaunchdService()
	default:
		return fmt.Errorf("service management is not supported on %s", runtime.GOOS)
	}
}

func buildExecArgs(configPath, gateway, name string, allowShell bool) []string {
	var args []string
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			configPath = abs
		}
		args = append(args, "--config="+configPath)
	}
	if gateway != "" {
		args = append(args, "--gateway="+gateway)
	}
	if name != "" {
		args = append(args, "--name="+name)
	}
	if allowShell {
		args = append(args, "--allow-shell")
	}
	return args
}

func renderSystemdUnit(spec serviceSpec) string {
	var env string
	if spec.Token != "" {
		env = "Environment=" + systemdQuote(fmt.Sprintf("%s_NODE_TOKEN=%s", envPrefix, spec.Token)) + "\n"
	}
	words := make([]string, 0, len(spec.Args)+1)
	for _, w := range append([]string{spec.Exe}, spec.Args...) {
		words = append(words, systemdQuote(strings.ReplaceAll(w, "$", "$$")))
	}
	return fmt.Sprintf(`[Unit]
Description=ForgeAI node agent
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
%sRestart=always
RestartSec=5

[Install]
WantedBy=multi-user.target
`, strings.Join(words, " "), env)
}

// systemdQuote renders s as one word of a unit file line: specifiers are
// escaped, and words holding whitespace, quotes or backslashes are
// double-quoted with C-style escapes.
func systemdQuote(s string) string {
	s = strings.ReplaceAll(s, "%", "%%")
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\;") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`).Replace(s) + `"`
}

func installSystemdService(spec serviceSpec) error {
	if err := os.WriteFile(systemdUnitPath, []byte(renderSystemdUnit(spec)), 0o600); err != nil {
		return fmt.Errorf("write unit: %w", err)
	}

	if err := runCommand("systemctl", "daemon-reload"); err != nil {
		return err
	}
	return runCommand("systemctl", "enable", "--now", serviceName+".service")
}

func uninstallSystemdService() error {
	_ = runCommand("systemctl", "disable", "--now", serviceName+".service")
	if err := os.Remove(systemdUnitPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove unit: %w", err)
	}
	_ = runCommand("systemctl", "daemon-reload")
	return nil
}

func renderLaunchdPlist(spec serviceSpec) string {
	var env string
	if spec.Token != "" {
		env = fmt.Sprintf(`  <key>EnvironmentVariables</key>
  <dict>
    <key>%s_NODE_TOKEN</key><string>%s</string>
  </dict>
`, envPrefix, xmlEscape(spec.Token))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key><string>%s</string>
  <key>ProgramArguments</key>
  <array>
%s
  </array>
%s  <key>RunAtLoad</key><true/>
  <key>KeepAlive</key><true/>
  <key>StandardOutPath</key><string>/var/log/forgeai-node.log</string>
  <key>StandardErrorPath</key><string>/var/log/forgeai-node.log</string>
</dict>
</plist>
`, launchdLabel, launchdArgs(append([]string{spec.Exe}, spec.Args...)), env)
}

func installLaunchdService(spec serviceSpec) error {
	if err := os.WriteFile(launchdPlistPath, []byte(renderLaunchdPlist(spec)), 0o600); err != nil {
		return fmt.Errorf("write plist: %w", err)
	}

	_ = runCommand("launchctl", "bootout", "system/"+launchdLabel)
	if err := runCommand("launchctl", "bootstrap", "system", launchdPlistPath); err != nil {
		return err
	}
	_ = runCommand("launchctl", "enable", "system/"+launchdLabel)
	_ = runCommand("launchctl", "kickstart", "-k", "system/"+launchdLabel)
	return nil
}

func uninstallLaunchdService() error {
	_ = runCommand("launchctl", "bootout", "system/"+launchdLabel)
	if err := os.Remove(launchdPlistPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove plist: %w", err)
	}
	return nil
}

func launchdArgs(args []string) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString("    <string>")
		b.WriteString(xmlEscape(a))
		b.WriteString("</string>\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}
