package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	catLimit     = 2048
	restartDelay = 500 * time.Millisecond
	maxGPIOPin   = 1023
)

// capabilityOptions carries the host hooks the default capability set needs.
// Tests point proc at a temp dir and stub the rest.
type capabilityOptions struct {
	Proc       procfs
	AllowShell bool
	Restart    func() error
	LookPath   func(file string) (string, error)
	Link       Link
}

func defaultCapabilityOptions(allowShell bool) capabilityOptions {
	return capabilityOptions{
		Proc:       procfs{root: "/"},
		AllowShell: allowShell,
		Restart:    restartProcess,
		LookPath:   exec.LookPath,
		Link:       interfaceLink{},
	}
}

// registerDefaultCapabilities installs the built-in commands. Hardware and
// tool backed commands are only registered when the host has them.
func registerDefaultCapabilities(reg *Registry, opts capabilityOptions) error {
	proc := opts.Proc
	caps := []Capability{
		{Name: "help", Description: "List available commands", Tag: "system", Handler: helpHandler(reg)},
		{Name: "mem", Description: "Memory usage", Tag: "system", Handler: memHandler(proc)},
		{Name: "uptime", Description: "Time since boot", Tag: "system", Handler: uptimeHandler(proc)},
		{Name: "temp", Description: "CPU temperature", Tag: "sensors", Handler: tempHandler(proc)},
		{Name: "freq", Description: "CPU frequency", Tag: "sensors", Handler: freqHandler(proc)},
		{Name: "ls", Usage: "ls [path]", Description: "List a directory", Tag: "system", Handler: lsHandler},
		{Name: "cat", Usage: "cat <file>", Description: "Print a file (first 2KB)", Tag: "system", Handler: catHandler},
		{Name: "osinfo", Description: "Operating system and CPU", Tag: "system", Handler: osinfoHandler(proc)},
		{Name: "reboot", Description: "Restart the agent process", Tag: "system", Handler: rebootHandler(opts.Restart)},
	}

	if dirExists(proc.path("sys", "class", "gpio")) {
		gpio := sysfsGPIO{proc: proc}
		caps = append(caps,
			Capability{Name: "gpio_read", Usage: "gpio_read <pin>", Description: "Read a GPIO pin", Tag: "gpio", Handler: gpio.readHandler},
			Capability{Name: "gpio_write", Usage: "gpio_write <pin> <0|1>", Description: "Drive a GPIO pin", Tag: "gpio", Handler: gpio.writeHandler},
		)
	}
	if docker, err := opts.LookPath("docker"); err == nil {
		caps = append(caps, Capability{Name: "docker_ps", Description: "Running containers and ports", Tag: "docker", Handler: dockerPSHandler(docker)})
	}
	if opts.AllowShell {
		caps = append(caps, Capability{Name: "shell", Usage: "shell <command line>", Description: "Run a shell command", Tag: "shell", Handler: runShell})
	}

	for _, c := range caps {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// detectCapabilities returns the tags advertised in the auth message: the
// registry tags plus hardware and tools found on the host.
func detectCapabilities(reg *Registry, opts capabilityOptions) []string {
	tags := reg.Tags()
	if dirExists(opts.Proc.path("sys", "class", "gpio")) {
		tags = append(tags, "gpio")
	}
	if _, err := os.Stat(opts.Proc.path("dev", "video0")); err == nil {
		tags = append(tags, "camera")
	}
	if _, err := opts.LookPath("docker"); err == nil {
		tags = append(tags, "docker")
	}
	if opts.Link != nil && opts.Link.Up() {
		tags = append(tags, "network")
	}
	return mergeTags(tags)
}

func helpHandler(reg *Registry) Handler {
	return func(context.Context, []string) (Output, error) {
		return Output{Stdout: reg.Help()}, nil
	}
}

func memHandler(proc procfs) Handler {
	return func(context.Context, []string) (Output, error) {
		total, avail, err := proc.meminfo()
		if err != nil {
			return Output{}, err
		}
		used := total - min(avail, total)
		return Output{Stdout: fmt.Sprintf("Total: %d KB\nAvailable: %d KB\nUsed: %.1f%%",
			total, avail, float64(used)/float64(total)*100)}, nil
	}
}

func uptimeHandler(proc procfs) Handler {
	return func(context.Context, []string) (Output, error) {
		secs := proc.uptimeSeconds()
		if secs == 0 {
			return Output{}, errors.New("uptime unavailable")
		}
		return Output{Stdout: formatUptime(secs)}, nil
	}
}

func formatUptime(secs int64) string {
	d := secs / 86400
	h := secs % 86400 / 3600
	m := secs % 3600 / 60
	s := secs % 60
	if d > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", d, h, m, s)
	}
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

func tempHandler(proc procfs) Handler {
	return func(context.Context, []string) (Output, error) {
		t, ok := proc.temperature()
		if !ok {
			return Output{}, errors.New("temperature sensor not available")
		}
		return Output{Stdout: fmt.Sprintf("%.1f C", t)}, nil
	}
}

func freqHandler(proc procfs) Handler {
	return func(context.Context, []string) (Output, error) {
		f, ok := proc.cpuFreqMHz()
		if !ok {
			return Output{}, errors.New("cpu frequency not available")
		}
		return Output{Stdout: fmt.Sprintf("%.0f MHz", f)}, nil
	}
}

func osinfoHandler(proc procfs) Handler {
	return func(context.Context, []string) (Output, error) {
		return Output{Stdout: collectOSInfo(proc).String()}, nil
	}
}

func lsHandler(_ context.Context, args []string) (Output, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Output{}, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		fmt.Fprintf(&b, "%s\t%d\n", e.Name(), size)
	}
	return Output{Stdout: strings.TrimSuffix(b.String(), "\n")}, nil
}

func catHandler(_ context.Context, args []string) (Output, error) {
	if len(args) == 0 {
		return Output{ExitCode: 2, Stderr: "usage: cat <file>"}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return Output{}, err
	}
	defer f.Close()

	buf := make([]byte, catLimit+1)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Output{}, err
	}
	if n > catLimit {
		return Output{Stdout: string(buf[:catLimit]) + "\n... (truncated)"}, nil
	}
	return Output{Stdout: string(buf[:n])}, nil
}

func rebootHandler(restart func() error) Handler {
	return func(context.Context, []string) (Output, error) {
		if restart == nil {
			return Output{}, errors.New("restart not supported")
		}
		// Give the loop time to send the result before the process is replaced.
		time.AfterFunc(restartDelay, func() {
			if err := restart(); err != nil {
				fmt.Fprintf(os.Stderr, "restart failed: %v\n", err)
			}
		})
		return Output{Stdout: "restarting agent"}, nil
	}
}

// sysfsGPIO drives pins through the legacy /sys/class/gpio interface.
type sysfsGPIO struct {
	proc procfs
}

func (g sysfsGPIO) readHandler(_ context.Context, args []string) (Output, error) {
	if len(args) != 1 {
		return Output{ExitCode: 2, Stderr: "usage: gpio_read <pin>"}, nil
	}
	pin, err := parsePin(args[0])
	if err != nil {
		return Output{}, err
	}
	if err := g.export(pin, "in"); err != nil {
		return Output{}, err
	}
	value := readFileTrim(g.pinPath(pin, "value"))
	if value == "" {
		return Output{}, fmt.Errorf("gpio %d: value unreadable", pin)
	}
	return Output{Stdout: fmt.Sprintf("GPIO %d = %s", pin, value)}, nil
}

func (g sysfsGPIO) writeHandler(_ context.Context, args []string) (Output, error) {
	if len(args) != 2 {
		return Output{ExitCode: 2, Stderr: "usage: gpio_write <pin> <0|1>"}, nil
	}
	pin, err := parsePin(args[0])
	if err != nil {
		return Output{}, err
	}
	value := args[1]
	if value != "0" && value != "1" {
		return Output{}, fmt.Errorf("gpio value must be 0 or 1, got %q", value)
	}
	if err := g.export(pin, "out"); err != nil {
		return Output{}, err
	}
	if err := os.WriteFile(g.pinPath(pin, "value"), []byte(value), 0o644); err != nil {
		return Output{}, fmt.Errorf("gpio %d: %w", pin, err)
	}
	return Output{Stdout: fmt.Sprintf("GPIO %d -> %s", pin, value)}, nil
}

// export makes the pin visible and sets its direction.
func (g sysfsGPIO) export(pin int, direction string) error {
	if !dirExists(g.pinPath(pin)) {
		exportPath := g.proc.path("sys", "class", "gpio", "export")
		if err := os.WriteFile(exportPath, []byte(strconv.Itoa(pin)), 0o200); err != nil {
			return fmt.Errorf("gpio %d export: %w", pin, err)
		}
	}
	if err := os.WriteFile(g.pinPath(pin, "direction"), []byte(direction), 0o644); err != nil {
		return fmt.Errorf("gpio %d direction: %w", pin, err)
	}
	return nil
}

func (g sysfsGPIO) pinPath(pin int, elem ...string) string {
	base := []string{"sys", "class", "gpio", "gpio" + strconv.Itoa(pin)}
	return g.proc.path(append(base, elem...)...)
}

func parsePin(raw string) (int, error) {
	pin, err := strconv.Atoi(raw)
	if err != nil || pin < 0 || pin > maxGPIOPin {
		return 0, fmt.Errorf("invalid gpio pin %q", raw)
	}
	return pin, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
