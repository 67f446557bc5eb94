package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Output is what a capability handler reports back.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Handler runs one capability. ctx carries the advisory deadline of the
// command. A returned error is reported as exit code 1 with the error text
// as stderr.
type Handler func(ctx context.Context, args []string) (Output, error)

// Capability is a named local action the gateway can invoke.
type Capability struct {
	Name        string
	Usage       string
	Description string
	// Tag is advertised in the node's capability list.
	Tag     string
	Handler Handler
}

// Registry maps command names to capabilities.
type Registry struct {
	entries map[string]Capability
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Capability)}
}

func (r *Registry) Register(c Capability) error {
	if c.Name == "" {
		return fmt.Errorf("capability has no name")
	}
	if c.Handler == nil {
		return fmt.Errorf("capability %q has no handler", c.Name)
	}
	if _, exists := r.entries[c.Name]; exists {
		return fmt.Errorf("capability %q already registered", c.Name)
	}
	r.entries[c.Name] = c
	return nil
}

func (r *Registry) Lookup(name string) (Capability, bool) {
	c, ok := r.entries[name]
	return c, ok
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tags returns the distinct capability tags in sorted order.
func (r *Registry) Tags() []string {
	seen := make(map[string]struct{})
	for _, c := range r.entries {
		if c.Tag != "" {
			seen[c.Tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func (r *Registry) Help() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range r.Names() {
		c := r.entries[name]
		usage := c.Usage
		if usage == "" {
			usage = c.Name
		}
		fmt.Fprintf(&b, "  %-22s %s\n", usage, c.Description)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
