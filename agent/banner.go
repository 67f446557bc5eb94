package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const banner = `
    ┌─┐┌─┐┬─┐┌─┐┌─┐  ┌┐┌┌─┐┌┬┐┌─┐
    ├┤ │ │├┬┘│ ┬├┤   ││││ │ ││├┤
    └  └─┘┴└─└─┘└─┘  ┘└┘└─┘─┴┘└─┘
`

func printBanner(w io.Writer, cfg Config, node NodeInfo) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	gray.Fprintf(w, "    version: %s\n\n", node.Version)

	line := func(label, value string) {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "%-13s %s\n", label+":", value)
	}
	line("Node", node.NodeID)
	line("Name", node.Name)
	line("Platform", node.Platform)
	line("Gateway", cfg.Gateway.URL())
	line("Capabilities", strings.Join(node.Capabilities, ", "))
	if len(node.Tags) > 0 {
		line("Tags", strings.Join(node.Tags, ", "))
	}
	if cfg.AllowShell {
		yellow.Fprintln(w, "    ! shell capability enabled")
	}
	fmt.Fprintln(w)
}
