package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	stdoutLimit = 4096
	stderrLimit = 1024

	exitHandlerFault   = 1
	exitUnknownCommand = 127

	defaultCommandTimeout = 30 * time.Second
)

// Presenter receives the gateway payloads the agent does not interpret.
type Presenter interface {
	Response(content string)
	NodeList(nodes []NodeSummary)
	Relay(fromNodeID string, payload json.RawMessage)
}

// Dispatcher routes inbound messages while the agent is authenticated.
type Dispatcher struct {
	registry  *Registry
	presenter Presenter
	log       *slog.Logger
	now       func() time.Time
}

func newDispatcher(reg *Registry, presenter Presenter, logger *slog.Logger, now func() time.Time) *Dispatcher {
	return &Dispatcher{registry: reg, presenter: presenter, log: logger, now: now}
}

// Handle processes msg and returns the reply to send, if any.
func (d *Dispatcher) Handle(ctx context.Context, msg *Message) *Message {
	switch msg.Type {
	case TypePing:
		return &Message{Type: TypePong, Ts: msg.Ts}
	case TypePong:
		return nil
	case TypeCommand:
		return d.execute(ctx, msg)
	case TypeResponse:
		d.log.Debug("gateway response", "content", truncateForLog(msg.Content, 200))
		d.presenter.Response(msg.Content)
	case TypeNodeList:
		d.log.Info("connected nodes", "count", len(msg.Nodes))
		d.presenter.NodeList(msg.Nodes)
	case TypeRelay:
		d.log.Info("relay", "from", msg.FromNodeID, "bytes", len(msg.Payload))
		d.presenter.Relay(msg.FromNodeID, msg.Payload)
	case TypeError:
		d.log.Warn("gateway error", "code", msg.Code, "message", msg.Message)
	default:
		d.log.Warn("unknown message type", "type", msg.Type)
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, msg *Message) *Message {
	d.log.Info("command received", "cmd", msg.Cmd, "args", strings.Join(msg.Args, " "), "msg_id", msg.MsgID)
	start := d.now()

	var out Output
	if c, ok := d.registry.Lookup(msg.Cmd); ok {
		timeout := defaultCommandTimeout
		if msg.Timeout > 0 {
			timeout = time.Duration(msg.Timeout) * time.Millisecond
		}
		cmdCtx, cancel := context.WithTimeout(ctx, timeout)
		out = invoke(cmdCtx, c.Handler, msg.Args)
		cancel()
	} else {
		out = Output{
			ExitCode: exitUnknownCommand,
			Stderr:   fmt.Sprintf("command not found: %q. Type 'help' for available commands.", msg.Cmd),
		}
	}

	duration := d.now().Sub(start).Milliseconds()
	d.log.Info("command done", "cmd", msg.Cmd, "exit", out.ExitCode, "duration_ms", duration)

	return &Message{
		Type: TypeCommandResult,
		Ts:   nowMs(d.now()),
		CommandResult: &CommandResult{
			ReplyTo:    msg.MsgID,
			ExitCode:   out.ExitCode,
			Stdout:     truncateBytes(out.Stdout, stdoutLimit),
			Stderr:     truncateBytes(out.Stderr, stderrLimit),
			DurationMs: duration,
		},
	}
}

// invoke runs h and turns errors and panics into a failed Output.
func invoke(ctx context.Context, h Handler, args []string) (out Output) {
	defer func() {
		if r := recover(); r != nil {
			out = Output{ExitCode: exitHandlerFault, Stderr: fmt.Sprintf("handler panic: %v", r)}
		}
	}()

	if args == nil {
		args = []string{}
	}
	out, err := h(ctx, args)
	if err != nil {
		return Output{ExitCode: exitHandlerFault, Stdout: out.Stdout, Stderr: err.Error()}
	}
	return out
}

// truncateBytes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && cut > n-utf8.UTFMax && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return truncateBytes(s, maxLen) + "..."
}

type logPresenter struct {
	log *slog.Logger
}

func (p logPresenter) Response(content string) {
	p.log.Info("ai response", "content", truncateForLog(content, 200))
}

func (p logPresenter) NodeList(nodes []NodeSummary) {
	for _, n := range nodes {
		p.log.Info("node", "name", n.Name, "node_id", n.NodeID, "status", n.Status)
	}
}

func (p logPresenter) Relay(fromNodeID string, payload json.RawMessage) {
	p.log.Info("relay payload", "from", fromNodeID, "payload", truncateForLog(string(payload), 100))
}
