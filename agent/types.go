package main

import "encoding/json"

// Message types exchanged with the gateway.
const (
	TypeAuth          = "auth"
	TypeAuthOK        = "auth_ok"
	TypeError         = "error"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeSysInfo       = "sysinfo"
	TypeCommand       = "command"
	TypeCommandResult = "command_result"
	TypeResponse      = "response"
	TypeNodeList      = "node_list"
	TypeRelay         = "relay"
)

type DockerContainer struct {
	Name  string   `json:"name"`
	Ports []string `json:"ports"`
}

// NodeInfo is the identity presented to the gateway in the auth message.
type NodeInfo struct {
	NodeID       string   `json:"nodeId"`
	Name         string   `json:"name"`
	Platform     string   `json:"platform"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Tags         []string `json:"tags"`
}

// SysInfo is the periodic telemetry payload.
type SysInfo struct {
	Hostname      string   `json:"hostname"`
	IPAddress     string   `json:"ipAddress"`
	MemTotalMB    float64  `json:"memTotalMB"`
	MemUsedMB     float64  `json:"memUsedMB"`
	DiskTotalGB   float64  `json:"diskTotalGB"`
	DiskUsedGB    float64  `json:"diskUsedGB"`
	UptimeSeconds int64    `json:"uptimeSeconds"`
	CPUPercent    float64  `json:"cpuPercent"`
	TempCelsius   *float64 `json:"tempCelsius,omitempty"`
	CPUFreqMHz    *float64 `json:"cpuFreqMHz,omitempty"`
}

// NodeSummary is one entry of a node_list message.
type NodeSummary struct {
	NodeID       string   `json:"nodeId"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities"`
}

// CommandResult carries the outcome of a command. Its fields are always
// encoded, including a zero exit code and empty output.
type CommandResult struct {
	ReplyTo    string `json:"replyTo"`
	ExitCode   int    `json:"exitCode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMs int64  `json:"durationMs"`
}

// Message is the envelope for every frame on the wire. Type selects which of
// the optional fields are meaningful.
type Message struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`

	// auth
	Token string    `json:"token,omitempty"`
	Node  *NodeInfo `json:"node,omitempty"`

	// auth_ok
	SessionID string `json:"sessionId,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// sysinfo
	Info *SysInfo `json:"info,omitempty"`

	// command
	MsgID   string   `json:"msgId,omitempty"`
	Cmd     string   `json:"cmd,omitempty"`
	Args    []string `json:"args,omitempty"`
	Timeout int64    `json:"timeout,omitempty"`

	// command_result
	*CommandResult

	// response
	Content string `json:"content,omitempty"`

	// node_list
	Nodes []NodeSummary `json:"nodes,omitempty"`

	// relay
	FromNodeID string          `json:"fromNodeId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
