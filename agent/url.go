package main

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultGatewayPort = 18800
	defaultGatewayPath = "/ws/node"
)

// Target is where the agent dials the gateway.
type Target struct {
	Host string
	Port int
	TLS  bool
	Path string
}

// Addr returns host:port for the transport.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// URL returns the WebSocket URL of the gateway endpoint.
func (t Target) URL() string {
	scheme := "ws"
	if t.TLS {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: t.Addr(), Path: t.path()}).String()
}

// upgradeURL is the URL handed to the WebSocket handshake. The transport has
// already applied TLS, so the handshake always speaks plain ws over it.
func (t Target) upgradeURL() string {
	return (&url.URL{Scheme: "ws", Host: t.Addr(), Path: t.path()}).String()
}

func (t Target) path() string {
	if t.Path == "" {
		return defaultGatewayPath
	}
	return t.Path
}

// parseGatewayURL normalizes a gateway address into a Target. It accepts
// http(s) and ws(s) URLs as well as a bare host or host:port.
func parseGatewayURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("empty gateway address")
	}
	bare := !strings.Contains(raw, "://")
	if bare {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, err
	}

	var t Target
	switch u.Scheme {
	case "http", "ws":
	case "https", "wss":
		t.TLS = true
	default:
		return Target{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	t.Host = u.Hostname()
	if t.Host == "" {
		return Target{}, fmt.Errorf("gateway address %q has no host", raw)
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Target{}, fmt.Errorf("invalid port %q", p)
		}
		t.Port = port
	} else if bare {
		t.Port = defaultGatewayPort
	} else if t.TLS {
		t.Port = 443
	} else {
		t.Port = 80
	}

	t.Path = u.Path
	if t.Path == "" || t.Path == "/" {
		t.Path = defaultGatewayPath
	}
	return t, nil
}
