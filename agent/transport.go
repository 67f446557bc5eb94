package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// Channel is an upgraded, message-oriented connection to the gateway.
// It is used from the control loop only.
type Channel interface {
	// ReadFrame returns the next complete text frame, or nil when none is
	// pending. It never blocks.
	ReadFrame() ([]byte, error)
	// WriteFrame sends one text frame.
	WriteFrame(frame []byte) error
	// Close releases the connection. Calling it again is a no-op.
	Close() error
}

// Dialer opens a Channel to the gateway: transport first, then the upgrade
// handshake.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Channel, error)
}

// transport opens the raw byte stream, optionally under TLS.
type transport struct {
	dialTimeout time.Duration
	tlsConfig   *tls.Config
}

func (t transport) open(ctx context.Context, target Target) (net.Conn, error) {
	d := net.Dialer{Timeout: t.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", target.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if !target.TLS {
		return conn, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if t.tlsConfig != nil {
		cfg = t.tlsConfig.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = target.Host
	}

	tlsConn := tls.Client(conn, cfg)
	hsCtx := ctx
	if t.dialTimeout > 0 {
		var cancel context.CancelFunc
		hsCtx, cancel = context.WithTimeout(ctx, t.dialTimeout)
		defer cancel()
	}
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: tls: %w", ErrConnect, err)
	}
	return tlsConn, nil
}
