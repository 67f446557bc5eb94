package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait   = 10 * time.Second
	wsReadLimit   = 65536
	wsFrameBuffer = 16
)

// wsDialer opens the transport and upgrades it to a WebSocket.
type wsDialer struct {
	transport        transport
	handshakeTimeout time.Duration
}

func newWSDialer(dialTimeout time.Duration, tlsConfig *tls.Config) *wsDialer {
	return &wsDialer{
		transport:        transport{dialTimeout: dialTimeout, tlsConfig: tlsConfig},
		handshakeTimeout: dialTimeout,
	}
}

func (d *wsDialer) Dial(ctx context.Context, target Target) (Channel, error) {
	conn, err := d.transport.open(ctx, target)
	if err != nil {
		return nil, err
	}

	ws, err := upgrade(ctx, conn, target, d.handshakeTimeout)
	if err != nil {
		return nil, err
	}
	return newWSChannel(ws), nil
}

// upgrade runs the HTTP upgrade handshake over an already open connection.
// conn is closed when the handshake fails.
func upgrade(ctx context.Context, conn net.Conn, target Target, timeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(context.Context, string, string) (net.Conn, error) {
			return conn, nil
		},
		HandshakeTimeout: timeout,
	}

	ws, resp, err := dialer.DialContext(ctx, target.upgradeURL(), nil)
	if err != nil {
		_ = conn.Close()
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: status=%d: %w", ErrHandshake, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	return ws, nil
}

// wsChannel adapts a gorilla connection to the non-blocking Channel
// contract. A reader goroutine hands complete frames to the control loop;
// all writes happen on the control loop.
type wsChannel struct {
	conn   *websocket.Conn
	frames chan []byte
	errs   chan error
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
	readErr   error
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	c := &wsChannel{
		conn:   conn,
		frames: make(chan []byte, wsFrameBuffer),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	conn.SetReadLimit(wsReadLimit)
	go c.readPump()
	return c
}

func (c *wsChannel) readPump() {
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case c.errs <- fmt.Errorf("%w: %w", ErrRead, err):
			default:
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		select {
		case c.frames <- data:
		case <-c.done:
			return
		}
	}
}

func (c *wsChannel) ReadFrame() ([]byte, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	default:
	}
	if c.readErr != nil {
		return nil, c.readErr
	}
	select {
	case err := <-c.errs:
		c.readErr = err
		return nil, err
	default:
		return nil, nil
	}
}

func (c *wsChannel) WriteFrame(frame []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
