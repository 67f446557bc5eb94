package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatewayStub upgrades /ws/node, sends a binary frame and a greeting, then
// echoes every text frame back.
func gatewayStub(t *testing.T, closeAfterGreeting bool) http.Handler {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/node", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`))
		if closeAfterGreeting {
			return
		}
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	return mux
}

func targetFor(t *testing.T, srv *httptest.Server, path string) Target {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return Target{Host: u.Hostname(), Port: port, TLS: u.Scheme == "https", Path: path}
}

func readFrameEventually(t *testing.T, ch Channel) []byte {
	t.Helper()
	var got []byte
	require.Eventually(t, func() bool {
		frame, err := ch.ReadFrame()
		if err != nil {
			return false
		}
		got = frame
		return frame != nil
	}, 5*time.Second, 5*time.Millisecond)
	return got
}

func TestWSChannelRoundTrip(t *testing.T) {
	srv := httptest.NewServer(gatewayStub(t, false))
	defer srv.Close()

	ch, err := newWSDialer(time.Second, nil).Dial(context.Background(), targetFor(t, srv, "/ws/node"))
	require.NoError(t, err)
	defer ch.Close()

	// the binary frame is skipped
	assert.JSONEq(t, `{"type":"hello"}`, string(readFrameEventually(t, ch)))

	frame, err := ch.ReadFrame()
	require.NoError(t, err)
	assert.Nil(t, frame)

	require.NoError(t, ch.WriteFrame([]byte(`{"type":"ping","ts":7}`)))
	assert.JSONEq(t, `{"type":"ping","ts":7}`, string(readFrameEventually(t, ch)))

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.ErrorIs(t, ch.WriteFrame([]byte(`{}`)), ErrWrite)
}

func TestWSChannelTLS(t *testing.T) {
	srv := httptest.NewTLSServer(gatewayStub(t, false))
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	dialer := newWSDialer(time.Second, &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12})

	ch, err := dialer.Dial(context.Background(), targetFor(t, srv, "/ws/node"))
	require.NoError(t, err)
	defer ch.Close()
	assert.JSONEq(t, `{"type":"hello"}`, string(readFrameEventually(t, ch)))

	// without the test CA the handshake must fail at the transport
	_, err = newWSDialer(time.Second, nil).Dial(context.Background(), targetFor(t, srv, "/ws/node"))
	assert.ErrorIs(t, err, ErrConnect)
}

func TestWSChannelReadErrorIsSticky(t *testing.T) {
	srv := httptest.NewServer(gatewayStub(t, true))
	defer srv.Close()

	ch, err := newWSDialer(time.Second, nil).Dial(context.Background(), targetFor(t, srv, "/ws/node"))
	require.NoError(t, err)
	defer ch.Close()

	readFrameEventually(t, ch)

	var readErr error
	require.Eventually(t, func() bool {
		_, readErr = ch.ReadFrame()
		return readErr != nil
	}, 5*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, readErr, ErrRead)

	_, again := ch.ReadFrame()
	assert.Equal(t, readErr, again)
}

func TestWSDialerHandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(gatewayStub(t, false))
	defer srv.Close()

	_, err := newWSDialer(time.Second, nil).Dial(context.Background(), targetFor(t, srv, "/wrong"))
	require.ErrorIs(t, err, ErrHandshake)
	assert.Contains(t, err.Error(), "status=403")
}

func TestWSDialerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	_, err = newWSDialer(time.Second, nil).Dial(context.Background(), Target{Host: "127.0.0.1", Port: port})
	assert.ErrorIs(t, err, ErrConnect)
}
