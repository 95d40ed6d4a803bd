// Package testhelpers provides common utilities for testing the chat
// relay over real WebSocket connections.
package testhelpers

import (
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/server"
)

// WebSocketURL converts a test server's base URL into the relay's
// upgrade endpoint URL.
func WebSocketURL(t *testing.T, baseURL string) string {
	t.Helper()
	wsURL := strings.Replace(baseURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	return wsURL + "/connect"
}

// Dial connects a WebSocket client to the relay, sending the test
// server's own URL as Origin. The connection is closed on test cleanup.
func Dial(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	header.Set("Origin", baseURL)

	conn, resp, err := websocket.DefaultDialer.Dial(WebSocketURL(t, baseURL), header)
	require.NoError(t, err, "websocket dial failed")
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadLine reads the next chat line from conn, failing the test if none
// arrives within timeout.
func ReadLine(t *testing.T, conn *websocket.Conn, timeout time.Duration) server.ChatLine {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err, "reading chat line")

	var line server.ChatLine
	require.NoError(t, line.UnmarshalJSON(payload), "decoding chat line %q", payload)
	return line
}

// ExpectNoLine asserts that conn receives nothing within timeout.
func ExpectNoLine(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no line, received %q", payload)
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("unexpected error while waiting for absence of line: %v", err)
}

// SendLine writes one plain text line on conn.
func SendLine(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

// OwnName discovers the session's current display name by broadcasting a
// marker line and reading it back on the same connection. Other
// connections observing the marker must drain it themselves.
func OwnName(t *testing.T, conn *websocket.Conn, marker string) string {
	t.Helper()

	SendLine(t, conn, marker)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		line := ReadLine(t, conn, time.Until(deadline))
		if name, ok := strings.CutSuffix(line.Text, ": "+marker); ok {
			return name
		}
	}
	t.Fatalf("marker %q never echoed back", marker)
	return ""
}
