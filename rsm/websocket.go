// Copyright 2026 The Go RSM SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package rsm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

// Subprotocol negotiated during the WebSocket handshake.
const wsSubprotocol = "rsm"

// A WebSocketClientTransport carries frames as WebSocket binary messages.
// Each message is one whole frame; the transport never parses it.
type WebSocketClientTransport struct {
	// URL is the WebSocket server URL (e.g. "wss://example.com/rsm").
	URL string

	// Dialer is the WebSocket dialer to use. If nil, a default dialer is
	// used.
	Dialer *websocket.Dialer

	// Header specifies additional HTTP headers to send during the handshake.
	Header http.Header

	// TokenSource, if non-nil, supplies a bearer token for the handshake's
	// Authorization header.
	TokenSource oauth2.TokenSource
}

// Connect implements the [Transport] interface.
func (t *WebSocketClientTransport) Connect(ctx context.Context) (Connection, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	dialer.Subprotocols = []string{wsSubprotocol}

	header := http.Header{}
	for k, vs := range t.Header {
		header[k] = vs
	}
	if t.TokenSource != nil {
		token, err := t.TokenSource.Token()
		if err != nil {
			return nil, fmt.Errorf("fetching handshake token: %w", err)
		}
		header.Set("Authorization", token.Type()+" "+token.AccessToken)
	}

	conn, resp, err := dialer.DialContext(ctx, t.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed: %w (status: %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}
	return &websocketConn{conn: conn}, nil
}

// websocketConn implements the Connection interface over a WebSocket.
type websocketConn struct {
	conn      *websocket.Conn
	mu        sync.Mutex // serializes writes
	closeOnce sync.Once
	closeErr  error
}

func (c *websocketConn) Read(ctx context.Context) ([]byte, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-done:
		}
	}()

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("websocket read error: %w", err)
	}
	if messageType != websocket.BinaryMessage {
		return nil, fmt.Errorf("unexpected websocket message type: %d (expected binary)", messageType)
	}
	return data, nil
}

func (c *websocketConn) Write(ctx context.Context, frame []byte) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("websocket write error: %w", err)
	}
	return nil
}

func (c *websocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// A WebSocketServerTransport upgrades HTTP requests to WebSocket
// connections carrying the rsm subprotocol. Each accepted connection is
// handed to the callback, typically a service host's serve loop.
type WebSocketServerTransport struct {
	upgrader websocket.Upgrader
	serve    func(Connection)
}

// NewWebSocketServerTransport returns a server transport that invokes serve
// with each accepted connection.
func NewWebSocketServerTransport(serve func(Connection)) *WebSocketServerTransport {
	return &WebSocketServerTransport{
		upgrader: websocket.Upgrader{
			Subprotocols: []string{wsSubprotocol},
		},
		serve: serve,
	}
}

// ServeHTTP upgrades the request and hands the connection to the serve
// callback.
func (t *WebSocketServerTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("websocket upgrade failed: %v", err), http.StatusBadRequest)
		return
	}
	t.serve(&websocketConn{conn: conn})
}
