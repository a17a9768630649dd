package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultDialTimeout bounds the websocket handshake.
	DefaultDialTimeout = 10 * time.Second
	// DefaultKeepalive is how long the socket may stay silent before it is
	// treated as dead. The backend pings well inside this window.
	DefaultKeepalive = 60 * time.Second

	writeWait = 10 * time.Second
)

// WebsocketDialer dials the backend over gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration // defaults to DefaultDialTimeout
	Keepalive        time.Duration // read deadline per frame; defaults to DefaultKeepalive
}

// Dial opens a websocket to rawURL.
func (d WebsocketDialer) Dial(ctx context.Context, rawURL string) (Transport, error) {
	hs := d.HandshakeTimeout
	if hs <= 0 {
		hs = DefaultDialTimeout
	}
	ka := d.Keepalive
	if ka <= 0 {
		ka = DefaultKeepalive
	}
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: hs,
	}
	c, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket handshake: %w", err)
	}
	return &wsTransport{conn: c, keepalive: ka}, nil
}

type wsTransport struct {
	conn      *websocket.Conn
	keepalive time.Duration
	mu        sync.Mutex // serialises writes
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.keepalive)); err != nil {
		return nil, err
	}
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.mu.Unlock()
	return t.conn.Close()
}
