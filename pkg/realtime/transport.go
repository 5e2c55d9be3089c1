package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is the Realtime API WebSocket endpoint.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// Conn is an open event channel. WriteJSON may be called concurrently with
// ReadMessage; Close unblocks a pending ReadMessage.
type Conn interface {
	WriteJSON(v any) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens event channels.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebSocketDialer dials the Realtime API over WebSocket.
type WebSocketDialer struct {
	APIKey       string
	Model        string // default ModelGPT4oRealtimePreview
	URL          string // default DefaultURL
	Organization string
	Project      string

	HandshakeTimeout time.Duration
}

// Dial connects and returns the channel.
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	base := d.URL
	if base == "" {
		base = DefaultURL
	}
	model := d.Model
	if model == "" {
		model = ModelGPT4oRealtimePreview
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("realtime: parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+d.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")
	if d.Organization != "" {
		headers.Set("OpenAI-Organization", d.Organization)
	}
	if d.Project != "" {
		headers.Set("OpenAI-Project", d.Project)
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime: dial %s: http %d: %w", u.Host, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime: dial %s: %w", u.Host, err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn serializes writes; gorilla allows one concurrent reader and one
// concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
