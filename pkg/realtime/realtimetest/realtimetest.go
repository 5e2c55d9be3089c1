// Package realtimetest provides an in-memory transport for testing code
// built on the realtime client.
package realtimetest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/josancamon19/realtime-tutor/pkg/realtime"
)

// ErrClosed is returned by a closed Conn.
var ErrClosed = errors.New("realtimetest: connection closed")

// Conn is an in-memory realtime.Conn. Events pushed with Serve are read by
// the client; events the client writes arrive on Sent.
type Conn struct {
	in     chan []byte
	Sent   chan map[string]any
	once   sync.Once
	closed chan struct{}
}

// NewConn returns an open Conn.
func NewConn() *Conn {
	return &Conn{
		in:     make(chan []byte, 64),
		Sent:   make(chan map[string]any, 1024),
		closed: make(chan struct{}),
	}
}

func (c *Conn) WriteJSON(v any) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	c.Sent <- m
	return nil
}

func (c *Conn) ReadMessage() ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Serve delivers a server event to the client.
func (c *Conn) Serve(t testing.TB, ev map[string]any) {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal server event: %v", err)
	}
	c.in <- b
}

// Next returns the next client event other than input_audio_buffer.append.
func (c *Conn) Next(t testing.TB) map[string]any {
	t.Helper()
	for {
		select {
		case m := <-c.Sent:
			if m["type"] == realtime.EventTypeInputAudioBufferAppend {
				continue
			}
			return m
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for client event")
			return nil
		}
	}
}

// Drain returns every client event sent so far, appends included.
func (c *Conn) Drain() []map[string]any {
	var out []map[string]any
	for {
		select {
		case m := <-c.Sent:
			out = append(out, m)
		default:
			return out
		}
	}
}

// Dialer hands out a new Conn per Dial, or fails with Err.
type Dialer struct {
	mu    sync.Mutex
	conns []*Conn
	Err   error
}

func (d *Dialer) Dial(context.Context) (realtime.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	c := NewConn()
	d.conns = append(d.conns, c)
	return c, nil
}

// SetErr makes subsequent dials fail with err (nil restores success).
func (d *Dialer) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Err = err
}

// Last returns the most recently dialed Conn, or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Dials returns the number of successful dials.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}
