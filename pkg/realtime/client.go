package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
)

var (
	// ErrNotConnected is returned by operations that need an open channel.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrAlreadyConnected is returned by Connect on an open client.
	ErrAlreadyConnected = errors.New("realtime: already connected")
)

// Client is a Realtime API client. All methods are safe for concurrent use.
type Client struct {
	dialer Dialer
	conv   *Conversation

	mu       sync.Mutex
	conn     Conn
	cancel   context.CancelFunc
	ctx      context.Context
	session  SessionConfig
	tools    map[string]*registeredTool
	order    []string
	handlers []Handler
}

// NewClient returns a disconnected client that dials through d.
func NewClient(d Dialer) *Client {
	return &Client{
		dialer:  d,
		conv:    NewConversation(),
		session: defaultSessionConfig(),
		tools:   make(map[string]*registeredTool),
	}
}

// OnEvent registers h for every subsequent event.
func (c *Client) OnEvent(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Client) emit(ev Event) {
	c.mu.Lock()
	hs := slices.Clone(c.handlers)
	c.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

// Connect opens the channel and pushes the current session configuration.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return ErrAlreadyConnected
	}
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("realtime: connect: %w", err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyConnected
	}
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	go c.readLoop(conn)
	slog.Debug("realtime: connected")
	c.emit(ChannelOpened{})

	if err := c.UpdateSession(SessionConfig{}); err != nil {
		c.Disconnect()
		return fmt.Errorf("realtime: connect: %w", err)
	}
	return nil
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Disconnect closes the channel and clears the conversation. It is safe to
// call in any state.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	c.conv.Clear()
	if conn == nil {
		return nil
	}
	slog.Debug("realtime: disconnected")
	if err := conn.Close(); err != nil {
		return fmt.Errorf("realtime: close: %w", err)
	}
	return nil
}

// Reset disconnects and restores handlers, session configuration and tools
// to their defaults.
func (c *Client) Reset() {
	c.Disconnect()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = nil
	c.session = defaultSessionConfig()
	c.tools = make(map[string]*registeredTool)
	c.order = nil
}

// UpdateSession merges cfg into the session configuration and, when
// connected, sends the result together with all registered tools.
func (c *Client) UpdateSession(cfg SessionConfig) error {
	c.mu.Lock()
	c.session.merge(cfg)
	session := c.session
	session.Tools = slices.Clone(c.session.Tools)
	for _, name := range c.order {
		session.Tools = append(session.Tools, c.tools[name].def.wire())
	}
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.send(EventTypeSessionUpdate, map[string]any{"session": session})
}

// Session returns the current session configuration.
func (c *Client) Session() SessionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// AddTool registers a tool and announces it to the server.
func (c *Client) AddTool(def ToolDefinition, handler ToolHandler) error {
	if def.Name == "" {
		return errors.New("realtime: tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("realtime: tool %s: handler is required", def.Name)
	}
	c.mu.Lock()
	if _, ok := c.tools[def.Name]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrToolExists, def.Name)
	}
	c.tools[def.Name] = &registeredTool{def: def, handler: handler}
	c.order = append(c.order, def.Name)
	c.mu.Unlock()
	return c.UpdateSession(SessionConfig{})
}

// SendUserMessageContent adds a user message and asks for a response.
func (c *Client) SendUserMessageContent(parts []ContentPart) error {
	if len(parts) > 0 {
		err := c.send(EventTypeConversationItemCreate, map[string]any{
			"item": ConversationItem{Type: ItemTypeMessage, Role: RoleUser, Content: parts},
		})
		if err != nil {
			return err
		}
	}
	return c.CreateResponse()
}

// AppendInputAudio streams one frame of 24 kHz PCM16 input. It fails with
// ErrNotConnected when the channel is not open.
func (c *Client) AppendInputAudio(samples []int16) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(samples) == 0 {
		return nil
	}
	err := c.send(EventTypeInputAudioBufferAppend, map[string]any{
		"audio": base64.StdEncoding.EncodeToString(pcm.Bytes(samples)),
	})
	if err != nil {
		return err
	}
	c.conv.AppendInput(samples)
	return nil
}

// CreateResponse asks the server for a response. In manual turn mode any
// buffered input audio is committed first.
func (c *Client) CreateResponse() error {
	c.mu.Lock()
	manual := c.session.TurnDetection == nil
	c.mu.Unlock()
	if manual && c.conv.HasInput() {
		if err := c.send(EventTypeInputAudioBufferCommit, nil); err != nil {
			return err
		}
		c.conv.CommitInput()
	}
	return c.send(EventTypeResponseCreate, nil)
}

// CancelResponse cancels the in-flight response. When itemID is set, the
// assistant item's audio is truncated at sampleCount samples, the amount
// the user actually heard.
func (c *Client) CancelResponse(itemID string, sampleCount int) error {
	if itemID == "" {
		return c.send(EventTypeResponseCancel, nil)
	}
	it, ok := c.conv.Item(itemID)
	if !ok {
		return fmt.Errorf("realtime: cancel response %q: %w", itemID, ErrItemNotFound)
	}
	if it.Type != ItemTypeMessage || it.Role != RoleAssistant {
		return fmt.Errorf("realtime: cancel response %q: not an assistant message", itemID)
	}
	if err := c.send(EventTypeResponseCancel, nil); err != nil {
		return err
	}
	idx := slices.IndexFunc(it.Content, func(p ContentPart) bool { return p.Type == "audio" })
	if idx < 0 {
		return fmt.Errorf("realtime: cancel response %q: no audio content", itemID)
	}
	return c.send(EventTypeConversationItemTruncate, map[string]any{
		"item_id":       itemID,
		"content_index": idx,
		"audio_end_ms":  pcm.Realtime.Millis(sampleCount),
	})
}

// DeleteItem removes an item locally and asks the server to delete it.
func (c *Client) DeleteItem(id string) error {
	if it, ok := c.conv.Delete(id); ok {
		c.emit(ItemUpdated{
			Change: Change{ItemID: id, Kind: ChangeDeleted},
			Item:   it.Clone(),
			Items:  c.conv.Items(),
		})
	}
	return c.send(EventTypeConversationItemDelete, map[string]any{"item_id": id})
}

// Items returns snapshots of the live items in creation order.
func (c *Client) Items() []*Item { return c.conv.Items() }

func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

func (c *Client) send(typ string, fields map[string]any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	event := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		event[k] = v
	}
	event["event_id"] = generateEventID()
	event["type"] = typ

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", typ, err)
	}
	if typ != EventTypeInputAudioBufferAppend {
		slog.Debug("realtime: send", "type", typ, "content", truncate(raw, 500))
	}
	if err := conn.WriteJSON(json.RawMessage(raw)); err != nil {
		c.drop(conn, err)
		return fmt.Errorf("realtime: send %s: %w", typ, err)
	}
	c.emit(WireEvent{Time: time.Now(), Source: SourceClient, Type: typ, Raw: raw})
	return nil
}

// drop tears down conn after a transport failure, if it is still current.
func (c *Client) drop(conn Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	conn.Close()
	slog.Warn("realtime: connection lost", "error", cause)
	c.emit(ChannelError{Err: fmt.Errorf("realtime: connection lost: %w", cause), Closed: true})
}

func (c *Client) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}
		ev, err := parseServerEvent(data)
		if err != nil {
			slog.Warn("realtime: bad server event", "error", err, "content", truncate(data, 200))
			continue
		}
		if ev.Type != EventTypeResponseAudioDelta {
			slog.Debug("realtime: recv", "type", ev.Type, "content", truncate(data, 1000))
		}
		c.emit(WireEvent{Time: time.Now(), Source: SourceServer, Type: ev.Type, Raw: data})
		c.handleServerEvent(ev)
	}
}

func (c *Client) handleServerEvent(ev *ServerEvent) {
	switch ev.Type {
	case EventTypeError:
		err := ev.Error.toError()
		slog.Warn("realtime: server error", "error", err)
		c.emit(ChannelError{Err: err})
		return
	case EventTypeInputAudioBufferSpeechStarted:
		c.conv.Apply(ev)
		c.emit(Interrupted{ItemID: ev.ItemID, AudioStartMs: ev.AudioStartMs})
		return
	}

	it, delta, kind, err := c.conv.Apply(ev)
	if err != nil {
		slog.Warn("realtime: apply event", "type", ev.Type, "error", err)
		c.emit(ChannelError{Err: err})
		return
	}
	if it == nil {
		return
	}
	snapshot := it.Clone()
	c.emit(ItemUpdated{
		Change: Change{ItemID: it.ID, Kind: kind},
		Item:   snapshot,
		Delta:  delta,
		Items:  c.conv.Items(),
	})
	if ev.Type == EventTypeResponseOutputItemDone && snapshot.Formatted.Tool != nil {
		c.mu.Lock()
		ctx := c.ctx
		c.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}
		go c.callTool(ctx, *snapshot.Formatted.Tool)
	}
}

func (c *Client) callTool(ctx context.Context, call FormattedTool) {
	c.mu.Lock()
	t, ok := c.tools[call.Name]
	c.mu.Unlock()

	var (
		output string
		err    error
	)
	if !ok {
		err = fmt.Errorf("tool %q has not been added", call.Name)
		output = errorOutput(err)
	} else {
		output, err = runTool(ctx, t, call.Arguments)
	}
	if err != nil {
		slog.Warn("realtime: tool failed", "tool", call.Name, "error", err)
	}

	sendErr := c.send(EventTypeConversationItemCreate, map[string]any{
		"item": ConversationItem{Type: ItemTypeFunctionCallOutput, CallID: call.CallID, Output: output},
	})
	if sendErr == nil {
		sendErr = c.CreateResponse()
	}
	if sendErr != nil {
		slog.Warn("realtime: send tool result", "tool", call.Name, "error", sendErr)
	}
	c.emit(ToolInvoked{CallID: call.CallID, Name: call.Name, Arguments: call.Arguments, Output: output, Err: err})
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
