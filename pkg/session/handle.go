package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/josancamon19/realtime-tutor/pkg/realtime"
	"github.com/josancamon19/realtime-tutor/pkg/transcript"
)

// handle routes client events. It runs on the client's read loop for
// server events and on the caller for client wire events.
func (m *Machine) handle(ev realtime.Event) {
	switch ev := ev.(type) {
	case realtime.WireEvent:
		m.events.Record(ev)
	case realtime.ChannelError:
		if ev.Closed {
			slog.Warn("session: channel closed", "error", ev.Err)
			return
		}
		var rerr *realtime.Error
		if errors.As(ev.Err, &rerr) {
			slog.Warn("session: server error", "type", rerr.Type, "code", rerr.Code, "message", rerr.Message)
			return
		}
		slog.Warn("session: channel error", "error", ev.Err)
	case realtime.Interrupted:
		m.interrupt()
	case realtime.ItemUpdated:
		m.itemUpdated(ev)
	case realtime.ToolInvoked:
		slog.Info("session: tool invoked", "name", ev.Name, "call_id", ev.CallID, "error", ev.Err)
	}
}

// interrupt stops playback and truncates the assistant item at the point
// the user heard.
func (m *Machine) interrupt() {
	off, ok := m.player.Interrupt()
	if !ok || off.TrackID == "" {
		return
	}
	if err := m.client.CancelResponse(off.TrackID, off.Offset); err != nil {
		slog.Warn("session: cancel response", "item", off.TrackID, "error", err)
	}
}

func (m *Machine) itemUpdated(ev realtime.ItemUpdated) {
	it := ev.Item
	if it == nil {
		return
	}
	if ev.Delta != nil && len(ev.Delta.Audio) > 0 {
		m.player.Add16BitPCM(ev.Delta.Audio, it.ID)
	}
	if asset, ok := m.assets.Apply(ev); ok {
		for _, fn := range m.onAsset {
			fn(it.ID, asset)
		}
	}

	ctx := context.Background()
	m.archiveItem(ctx, ev)

	m.mu.Lock()
	r := m.reconciler
	m.mu.Unlock()
	if r == nil {
		return
	}
	if r.Apply(ctx, ev) && m.graph != nil {
		m.graph.Observe(ctx, r.History())
	}
	if len(m.onTranscript) > 0 {
		turns := transcript.Render(ev.Items)
		for _, fn := range m.onTranscript {
			fn(turns)
		}
	}
}

func (m *Machine) archiveItem(ctx context.Context, ev realtime.ItemUpdated) {
	if m.archive == nil {
		return
	}
	it := ev.Item
	switch {
	case ev.Change.Kind == realtime.ChangeDeleted:
		if err := m.archive.Delete(ctx, it.ID); err != nil {
			slog.Warn("session: delete archived audio", "item", it.ID, "error", err)
		}
	case ev.Change.Kind != realtime.ChangeDelta && it.Status == realtime.StatusCompleted && len(it.Formatted.Audio) > 0:
		if err := m.archive.Upsert(ctx, it.ID, it.Formatted.Audio); err != nil {
			slog.Warn("session: archive audio", "item", it.ID, "error", err)
		}
	}
}
