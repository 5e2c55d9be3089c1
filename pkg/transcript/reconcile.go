package transcript

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/realtime"
)

// Persister saves a topic's full message history.
type Persister interface {
	SaveHistory(ctx context.Context, topic string, msgs []history.Message) error
}

// Reconciler owns a topic's message history. It upserts one message per
// item id as updates arrive. Streaming deltas only mark the history dirty;
// it is persisted when an item settles or on Flush. Messages are never
// removed, even when their item is deleted, except by Clear.
type Reconciler struct {
	topic string
	store Persister

	mu       sync.Mutex
	msgs     []history.Message
	index    map[string]int
	snapshot []*realtime.Item
	dirty    bool
}

// NewReconciler starts from the topic's previously persisted history.
// store may be nil for an unpersisted session.
func NewReconciler(topic string, store Persister, prior []history.Message) *Reconciler {
	r := &Reconciler{
		topic: topic,
		store: store,
		msgs:  slices.Clone(prior),
		index: make(map[string]int, len(prior)),
	}
	for i, m := range r.msgs {
		r.index[m.ID] = i
	}
	return r
}

// Apply folds one update into the history. It reports whether the history
// changed.
func (r *Reconciler) Apply(ctx context.Context, ev realtime.ItemUpdated) bool {
	r.mu.Lock()
	r.snapshot = ev.Items
	if ev.Change.Kind == realtime.ChangeDeleted || ev.Item == nil {
		r.mu.Unlock()
		return false
	}
	msg := history.Message{ID: ev.Item.ID, Sender: Sender(ev.Item), Text: ExtractText(ev.Item)}
	changed := r.upsertLocked(msg, ev.Items)
	if ev.Change.Kind == realtime.ChangeDelta {
		r.dirty = r.dirty || changed
		r.mu.Unlock()
		return changed
	}
	msgs, save := r.takeDirtyLocked(changed)
	r.mu.Unlock()

	if save {
		r.persist(ctx, msgs)
	}
	return changed
}

// Flush persists changes still pending from streaming deltas.
func (r *Reconciler) Flush(ctx context.Context) {
	r.mu.Lock()
	msgs, save := r.takeDirtyLocked(false)
	r.mu.Unlock()
	if save {
		r.persist(ctx, msgs)
	}
}

func (r *Reconciler) takeDirtyLocked(changed bool) ([]history.Message, bool) {
	if !changed && !r.dirty {
		return nil, false
	}
	r.dirty = false
	return slices.Clone(r.msgs), true
}

// upsertLocked inserts new messages in conversation order: before the first
// message whose item comes later in the snapshot, otherwise at the end.
func (r *Reconciler) upsertLocked(msg history.Message, items []*realtime.Item) bool {
	i, ok := r.index[msg.ID]
	if !ok {
		if msg.Text == "" {
			return false
		}
		pos := len(r.msgs)
		if at := slices.IndexFunc(items, func(it *realtime.Item) bool { return it.ID == msg.ID }); at >= 0 {
			later := make(map[string]bool, len(items)-at)
			for _, it := range items[at+1:] {
				later[it.ID] = true
			}
			if j := slices.IndexFunc(r.msgs, func(m history.Message) bool { return later[m.ID] }); j >= 0 {
				pos = j
			}
		}
		r.msgs = slices.Insert(r.msgs, pos, msg)
		for j := pos; j < len(r.msgs); j++ {
			r.index[r.msgs[j].ID] = j
		}
		return true
	}
	// An update that loses text (e.g. a truncation clearing the
	// transcript) keeps the last known text.
	if msg.Text == "" || r.msgs[i] == msg {
		return false
	}
	r.msgs[i] = msg
	return true
}

func (r *Reconciler) persist(ctx context.Context, msgs []history.Message) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveHistory(ctx, r.topic, msgs); err != nil {
		slog.Warn("transcript: persist history", "topic", r.topic, "error", err)
	}
}

// History returns a copy of the message history.
func (r *Reconciler) History() []history.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.msgs)
}

// Transcript renders the latest item snapshot.
func (r *Reconciler) Transcript() []Turn {
	r.mu.Lock()
	items := r.snapshot
	r.mu.Unlock()
	return Render(items)
}

// Clear empties and persists the history.
func (r *Reconciler) Clear(ctx context.Context) {
	r.mu.Lock()
	r.msgs = nil
	r.index = make(map[string]int)
	r.snapshot = nil
	r.dirty = false
	r.mu.Unlock()
	r.persist(ctx, nil)
}
