package transcript_test

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/realtime"
	"github.com/josancamon19/realtime-tutor/pkg/transcript"
)

func msg(id, role, transcriptText string) *realtime.Item {
	return &realtime.Item{
		ID: id, Type: realtime.ItemTypeMessage, Role: role, Status: realtime.StatusCompleted,
		Formatted: realtime.Formatted{Transcript: transcriptText},
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		item *realtime.Item
		want string
	}{
		{"nil", nil, ""},
		{"transcript wins", &realtime.Item{Formatted: realtime.Formatted{Transcript: " spoken ", Text: "typed"}}, "spoken"},
		{"text fallback", &realtime.Item{Formatted: realtime.Formatted{Text: "typed"}}, "typed"},
		{"blank transcription", &realtime.Item{Formatted: realtime.Formatted{Transcript: " "}}, ""},
		{"content parts", &realtime.Item{Content: []realtime.ContentPart{
			{Type: "input_audio", Transcript: "first"},
			{Type: "input_text", Text: "second"},
			{Type: "input_audio"},
		}}, "first second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transcript.ExtractText(tt.item); got != tt.want {
				t.Fatalf("ExtractText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderMergesAdjacentSameSender(t *testing.T) {
	items := []*realtime.Item{
		msg("1", "user", "A"),
		msg("2", "user", "B"),
		msg("3", "assistant", ""),
		msg("4", "user", "C"),
		msg("5", "assistant", "D"),
		{ID: "6", Type: realtime.ItemTypeFunctionCall, Name: "search_web"},
	}
	want := []transcript.Turn{{Sender: "user", Text: "A B C"}, {Sender: "assistant", Text: "D"}}
	if got := transcript.Render(items); !slices.Equal(got, want) {
		t.Fatalf("Render = %+v, want %+v", got, want)
	}
}

func TestChatURL(t *testing.T) {
	turns := []transcript.Turn{{Sender: "user", Text: "hi"}, {Sender: "assistant", Text: "hello"}}
	raw, err := transcript.ChatURL("https://chat.example.com/?model=x", "Summarize:", turns)
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(raw)
	if got := u.Query().Get("q"); got != "Summarize:\n\nuser: hi\nassistant: hello" {
		t.Fatalf("q = %q", got)
	}
	if u.Query().Get("model") != "x" {
		t.Fatalf("existing query lost: %s", raw)
	}
}

type memPersister struct {
	mu    sync.Mutex
	saved [][]history.Message
	err   error
}

func (p *memPersister) SaveHistory(_ context.Context, _ string, msgs []history.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, msgs)
	return p.err
}

func update(kind realtime.ChangeKind, it *realtime.Item, items ...*realtime.Item) realtime.ItemUpdated {
	return realtime.ItemUpdated{Change: realtime.Change{ItemID: it.ID, Kind: kind}, Item: it, Items: items}
}

func TestReconcilerUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	r := transcript.NewReconciler("rust", p, nil)

	a := msg("a1", "assistant", "")
	if r.Apply(ctx, update(realtime.ChangeCreated, a, a)) {
		t.Fatal("empty item created a message")
	}
	a = msg("a1", "assistant", "Hel")
	r.Apply(ctx, update(realtime.ChangeDelta, a, a))
	a = msg("a1", "assistant", "Hello")
	r.Apply(ctx, update(realtime.ChangeDelta, a, a))
	if r.Apply(ctx, update(realtime.ChangeDone, a, a)) {
		t.Fatal("re-applying the same item reported a change")
	}

	want := []history.Message{{ID: "a1", Sender: "assistant", Text: "Hello"}}
	if got := r.History(); !slices.Equal(got, want) {
		t.Fatalf("History = %+v", got)
	}
	if len(p.saved) != 1 || !slices.Equal(p.saved[0], want) {
		t.Fatalf("persisted %d times, saved %+v", len(p.saved), p.saved)
	}
}

func TestReconcilerPersistsWhenItemSettles(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	r := transcript.NewReconciler("rust", p, nil)

	for _, text := range []string{"The", "The sun", "The sun is"} {
		a := msg("a1", "assistant", text)
		if !r.Apply(ctx, update(realtime.ChangeDelta, a, a)) {
			t.Fatalf("delta %q reported no change", text)
		}
	}
	if len(p.saved) != 0 {
		t.Fatalf("deltas persisted %d times", len(p.saved))
	}
	if got := r.History(); len(got) != 1 || got[0].Text != "The sun is" {
		t.Fatalf("History = %+v", got)
	}

	r.Flush(ctx)
	r.Flush(ctx)
	if len(p.saved) != 1 || p.saved[0][0].Text != "The sun is" {
		t.Fatalf("Flush persisted %+v", p.saved)
	}

	u := msg("u1", "user", "why?")
	a := msg("a1", "assistant", "The sun is a star.")
	r.Apply(ctx, update(realtime.ChangeDelta, a, a, u))
	r.Apply(ctx, update(realtime.ChangeTranscribed, u, a, u))
	if len(p.saved) != 2 || len(p.saved[1]) != 2 || p.saved[1][0].Text != "The sun is a star." {
		t.Fatalf("settled save = %+v", p.saved)
	}
}

func TestReconcilerKeepsOrderAndPriorHistory(t *testing.T) {
	ctx := context.Background()
	prior := []history.Message{{ID: "old", Sender: "user", Text: "before"}}
	r := transcript.NewReconciler("rust", nil, prior)

	u := msg("u1", "user", "question")
	a := msg("a1", "assistant", "answer")
	r.Apply(ctx, update(realtime.ChangeCreated, a, u, a))
	r.Apply(ctx, update(realtime.ChangeTranscribed, u, u, a))

	var ids []string
	for _, m := range r.History() {
		ids = append(ids, m.ID)
	}
	if want := []string{"old", "u1", "a1"}; !slices.Equal(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	if got := r.Transcript(); !slices.Equal(got, []transcript.Turn{{Sender: "user", Text: "question"}, {Sender: "assistant", Text: "answer"}}) {
		t.Fatalf("Transcript = %+v", got)
	}
}

func TestReconcilerNeverDeletes(t *testing.T) {
	ctx := context.Background()
	r := transcript.NewReconciler("rust", nil, nil)
	a := msg("a1", "assistant", "kept")
	r.Apply(ctx, update(realtime.ChangeDone, a, a))
	r.Apply(ctx, update(realtime.ChangeDeleted, a))
	cleared := msg("a1", "assistant", "")
	r.Apply(ctx, update(realtime.ChangeTruncated, cleared, cleared))
	if got := r.History(); len(got) != 1 || got[0].Text != "kept" {
		t.Fatalf("History = %+v", got)
	}
	if len(r.Transcript()) != 0 {
		t.Fatalf("Transcript after truncation = %+v", r.Transcript())
	}

	r.Clear(ctx)
	if got := r.History(); len(got) != 0 {
		t.Fatalf("History after Clear = %+v", got)
	}
}

func TestReconcilerPersistFailureIsSwallowed(t *testing.T) {
	p := &memPersister{err: errors.New("disk full")}
	r := transcript.NewReconciler("rust", p, nil)
	a := msg("a1", "assistant", "x")
	if !r.Apply(context.Background(), update(realtime.ChangeDone, a, a)) {
		t.Fatal("Apply reported no change")
	}
	if got := r.History(); len(got) != 1 || len(p.saved) != 1 {
		t.Fatalf("history lost after persist failure: %+v", got)
	}
}

func TestEventLogCoalescesAdjacentOnly(t *testing.T) {
	l := transcript.NewEventLog(0)
	t0 := time.Unix(100, 0)
	for i, typ := range []string{"input_audio_buffer.append", "input_audio_buffer.append", "response.create", "input_audio_buffer.append"} {
		l.Record(realtime.WireEvent{Time: t0.Add(time.Duration(i) * time.Second), Source: realtime.SourceClient, Type: typ})
	}
	got := l.Entries()
	if len(got) != 3 {
		t.Fatalf("entries = %+v", got)
	}
	if got[0].Count != 2 || !got[0].Time.Equal(t0) {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].Count != 1 || got[2].Count != 1 || got[2].Type != "input_audio_buffer.append" {
		t.Errorf("entries = %+v", got)
	}
}

func TestEventLogLimit(t *testing.T) {
	l := transcript.NewEventLog(2)
	for _, typ := range []string{"a", "b", "c"} {
		l.Record(realtime.WireEvent{Type: typ})
	}
	got := l.Entries()
	if len(got) != 2 || got[0].Type != "b" {
		t.Fatalf("entries = %+v", got)
	}
}

func TestAssetsOnlyCompletedAssistantAudio(t *testing.T) {
	a := transcript.NewAssets(24000)
	user := &realtime.Item{ID: "u", Role: "user", Status: realtime.StatusCompleted, Formatted: realtime.Formatted{Audio: []int16{1}}}
	pending := &realtime.Item{ID: "p", Role: "assistant", Status: realtime.StatusInProgress, Formatted: realtime.Formatted{Audio: []int16{1}}}
	silent := &realtime.Item{ID: "s", Role: "assistant", Status: realtime.StatusCompleted}
	for _, it := range []*realtime.Item{user, pending, silent} {
		if _, ok := a.Apply(update(realtime.ChangeDone, it)); ok {
			t.Fatalf("item %s produced an asset", it.ID)
		}
	}

	done := &realtime.Item{ID: "d", Role: "assistant", Status: realtime.StatusCompleted, Formatted: realtime.Formatted{Audio: []int16{1, 2, 3}}}
	asset, ok := a.Apply(update(realtime.ChangeDone, done))
	if !ok || !slices.Equal(asset.Samples, []int16{1, 2, 3}) {
		t.Fatalf("asset = %+v", asset)
	}
	if _, ok := a.Apply(update(realtime.ChangeDone, done)); ok {
		t.Fatal("repeated done decoded again")
	}
	done.Formatted.Audio = []int16{1, 2}
	if asset, ok := a.Apply(update(realtime.ChangeTruncated, done)); !ok || len(asset.Samples) != 2 {
		t.Fatalf("truncated asset = %+v", asset)
	}

	a.Apply(update(realtime.ChangeDeleted, done))
	if _, ok := a.Apply(update(realtime.ChangeDone, done)); !ok {
		t.Fatal("deleted item kept its asset")
	}
}
