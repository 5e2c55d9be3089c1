package realtime

import (
	"errors"
	"testing"
)

func created(item ConversationItem) *ServerEvent {
	return &ServerEvent{Type: EventTypeConversationItemCreated, Item: &item}
}

func mustApply(t *testing.T, c *Conversation, ev *ServerEvent) (*Item, *Delta, ChangeKind) {
	t.Helper()
	it, d, k, err := c.Apply(ev)
	if err != nil {
		t.Fatalf("Apply(%s): %v", ev.Type, err)
	}
	return it, d, k
}

func TestUserItemCompletedOnCreate(t *testing.T) {
	c := NewConversation()
	it, _, kind := mustApply(t, c, created(ConversationItem{
		ID: "u1", Type: ItemTypeMessage, Role: RoleUser, Status: StatusInProgress,
		Content: []ContentPart{InputText("hello")},
	}))
	if kind != ChangeCreated {
		t.Fatalf("kind = %v, want created", kind)
	}
	if it.Status != StatusCompleted {
		t.Errorf("user status = %q, want completed", it.Status)
	}
	if it.Formatted.Text != "hello" {
		t.Errorf("formatted text = %q", it.Formatted.Text)
	}

	// Duplicate creation is ignored.
	if it, _, _ := mustApply(t, c, created(ConversationItem{ID: "u1", Type: ItemTypeMessage, Role: RoleUser})); it != nil {
		t.Error("duplicate item.created produced an update")
	}
	if n := len(c.Items()); n != 1 {
		t.Fatalf("len(Items) = %d, want 1", n)
	}
}

func TestAssistantDeltasAndTruncate(t *testing.T) {
	c := NewConversation()
	mustApply(t, c, created(ConversationItem{ID: "a1", Type: ItemTypeMessage, Role: RoleAssistant}))
	mustApply(t, c, &ServerEvent{Type: EventTypeResponseContentPartAdded, ItemID: "a1", Part: &ContentPart{Type: "audio"}})
	mustApply(t, c, &ServerEvent{Type: EventTypeResponseAudioTranscriptDelta, ItemID: "a1", Delta: "Hi "})
	_, d, _ := mustApply(t, c, &ServerEvent{Type: EventTypeResponseAudioTranscriptDelta, ItemID: "a1", Delta: "there"})
	if d == nil || d.Transcript != "there" {
		t.Fatalf("delta = %+v", d)
	}
	audio := make([]int16, 4800)
	it, d, _ := mustApply(t, c, &ServerEvent{Type: EventTypeResponseAudioDelta, ItemID: "a1", Audio: audio})
	if len(d.Audio) != 4800 || len(it.Formatted.Audio) != 4800 {
		t.Fatalf("audio delta = %d, item audio = %d", len(d.Audio), len(it.Formatted.Audio))
	}
	if it.Status != StatusInProgress {
		t.Errorf("assistant status = %q, want in_progress", it.Status)
	}
	if it.Content[0].Transcript != "Hi there" || it.Formatted.Transcript != "Hi there" {
		t.Errorf("transcript = %q / %q", it.Content[0].Transcript, it.Formatted.Transcript)
	}

	it, _, kind := mustApply(t, c, &ServerEvent{Type: EventTypeConversationItemTruncated, ItemID: "a1", AudioEndMs: 100})
	if kind != ChangeTruncated {
		t.Fatalf("kind = %v", kind)
	}
	if len(it.Formatted.Audio) != 2400 {
		t.Errorf("truncated audio = %d samples, want 2400", len(it.Formatted.Audio))
	}
	if it.Formatted.Transcript != "" {
		t.Errorf("transcript after truncate = %q, want empty", it.Formatted.Transcript)
	}

	it, _, kind = mustApply(t, c, &ServerEvent{Type: EventTypeResponseOutputItemDone, Item: &ConversationItem{ID: "a1", Status: StatusIncomplete}})
	if kind != ChangeDone || it.Status != StatusIncomplete {
		t.Errorf("done: kind %v status %q", kind, it.Status)
	}
}

func TestTranscriptQueuedBeforeItem(t *testing.T) {
	c := NewConversation()
	it, _, _ := mustApply(t, c, &ServerEvent{
		Type: EventTypeConversationItemInputAudioTranscriptionCompleted, ItemID: "u1", Transcript: "early",
	})
	if it != nil {
		t.Fatal("transcription for unknown item should be queued")
	}
	it, _, _ = mustApply(t, c, created(ConversationItem{ID: "u1", Type: ItemTypeMessage, Role: RoleUser}))
	if it.Formatted.Transcript != "early" {
		t.Errorf("transcript = %q, want queued value", it.Formatted.Transcript)
	}
}

func TestEmptyTranscriptionBecomesSpace(t *testing.T) {
	c := NewConversation()
	mustApply(t, c, created(ConversationItem{ID: "u1", Type: ItemTypeMessage, Role: RoleUser, Content: []ContentPart{{Type: "input_audio"}}}))
	it, _, kind := mustApply(t, c, &ServerEvent{
		Type: EventTypeConversationItemInputAudioTranscriptionCompleted, ItemID: "u1",
	})
	if kind != ChangeTranscribed || it.Formatted.Transcript != " " {
		t.Errorf("kind %v transcript %q", kind, it.Formatted.Transcript)
	}
}

func TestSpeechSlicesInputAudio(t *testing.T) {
	c := NewConversation()
	in := make([]int16, 24000)
	for i := range in {
		in[i] = int16(i % 1000)
	}
	c.AppendInput(in)
	mustApply(t, c, &ServerEvent{Type: EventTypeInputAudioBufferSpeechStarted, ItemID: "u1", AudioStartMs: 500})
	mustApply(t, c, &ServerEvent{Type: EventTypeInputAudioBufferSpeechStopped, ItemID: "u1", AudioEndMs: 750})
	it, _, _ := mustApply(t, c, created(ConversationItem{ID: "u1", Type: ItemTypeMessage, Role: RoleUser}))
	if len(it.Formatted.Audio) != 6000 {
		t.Fatalf("user audio = %d samples, want 6000", len(it.Formatted.Audio))
	}
	if it.Formatted.Audio[0] != in[12000] {
		t.Errorf("slice starts at %d, want sample 12000", it.Formatted.Audio[0])
	}

	// Offsets stay absolute after earlier audio is dropped.
	c.AppendInput(make([]int16, 2400))
	mustApply(t, c, &ServerEvent{Type: EventTypeInputAudioBufferSpeechStarted, ItemID: "u2", AudioStartMs: 900})
	mustApply(t, c, &ServerEvent{Type: EventTypeInputAudioBufferSpeechStopped, ItemID: "u2", AudioEndMs: 1050})
	it, _, _ = mustApply(t, c, created(ConversationItem{ID: "u2", Type: ItemTypeMessage, Role: RoleUser}))
	if len(it.Formatted.Audio) != 3600 {
		t.Fatalf("second user audio = %d samples, want 3600", len(it.Formatted.Audio))
	}
	if it.Formatted.Audio[0] != in[21600] {
		t.Errorf("second slice starts at %d, want sample 21600", it.Formatted.Audio[0])
	}
}

func TestCommittedInputAttachesToNextUserItem(t *testing.T) {
	c := NewConversation()
	c.AppendInput([]int16{1, 2, 3})
	if !c.CommitInput() {
		t.Fatal("CommitInput reported nothing buffered")
	}
	if c.HasInput() {
		t.Fatal("input still buffered after commit")
	}
	it, _, _ := mustApply(t, c, created(ConversationItem{ID: "u1", Type: ItemTypeMessage, Role: RoleUser}))
	if len(it.Formatted.Audio) != 3 {
		t.Errorf("user audio = %v", it.Formatted.Audio)
	}
}

func TestFunctionCallItem(t *testing.T) {
	c := NewConversation()
	it, _, _ := mustApply(t, c, created(ConversationItem{ID: "f1", Type: ItemTypeFunctionCall, Name: "search_web", CallID: "call_1"}))
	if it.Formatted.Tool == nil || it.Formatted.Tool.Name != "search_web" || it.Formatted.Tool.CallID != "call_1" {
		t.Fatalf("tool = %+v", it.Formatted.Tool)
	}
	mustApply(t, c, &ServerEvent{Type: EventTypeResponseFunctionCallArgumentsDelta, ItemID: "f1", Delta: `{"query":`})
	it, _, _ = mustApply(t, c, &ServerEvent{Type: EventTypeResponseFunctionCallArgumentsDelta, ItemID: "f1", Delta: `"go"}`})
	if it.Formatted.Tool.Arguments != `{"query":"go"}` {
		t.Errorf("arguments = %q", it.Formatted.Tool.Arguments)
	}

	out, _, _ := mustApply(t, c, created(ConversationItem{ID: "o1", Type: ItemTypeFunctionCallOutput, CallID: "call_1", Output: `"ok"`}))
	if out.Status != StatusCompleted || out.Formatted.Output != `"ok"` {
		t.Errorf("output item = %+v", out)
	}
}

func TestUnknownItemErrors(t *testing.T) {
	c := NewConversation()
	_, _, _, err := c.Apply(&ServerEvent{Type: EventTypeResponseTextDelta, ItemID: "nope", Delta: "x"})
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
	// Server-side deletion of an unknown item is not an error.
	if _, _, _, err := c.Apply(&ServerEvent{Type: EventTypeConversationItemDeleted, ItemID: "nope"}); err != nil {
		t.Fatalf("deleted unknown item: %v", err)
	}
}

func TestCloneIsolation(t *testing.T) {
	c := NewConversation()
	mustApply(t, c, created(ConversationItem{ID: "a1", Type: ItemTypeMessage, Role: RoleAssistant, Content: []ContentPart{{Type: "audio"}}}))
	snap := c.Items()[0]
	mustApply(t, c, &ServerEvent{Type: EventTypeResponseAudioTranscriptDelta, ItemID: "a1", Delta: "later"})
	if snap.Content[0].Transcript != "" || snap.Formatted.Transcript != "" {
		t.Error("snapshot changed after a later delta")
	}
}
