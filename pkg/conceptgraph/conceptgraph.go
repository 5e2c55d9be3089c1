// Package conceptgraph regenerates a topic's concept map from its message
// history whenever the history grows by a fixed number of messages.
//
// The graph is a Mermaid flowchart produced by an external text-generation
// provider. At most one generation runs at a time; a trigger that arrives
// while one is in flight is dropped.
package conceptgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/llm"
	"github.com/josancamon19/realtime-tutor/pkg/transcript"
)

// DefaultInterval is the number of new messages between regenerations.
const DefaultInterval = 5

var (
	// ErrInFlight is returned when a regeneration is already running.
	ErrInFlight = errors.New("conceptgraph: generation in flight")
	// ErrEmptyGraph is returned when the provider produced no graph.
	ErrEmptyGraph = errors.New("conceptgraph: empty graph")
	// ErrStale is returned when Reset ran while the graph was being
	// generated. The result is discarded.
	ErrStale = errors.New("conceptgraph: history reset during generation")
)

// Store persists the graph per topic.
type Store interface {
	SaveGraph(ctx context.Context, topic, graph string) error
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithInterval sets the milestone interval. Values below 1 are ignored.
func WithInterval(n int) Option {
	return func(t *Trigger) {
		if n > 0 {
			t.interval = n
		}
	}
}

// WithStore persists every installed graph.
func WithStore(s Store) Option {
	return func(t *Trigger) { t.store = s }
}

// WithPublisher receives every graph value installed, including the empty
// value that precedes each new graph.
func WithPublisher(fn func(string)) Option {
	return func(t *Trigger) { t.publish = fn }
}

// Trigger decides when to regenerate and installs results.
type Trigger struct {
	gen      llm.Generator
	topicID  string
	title    string
	interval int
	store    Store
	publish  func(string)

	running atomic.Bool
	wg      sync.WaitGroup

	// saveMu orders installing a result against Reset.
	saveMu sync.Mutex

	mu    sync.Mutex
	epoch uint64
	next  int
	graph string
}

// New returns a trigger for one topic. Milestones count from zero until
// Reset sets a baseline.
func New(gen llm.Generator, topic history.Topic, opts ...Option) *Trigger {
	t := &Trigger{gen: gen, topicID: topic.ID, title: topic.Title, interval: DefaultInterval}
	for _, opt := range opts {
		opt(t)
	}
	t.next = t.interval
	return t
}

// Reset sets the baseline message count and the currently displayed graph.
// The next regeneration fires once count+interval messages exist. A
// regeneration still running is discarded when it finishes.
func (t *Trigger) Reset(count int, graph string) {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	t.mu.Lock()
	t.epoch++
	t.next = count + t.interval
	t.graph = graph
	t.mu.Unlock()
}

// Graph returns the installed graph.
func (t *Trigger) Graph() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph
}

// Observe checks msgs against the next milestone and, when reached, starts
// a regeneration in the background. Failures are logged.
func (t *Trigger) Observe(ctx context.Context, msgs []history.Message) {
	t.mu.Lock()
	if len(msgs) < t.next {
		t.mu.Unlock()
		return
	}
	for t.next <= len(msgs) {
		t.next += t.interval
	}
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		err := t.Regenerate(ctx, msgs)
		switch {
		case errors.Is(err, ErrInFlight):
			slog.Debug("conceptgraph: skipped, generation in flight", "topic", t.topicID)
		case errors.Is(err, ErrStale):
			slog.Debug("conceptgraph: discarded, history was reset", "topic", t.topicID)
		case err != nil:
			slog.Warn("conceptgraph: regenerate", "topic", t.topicID, "error", err)
		}
	}()
}

// Wait blocks until background regenerations started by Observe finish.
func (t *Trigger) Wait() { t.wg.Wait() }

// Regenerate builds a graph from msgs and installs it. It returns
// ErrInFlight without calling the provider if another regeneration is
// running. On failure the previous graph stays installed.
func (t *Trigger) Regenerate(ctx context.Context, msgs []history.Message) error {
	if !t.running.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer t.running.Store(false)

	t.mu.Lock()
	epoch := t.epoch
	t.mu.Unlock()

	out, err := t.gen.Generate(ctx, Prompt(t.title, msgs))
	if err != nil {
		return fmt.Errorf("conceptgraph: generate: %w", err)
	}
	graph := Clean(out)
	if graph == "" {
		return ErrEmptyGraph
	}

	t.saveMu.Lock()
	t.mu.Lock()
	if t.epoch != epoch {
		t.mu.Unlock()
		t.saveMu.Unlock()
		return ErrStale
	}
	t.graph = graph
	t.mu.Unlock()
	if t.store != nil {
		if err := t.store.SaveGraph(ctx, t.topicID, graph); err != nil {
			slog.Warn("conceptgraph: persist", "topic", t.topicID, "error", err)
		}
	}
	t.saveMu.Unlock()

	if t.publish != nil {
		t.publish("")
		t.publish(graph)
	}
	return nil
}

// Prompt asks for a Mermaid concept map of the parts of the conversation
// that concern the topic.
func Prompt(topic string, msgs []history.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below is a transcript of a tutoring conversation about %q.\n", topic)
	b.WriteString("Draw a concept map of the ideas discussed that relate to this topic and how they connect, ")
	b.WriteString("as a Mermaid flowchart starting with \"graph TD\". ")
	b.WriteString("Leave out greetings and anything unrelated to the topic. ")
	b.WriteString("Reply with the Mermaid code only.\n\nTranscript:\n")
	b.WriteString(transcript.Plain(transcript.Join(msgs)))
	return b.String()
}

// Clean strips a surrounding Markdown code fence and whitespace.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[i+1:]
		} else {
			rest = ""
		}
		rest, _ = strings.CutSuffix(strings.TrimSpace(rest), "```")
		s = strings.TrimSpace(rest)
	}
	return s
}
