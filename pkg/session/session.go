// Package session runs one topic's voice session: it wires the microphone,
// the speaker and the realtime protocol client together, reconciles the
// resulting item stream into history, and recovers when audio streaming
// fails mid-session.
//
// A Machine moves through Disconnected, Connecting, Connected and Recording.
// When streaming a captured frame fails it enters Reconnecting, tears
// everything down and reconnects with bounded, backed-off retries, ending in
// Failed if all attempts fail. A reconnect episode only ends once the new
// recording has streamed for ReconnectPolicy.Stable, so a channel that
// keeps failing right after it opens still exhausts the attempts. Capture
// device failures are not retried.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/googleapis/gax-go/v2"

	"github.com/josancamon19/realtime-tutor/pkg/audio/capture"
	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
	"github.com/josancamon19/realtime-tutor/pkg/audio/playback"
	"github.com/josancamon19/realtime-tutor/pkg/audio/spectrum"
	"github.com/josancamon19/realtime-tutor/pkg/conceptgraph"
	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/realtime"
	"github.com/josancamon19/realtime-tutor/pkg/transcript"
)

var (
	// ErrAudioAppend wraps failures to stream a captured frame.
	ErrAudioAppend = errors.New("session: audio append failed")
	// ErrReconnectExhausted is reported when every reconnect attempt failed.
	ErrReconnectExhausted = errors.New("session: reconnect attempts exhausted")
	// ErrBusy is returned by Connect unless the session is Disconnected or
	// Failed.
	ErrBusy = errors.New("session: busy")
)

// Recorder is the capture pipeline.
type Recorder interface {
	Begin() error
	Record(sink capture.Sink) (<-chan error, error)
	End() error
	Frequencies(kind spectrum.Kind) spectrum.Snapshot
}

// Player is the playback pipeline.
type Player interface {
	Connect() error
	Add16BitPCM(samples []int16, trackID string)
	Interrupt() (playback.TrackOffset, bool)
	Close() error
	Frequencies(kind spectrum.Kind) spectrum.Snapshot
}

// Protocol is the realtime client.
type Protocol interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	Reset()
	OnEvent(h realtime.Handler)
	UpdateSession(cfg realtime.SessionConfig) error
	SendUserMessageContent(parts []realtime.ContentPart) error
	AppendInputAudio(samples []int16) error
	CancelResponse(itemID string, sampleCount int) error
}

// HistoryStore loads and clears a topic's persisted state.
type HistoryStore interface {
	transcript.Persister
	LoadHistory(ctx context.Context, topic string) ([]history.Message, error)
	LoadGraph(ctx context.Context, topic string) (string, error)
	Clear(ctx context.Context, topic string) error
}

// Option configures a Machine.
type Option func(*Machine)

// WithHistory persists history in s and resumes from it.
func WithHistory(s HistoryStore) Option {
	return func(m *Machine) { m.store = s }
}

// WithResumer replaces the default text resumption.
func WithResumer(r history.Resumer) Option {
	return func(m *Machine) { m.resumer = r }
}

// WithArchive archives the audio of completed items.
func WithArchive(a *history.AudioArchive) Option {
	return func(m *Machine) { m.archive = a }
}

// WithGraph regenerates the concept graph as history grows.
func WithGraph(t *conceptgraph.Trigger) Option {
	return func(m *Machine) { m.graph = t }
}

// WithStateObserver is called on every state transition, with the error
// that caused it if any.
func WithStateObserver(fn func(State, error)) Option {
	return func(m *Machine) { m.onState = append(m.onState, fn) }
}

// WithTranscriptObserver is called with the rendered transcript after every
// item update.
func WithTranscriptObserver(fn func([]transcript.Turn)) Option {
	return func(m *Machine) { m.onTranscript = append(m.onTranscript, fn) }
}

// WithAssetObserver is called with the decoded audio of every completed
// assistant item.
func WithAssetObserver(fn func(itemID string, a *playback.Asset)) Option {
	return func(m *Machine) { m.onAsset = append(m.onAsset, fn) }
}

// Machine is the session state machine for one topic.
type Machine struct {
	cfg     Config
	rec     Recorder
	player  Player
	client  Protocol
	store   HistoryStore
	resumer history.Resumer
	archive *history.AudioArchive
	graph   *conceptgraph.Trigger
	events  *transcript.EventLog
	assets  *transcript.Assets

	onState      []func(State, error)
	onTranscript []func([]transcript.Turn)
	onAsset      []func(string, *playback.Asset)

	// opMu serializes connect, reconnect and disconnect.
	opMu sync.Mutex

	mu         sync.Mutex
	state      State
	err        error
	gen        uint64
	cancel     context.CancelFunc
	episode    *episode
	reconciler *transcript.Reconciler
}

// episode counts reconnect attempts across reconnects that did not last.
type episode struct {
	attempts int
	bo       *gax.Backoff
}

// New returns a Disconnected machine and subscribes it to client events.
func New(cfg Config, rec Recorder, player Player, client Protocol, opts ...Option) *Machine {
	cfg.setDefaults()
	m := &Machine{
		cfg:    cfg,
		rec:    rec,
		player: player,
		client: client,
		events: transcript.NewEventLog(500),
		assets: transcript.NewAssets(pcm.Realtime.SampleRate()),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.resumer == nil {
		m.resumer = history.TextResumption{Phrase: cfg.ResumptionPhrase}
	}
	client.OnEvent(m.handle)
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the error behind the latest transition, if any.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Machine) setState(s State, err error) {
	m.mu.Lock()
	if m.state == s && m.err == err {
		m.mu.Unlock()
		return
	}
	m.state, m.err = s, err
	m.mu.Unlock()
	slog.Debug("session: state", "state", s, "error", err)
	for _, fn := range m.onState {
		fn(s, err)
	}
}

// Connect acquires the microphone, the speaker and the channel in that
// order, opens the conversation and starts recording. On failure every
// resource acquired so far is released and the state returns to
// Disconnected.
func (m *Machine) Connect(ctx context.Context) error {
	if !m.opMu.TryLock() {
		return ErrBusy
	}
	defer m.opMu.Unlock()
	if s := m.State(); s != Disconnected && s != Failed {
		return ErrBusy
	}
	m.mu.Lock()
	m.gen++
	m.episode = nil
	m.mu.Unlock()
	return m.connect(ctx, false)
}

func (m *Machine) connect(ctx context.Context, reconnecting bool) error {
	fail := func(err error) error {
		if !reconnecting {
			m.setState(Disconnected, err)
		}
		return err
	}
	if !reconnecting {
		m.setState(Connecting, nil)
	}

	if err := m.rec.Begin(); err != nil {
		return fail(fmt.Errorf("session: connect: %w", err))
	}
	if err := m.player.Connect(); err != nil {
		m.rec.End()
		return fail(fmt.Errorf("session: connect: %w", err))
	}

	var prior []history.Message
	if reconnecting {
		prior = m.reconcilerOrNil().History()
	} else {
		var err error
		if prior, err = m.loadHistory(ctx); err != nil {
			m.rec.End()
			m.player.Close()
			return fail(err)
		}
	}
	if err := m.client.UpdateSession(m.cfg.session(m.instructions(prior))); err != nil {
		m.rec.End()
		m.player.Close()
		return fail(fmt.Errorf("session: configure: %w", err))
	}
	if err := m.client.Connect(ctx); err != nil {
		m.rec.End()
		m.player.Close()
		return fail(fmt.Errorf("session: connect: %w", err))
	}
	m.setState(Connected, nil)

	if !reconnecting {
		m.open(ctx, prior)
	}
	if err := m.startRecording(); err != nil {
		m.teardown()
		return fail(err)
	}
	return nil
}

// loadHistory starts a fresh reconciler and graph baseline from the store.
func (m *Machine) loadHistory(ctx context.Context) ([]history.Message, error) {
	var (
		prior []history.Message
		graph string
		err   error
	)
	var persister transcript.Persister
	if m.store != nil {
		persister = m.store
		if prior, err = m.store.LoadHistory(ctx, m.cfg.Topic.ID); err != nil {
			return nil, fmt.Errorf("session: load history: %w", err)
		}
		if graph, err = m.store.LoadGraph(ctx, m.cfg.Topic.ID); err != nil {
			slog.Warn("session: load graph", "topic", m.cfg.Topic.ID, "error", err)
		}
	}
	r := transcript.NewReconciler(m.cfg.Topic.ID, persister, prior)
	m.mu.Lock()
	m.reconciler = r
	m.mu.Unlock()
	if m.graph != nil {
		m.graph.Reset(len(prior), graph)
	}
	return prior, nil
}

func (m *Machine) reconcilerOrNil() *transcript.Reconciler {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconciler == nil {
		m.reconciler = transcript.NewReconciler(m.cfg.Topic.ID, nil, nil)
	}
	return m.reconciler
}

// instructions appends the topic and prior conversation to the base prompt.
func (m *Machine) instructions(prior []history.Message) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(m.cfg.Instructions))
	if title := m.cfg.Topic.Title; title != "" {
		fmt.Fprintf(&b, "\n\nThe topic of this session is %q. Keep the conversation focused on it.", title)
	}
	if len(prior) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		b.WriteString(transcript.Plain(transcript.Join(prior)))
	}
	return strings.TrimSpace(b.String())
}

// open sends the greeting for a new topic or the resumption turn for one
// with history. The resumption turn is skipped when the last two messages
// already are the resumption phrase.
func (m *Machine) open(ctx context.Context, prior []history.Message) {
	var parts []realtime.ContentPart
	switch {
	case len(prior) == 0:
		parts = []realtime.ContentPart{realtime.InputText(m.cfg.Greeting)}
	case m.resumptionLooping(prior):
		slog.Debug("session: resumption already sent, skipping")
		return
	default:
		var err error
		if parts, err = m.resumer.Resume(ctx, prior); err != nil {
			slog.Warn("session: build resumption", "error", err)
			parts = []realtime.ContentPart{realtime.InputText(m.cfg.ResumptionPhrase)}
		}
	}
	if err := m.client.SendUserMessageContent(parts); err != nil {
		slog.Warn("session: send opening turn", "error", err)
	}
}

func (m *Machine) resumptionLooping(prior []history.Message) bool {
	if len(prior) < 2 {
		return false
	}
	phrase := strings.TrimSpace(m.cfg.ResumptionPhrase)
	for _, msg := range prior[len(prior)-2:] {
		if strings.TrimSpace(msg.Text) != phrase {
			return false
		}
	}
	return true
}

func (m *Machine) startRecording() error {
	started := time.Now()
	stable := false
	errc, err := m.rec.Record(func(f capture.Frame) error {
		if err := m.client.AppendInputAudio(f.Mono); err != nil {
			return fmt.Errorf("%w: %w", ErrAudioAppend, err)
		}
		if !stable && time.Since(started) >= m.cfg.Reconnect.Stable {
			stable = true
			m.mu.Lock()
			m.episode = nil
			m.mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: record: %w", err)
	}
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	m.setState(Recording, nil)
	go m.watch(gen, errc)
	return nil
}

// watch waits for the capture loop to stop and starts recovery if it
// stopped with an error while this recording was still current.
func (m *Machine) watch(gen uint64, errc <-chan error) {
	err, ok := <-errc
	if !ok || err == nil {
		return
	}
	m.mu.Lock()
	current := m.gen == gen && m.state == Recording
	m.mu.Unlock()
	if !current {
		return
	}
	if !errors.Is(err, ErrAudioAppend) {
		slog.Warn("session: capture failed", "error", err)
		m.stop(gen, err)
		return
	}
	slog.Warn("session: audio streaming failed, reconnecting", "error", err)
	m.recover(gen, err)
}

// stop releases everything after a failure that is not retried.
func (m *Machine) stop(gen uint64, cause error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.mu.Unlock()
	if err := m.teardown(); err != nil {
		slog.Warn("session: teardown", "error", err)
	}
	m.setState(Disconnected, cause)
}

func (m *Machine) recover(gen uint64, cause error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.cancel = cancel
	policy := m.cfg.Reconnect
	ep := m.episode
	if ep == nil {
		ep = &episode{bo: policy.backoff()}
		m.episode = ep
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
	}()

	m.setState(Reconnecting, cause)
	m.teardown()

	err := cause
	for ep.attempts < policy.MaxAttempts {
		ep.attempts++
		if ep.attempts > 1 {
			if gax.Sleep(ctx, ep.bo.Pause()) != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err = m.connect(ctx, true); err == nil {
			slog.Info("session: reconnected", "attempt", ep.attempts)
			return
		}
		slog.Warn("session: reconnect attempt failed", "attempt", ep.attempts, "error", err)
	}
	m.mu.Lock()
	m.episode = nil
	m.mu.Unlock()
	m.setState(Failed, fmt.Errorf("%w: %w", ErrReconnectExhausted, err))
}

// teardown stops capture, silences and releases the speaker, and closes the
// channel. Every step runs even if an earlier one fails.
func (m *Machine) teardown() error {
	errCapture := m.rec.End()
	m.player.Interrupt()
	errPlayback := m.player.Close()
	errClient := m.client.Disconnect()
	return errors.Join(errCapture, errPlayback, errClient)
}

// Disconnect stops any reconnect in progress and releases everything. It is
// safe to call in any state.
func (m *Machine) Disconnect() error {
	m.mu.Lock()
	m.gen++
	m.episode = nil
	cancel := m.cancel
	r := m.reconciler
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	err := m.teardown()
	if err != nil {
		err = fmt.Errorf("session: disconnect: %w", err)
	}
	if r != nil {
		r.Flush(context.Background())
	}
	m.setState(Disconnected, nil)
	return err
}

// Close disconnects, resets the protocol client and waits for background
// graph generation. The machine cannot be reused.
func (m *Machine) Close() error {
	err := m.Disconnect()
	m.client.Reset()
	if m.graph != nil {
		m.graph.Wait()
	}
	return err
}

// IsConnected reports whether the channel is open.
func (m *Machine) IsConnected() bool { return m.client.IsConnected() }

// Topic returns the session's topic.
func (m *Machine) Topic() history.Topic { return m.cfg.Topic }

// History returns the message history known to the session.
func (m *Machine) History() []history.Message {
	m.mu.Lock()
	r := m.reconciler
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.History()
}

// Transcript renders the live conversation.
func (m *Machine) Transcript() []transcript.Turn {
	m.mu.Lock()
	r := m.reconciler
	m.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Transcript()
}

// Events returns the coalesced wire event log.
func (m *Machine) Events() []transcript.LogEntry { return m.events.Entries() }

// Graph returns the installed concept graph.
func (m *Machine) Graph() string {
	if m.graph == nil {
		return ""
	}
	return m.graph.Graph()
}

// ClearHistory empties the topic's history, graph and audio archive.
func (m *Machine) ClearHistory(ctx context.Context) error {
	var errs []error
	if m.graph != nil {
		m.graph.Reset(0, "")
	}
	m.reconcilerOrNil().Clear(ctx)
	if m.store != nil {
		errs = append(errs, m.store.Clear(ctx, m.cfg.Topic.ID))
	}
	if m.archive != nil {
		errs = append(errs, m.archive.Clear(ctx))
	}
	return errors.Join(errs...)
}

// InputFrequencies visualizes the microphone.
func (m *Machine) InputFrequencies(kind spectrum.Kind) spectrum.Snapshot {
	return m.rec.Frequencies(kind)
}

// OutputFrequencies visualizes the speaker.
func (m *Machine) OutputFrequencies(kind spectrum.Kind) spectrum.Snapshot {
	return m.player.Frequencies(kind)
}
