package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/josancamon19/realtime-tutor/pkg/audio/capture"
	"github.com/josancamon19/realtime-tutor/pkg/audio/playback"
	"github.com/josancamon19/realtime-tutor/pkg/audio/portaudio"
	"github.com/josancamon19/realtime-tutor/pkg/audio/spectrum"
	"github.com/josancamon19/realtime-tutor/pkg/cli"
	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/realtime"
	"github.com/josancamon19/realtime-tutor/pkg/search"
	"github.com/josancamon19/realtime-tutor/pkg/session"
	"github.com/josancamon19/realtime-tutor/pkg/transcript"
)

var (
	talkCreate bool
	talkPlain  bool
	talkWidth  int
	talkHeight int
	talkAudio  string
)

var talkCmd = &cobra.Command{
	Use:   "talk <topic>",
	Short: "Start a voice session on a topic",
	Long: `Start a voice session on a topic, resuming its history if it has any.

The session streams the default microphone to the tutor and plays answers on
the default speaker. Speaking while the tutor talks interrupts it. Press
Ctrl+C to end the session.`,
	Args: cobra.ExactArgs(1),
	RunE: runTalk,
}

func init() {
	talkCmd.Flags().BoolVar(&talkCreate, "create", false, "create the topic if it does not exist")
	talkCmd.Flags().BoolVar(&talkPlain, "plain", false, "print transcript lines instead of the live view")
	talkCmd.Flags().IntVar(&talkWidth, "width", 100, "live view width")
	talkCmd.Flags().IntVar(&talkHeight, "height", 32, "live view height")
	talkCmd.Flags().StringVar(&talkAudio, "save-audio", "", "write each tutor answer as a WAV file into this directory")
	rootCmd.AddCommand(talkCmd)
}

func runTalk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	topic, err := a.topic(ctx, args[0])
	if err != nil && talkCreate {
		topic, err = a.history.AddTopic(ctx, args[0])
	}
	if err != nil {
		return err
	}
	if a.cfg.OpenAI.APIKey == "" {
		return errors.New("openai.api_key (or OPENAI_API_KEY) is required to talk")
	}
	defer portaudio.Terminate()

	client := realtime.NewClient(&realtime.WebSocketDialer{
		APIKey: a.cfg.OpenAI.APIKey,
		Model:  a.cfg.OpenAI.RealtimeModel,
	})
	if a.cfg.Tavily.APIKey != "" {
		tavily := search.New(a.cfg.Tavily.APIKey,
			search.WithDepth(a.cfg.Tavily.Depth),
			search.WithMaxResults(a.cfg.Tavily.MaxResults))
		def, handler, err := tavily.Tool()
		if err != nil {
			return err
		}
		if err := client.AddTool(def, handler); err != nil {
			return err
		}
	}

	logs := cli.NewLogWriter(200)
	if !talkPlain {
		setupLogging(logs)
	}
	out := cmd.OutOrStdout()
	opts := []session.Option{
		session.WithHistory(a.history),
		session.WithResumer(a.resumer(topic)),
	}
	if arc := a.archive(topic); arc != nil {
		opts = append(opts, session.WithArchive(arc))
	}
	trigger, err := a.trigger(ctx, topic)
	if err != nil {
		return err
	}
	if trigger != nil {
		opts = append(opts, session.WithGraph(trigger))
	}

	if talkAudio != "" {
		save, err := assetSaver(talkAudio)
		if err != nil {
			return err
		}
		opts = append(opts, session.WithAssetObserver(save))
	}

	var printer *plainPrinter
	if talkPlain {
		printer = &plainPrinter{w: out}
		opts = append(opts, session.WithTranscriptObserver(printer.observe))
	}

	failed := make(chan error, 1)
	opts = append(opts, session.WithStateObserver(func(s session.State, err error) {
		// The conversation restarts empty after a reconnect.
		if s == session.Reconnecting && printer != nil {
			printer.flush()
		}
		if s == session.Failed || (s == session.Disconnected && err != nil) {
			select {
			case failed <- err:
			default:
			}
		}
	}))

	m := session.New(a.sessionConfig(topic),
		capture.New(portaudio.OpenInput),
		playback.New(portaudio.OpenOutput),
		client, opts...)
	defer m.Close()

	if err := m.Connect(ctx); err != nil {
		return err
	}
	if talkPlain {
		fmt.Fprintf(out, "Talking about %q. Press Ctrl+C to stop.\n", topic.Title)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if printer != nil {
				printer.flush()
			} else {
				fmt.Fprint(out, "\033[H\033[2J")
			}
			return nil
		case err := <-failed:
			if printer != nil {
				printer.flush()
			}
			return fmt.Errorf("session lost: %w", err)
		case <-ticker.C:
			if !talkPlain {
				fmt.Fprint(out, "\033[H\033[2J"+liveFrame(m, topic, logs).Render(talkWidth, talkHeight))
			}
		}
	}
}

// plainPrinter prints each turn once a later turn exists. flush prints the
// rest and starts over for a new conversation.
type plainPrinter struct {
	w io.Writer

	mu      sync.Mutex
	printed int
	last    []transcript.Turn
}

func (p *plainPrinter) observe(turns []transcript.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(turns) < p.printed {
		p.printed = 0
	}
	p.last = turns
	p.printLocked(len(turns) - 1)
}

func (p *plainPrinter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printLocked(len(p.last))
	p.printed, p.last = 0, nil
}

func (p *plainPrinter) printLocked(upTo int) {
	for ; p.printed < upTo; p.printed++ {
		t := p.last[p.printed]
		fmt.Fprintf(p.w, "%s: %s\n", t.Sender, t.Text)
	}
}

// assetSaver writes each decoded answer to dir as <item id>.wav.
func assetSaver(dir string) (func(string, *playback.Asset), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("save audio: %w", err)
	}
	return func(id string, a *playback.Asset) {
		path := filepath.Join(dir, id+".wav")
		if err := os.WriteFile(path, a.WAV(), 0o644); err != nil {
			slog.Warn("talk: save audio", "path", path, "error", err)
		}
	}, nil
}

func liveFrame(m *session.Machine, topic history.Topic, logs *cli.LogWriter) cli.Frame {
	styles := cli.NewStyles(cli.DefaultTheme)
	status := m.State().String()
	if err := m.Err(); err != nil && m.State() != session.Recording {
		status += ": " + err.Error()
	}
	meterWidth := max(talkWidth-14, 8)
	return cli.Frame{
		Styles: styles,
		Title:  topic.Title,
		Status: status,
		Sections: []cli.Section{
			{Label: "Audio", Content: func() []string {
				return []string{
					"mic    " + cli.Meter(m.InputFrequencies(spectrum.Voice), meterWidth),
					"tutor  " + cli.Meter(m.OutputFrequencies(spectrum.Voice), meterWidth),
				}
			}},
			{Label: "Transcript", Content: func() []string { return styles.TranscriptLines(m.Transcript()) }},
			{Label: "Events", Content: func() []string { return styles.EventLines(m.Events()) }},
			{Label: "Logs", Content: logs.Lines},
		},
		Help: "ctrl+c: end session",
	}
}
