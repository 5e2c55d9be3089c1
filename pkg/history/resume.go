package history

import (
	"context"
	"log/slog"

	"github.com/josancamon19/realtime-tutor/pkg/realtime"
)

// Resumer builds the synthetic user turn that re-anchors the assistant when
// a topic with prior history is reopened.
type Resumer interface {
	Resume(ctx context.Context, history []Message) ([]realtime.ContentPart, error)
}

// TextResumption sends the resumption phrase. Prior history reaches the
// assistant through the session instructions.
type TextResumption struct {
	Phrase string
}

func (r TextResumption) Resume(context.Context, []Message) ([]realtime.ContentPart, error) {
	return []realtime.ContentPart{realtime.InputText(r.Phrase)}, nil
}

// AudioReplay replays archived user and assistant audio as input audio,
// followed by the resumption phrase. With an empty archive it behaves like
// TextResumption.
type AudioReplay struct {
	Archive *AudioArchive
	Phrase  string
}

func (r AudioReplay) Resume(ctx context.Context, _ []Message) ([]realtime.ContentPart, error) {
	recs, err := r.Archive.All(ctx)
	if err != nil {
		slog.Warn("history: audio replay unavailable", "error", err)
		recs = nil
	}
	parts := make([]realtime.ContentPart, 0, len(recs)+1)
	for _, rec := range recs {
		if len(rec.Samples) == 0 {
			continue
		}
		parts = append(parts, realtime.InputAudio(rec.Samples))
	}
	return append(parts, realtime.InputText(r.Phrase)), nil
}
