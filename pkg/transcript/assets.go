package transcript

import (
	"log/slog"
	"sync"

	"github.com/josancamon19/realtime-tutor/pkg/audio/pcm"
	"github.com/josancamon19/realtime-tutor/pkg/audio/playback"
	"github.com/josancamon19/realtime-tutor/pkg/realtime"
)

// Assets decodes the audio of completed assistant items once per item id.
// It lives for one session and is never persisted.
type Assets struct {
	rate int

	mu sync.Mutex
	m  map[string]*playback.Asset
}

// NewAssets decodes to targetRate.
func NewAssets(targetRate int) *Assets {
	return &Assets{rate: targetRate, m: make(map[string]*playback.Asset)}
}

// Apply updates the cache for one item update. It returns the asset when
// the update produced a new or re-decoded one.
func (a *Assets) Apply(ev realtime.ItemUpdated) (*playback.Asset, bool) {
	it := ev.Item
	if it == nil {
		return nil, false
	}
	if ev.Change.Kind == realtime.ChangeDeleted {
		a.mu.Lock()
		delete(a.m, it.ID)
		a.mu.Unlock()
		return nil, false
	}
	if it.Role != realtime.RoleAssistant || it.Status != realtime.StatusCompleted || len(it.Formatted.Audio) == 0 {
		return nil, false
	}
	a.mu.Lock()
	_, have := a.m[it.ID]
	a.mu.Unlock()
	if have && ev.Change.Kind != realtime.ChangeTruncated {
		return nil, false
	}
	asset, err := playback.Decode(it.Formatted.Audio, pcm.Realtime.SampleRate(), a.rate)
	if err != nil {
		slog.Warn("transcript: decode audio", "item", it.ID, "error", err)
		return nil, false
	}
	a.mu.Lock()
	a.m[it.ID] = asset
	a.mu.Unlock()
	return asset, true
}
