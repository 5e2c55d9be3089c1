package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/josancamon19/realtime-tutor/pkg/storage"
)

// Recording is archived audio of one completed conversation item.
type Recording struct {
	ID      string    `msgpack:"id"`
	Samples []int16   `msgpack:"samples"`
	Created time.Time `msgpack:"created"`
}

// AudioArchive stores raw 24 kHz PCM16 audio per item under
// "audio/<topic>/<item>.msgpack" in a FileStore.
type AudioArchive struct {
	fs    storage.FileStore
	topic string
}

// NewAudioArchive returns the archive for one topic.
func NewAudioArchive(fs storage.FileStore, topic string) *AudioArchive {
	return &AudioArchive{fs: fs, topic: topic}
}

func (a *AudioArchive) dir() string { return "audio/" + a.topic + "/" }

func (a *AudioArchive) path(id string) string { return a.dir() + id + ".msgpack" }

// Upsert stores samples for id, replacing any earlier recording but keeping
// its creation time so replay order stays stable.
func (a *AudioArchive) Upsert(ctx context.Context, id string, samples []int16) error {
	rec := Recording{ID: id, Samples: samples, Created: time.Now().UTC()}
	if old, err := a.Get(ctx, id); err == nil && old != nil {
		rec.Created = old.Created
	}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: archive %s: %w", id, err)
	}
	return a.fs.Put(ctx, a.path(id), data)
}

// Get returns the recording for id, or nil if none exists.
func (a *AudioArchive) Get(ctx context.Context, id string) (*Recording, error) {
	data, err := a.fs.Get(ctx, a.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Recording
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("history: archive %s: decode: %w", id, err)
	}
	return &rec, nil
}

// All returns every recording in creation order. Unreadable entries are
// skipped.
func (a *AudioArchive) All(ctx context.Context) ([]Recording, error) {
	paths, err := a.fs.List(ctx, a.dir())
	if err != nil {
		return nil, err
	}
	var recs []Recording
	for _, p := range paths {
		id, ok := strings.CutSuffix(path.Base(p), ".msgpack")
		if !ok {
			continue
		}
		rec, err := a.Get(ctx, id)
		if err != nil || rec == nil {
			continue
		}
		recs = append(recs, *rec)
	}
	slices.SortStableFunc(recs, func(x, y Recording) int { return x.Created.Compare(y.Created) })
	return recs, nil
}

// Delete removes the recording for id.
func (a *AudioArchive) Delete(ctx context.Context, id string) error {
	return a.fs.Delete(ctx, a.path(id))
}

// Clear removes every recording of the topic.
func (a *AudioArchive) Clear(ctx context.Context) error {
	paths, err := a.fs.List(ctx, a.dir())
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range paths {
		errs = append(errs, a.fs.Delete(ctx, p))
	}
	return errors.Join(errs...)
}
