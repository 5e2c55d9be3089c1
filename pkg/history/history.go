// Package history persists what outlives a session: each topic's message
// history and concept graph, the topic list itself, and (for the legacy
// resumption strategy) archived raw audio of completed turns.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josancamon19/realtime-tutor/pkg/kv"
)

// ErrTopicNotFound is returned when no topic matches an id or title.
var ErrTopicNotFound = errors.New("history: topic not found")

// Message is the durable projection of one conversation item.
type Message struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Topic scopes a session: history and graph are stored per topic.
type Topic struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Created time.Time `json:"created"`
}

// Store reads and writes history, graphs and topics in a kv.Store.
type Store struct {
	kv kv.Store
}

// NewStore returns a Store over s.
func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

func historyKey(topic string) kv.Key { return kv.Key{"history", topic} }
func graphKey(topic string) kv.Key   { return kv.Key{"graph", topic} }
func topicKey(id string) kv.Key      { return kv.Key{"topic", id} }

// LoadHistory returns the topic's messages, or nil if none were saved.
func (s *Store) LoadHistory(ctx context.Context, topic string) ([]Message, error) {
	var msgs []Message
	err := kv.GetJSON(ctx, s.kv, historyKey(topic), &msgs)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: load %s: %w", topic, err)
	}
	return msgs, nil
}

// SaveHistory replaces the topic's messages.
func (s *Store) SaveHistory(ctx context.Context, topic string, msgs []Message) error {
	if msgs == nil {
		msgs = []Message{}
	}
	if err := kv.SetJSON(ctx, s.kv, historyKey(topic), msgs); err != nil {
		return fmt.Errorf("history: save %s: %w", topic, err)
	}
	return nil
}

// LoadGraph returns the topic's concept graph, or "" if none was saved.
func (s *Store) LoadGraph(ctx context.Context, topic string) (string, error) {
	data, err := s.kv.Get(ctx, graphKey(topic))
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("history: load graph %s: %w", topic, err)
	}
	return string(data), nil
}

// SaveGraph replaces the topic's concept graph.
func (s *Store) SaveGraph(ctx context.Context, topic, graph string) error {
	if err := s.kv.Set(ctx, graphKey(topic), []byte(graph)); err != nil {
		return fmt.Errorf("history: save graph %s: %w", topic, err)
	}
	return nil
}

// Clear removes the topic's history and graph.
func (s *Store) Clear(ctx context.Context, topic string) error {
	if err := s.kv.Delete(ctx, historyKey(topic), graphKey(topic)); err != nil {
		return fmt.Errorf("history: clear %s: %w", topic, err)
	}
	return nil
}

// AddTopic creates a topic with a fresh id.
func (s *Store) AddTopic(ctx context.Context, title string) (Topic, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Topic{}, errors.New("history: topic title is required")
	}
	t := Topic{ID: uuid.NewString(), Title: title, Created: time.Now().UTC()}
	if err := kv.SetJSON(ctx, s.kv, topicKey(t.ID), t); err != nil {
		return Topic{}, fmt.Errorf("history: add topic: %w", err)
	}
	return t, nil
}

// ListTopics returns all topics, oldest first.
func (s *Store) ListTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	for e, err := range s.kv.List(ctx, kv.Key{"topic"}) {
		if err != nil {
			return nil, fmt.Errorf("history: list topics: %w", err)
		}
		var t Topic
		if err := json.Unmarshal(e.Value, &t); err != nil {
			continue
		}
		topics = append(topics, t)
	}
	slices.SortStableFunc(topics, func(a, b Topic) int { return a.Created.Compare(b.Created) })
	return topics, nil
}

// FindTopic resolves a topic by id, or else by case-insensitive title.
func (s *Store) FindTopic(ctx context.Context, ref string) (Topic, error) {
	var t Topic
	err := kv.GetJSON(ctx, s.kv, topicKey(ref), &t)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, kv.ErrNotFound) {
		return Topic{}, fmt.Errorf("history: find topic: %w", err)
	}
	topics, err := s.ListTopics(ctx)
	if err != nil {
		return Topic{}, err
	}
	for _, t := range topics {
		if strings.EqualFold(t.Title, ref) {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("%w: %s", ErrTopicNotFound, ref)
}

// DeleteTopic removes the topic together with its history and graph.
func (s *Store) DeleteTopic(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, topicKey(id), historyKey(id), graphKey(id)); err != nil {
		return fmt.Errorf("history: delete topic %s: %w", id, err)
	}
	return nil
}
