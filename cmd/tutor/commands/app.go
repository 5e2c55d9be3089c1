package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openai/openai-go/option"

	"github.com/josancamon19/realtime-tutor/pkg/conceptgraph"
	"github.com/josancamon19/realtime-tutor/pkg/config"
	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/kv"
	"github.com/josancamon19/realtime-tutor/pkg/llm"
	"github.com/josancamon19/realtime-tutor/pkg/session"
	"github.com/josancamon19/realtime-tutor/pkg/storage"
)

// testKVOverride replaces the configured store in tests.
var testKVOverride kv.Store

// app holds the stores every command works against.
type app struct {
	cfg     *config.Config
	kv      kv.Store
	history *history.Store
	files   storage.FileStore
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	store, err := openKV(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, kv: store, history: history.NewStore(store)}
	if cfg.Archive.Enabled {
		if a.files, err = openFiles(cfg); err != nil {
			store.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) Close() error { return a.kv.Close() }

func openKV(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	if testKVOverride != nil {
		return testKVOverride, nil
	}
	switch cfg.Store.Backend {
	case "memory":
		return kv.NewMemory(nil), nil
	case "redis":
		ttl := time.Duration(cfg.Store.TTLDays) * 24 * time.Hour
		return kv.DialRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, kv.RedisOptions{TTL: ttl})
	default:
		dir := cfg.Store.Dir
		if dir == "" {
			dir = filepath.Join(cfg.DataDir(), "db")
		}
		return kv.OpenBadger(dir, nil)
	}
}

func openFiles(cfg *config.Config) (storage.FileStore, error) {
	ac := cfg.Archive
	if ac.Backend != "s3" {
		dir := ac.Dir
		if dir == "" {
			dir = filepath.Join(cfg.DataDir(), "archive")
		}
		return storage.NewLocal(dir)
	}

	opts := s3.Options{Region: ac.Region, UsePathStyle: ac.Endpoint != ""}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if ac.Endpoint != "" {
		opts.BaseEndpoint = aws.String(ac.Endpoint)
	}
	if ac.AccessKeyID != "" {
		opts.Credentials = aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     ac.AccessKeyID,
				SecretAccessKey: ac.SecretAccessKey,
				Source:          "realtime-tutor config",
			}, nil
		}))
	}
	return storage.NewS3(s3.New(opts), ac.Bucket, ac.Prefix), nil
}

// topic resolves a topic by id or title.
func (a *app) topic(ctx context.Context, ref string) (history.Topic, error) {
	t, err := a.history.FindTopic(ctx, ref)
	if errors.Is(err, history.ErrTopicNotFound) {
		return t, fmt.Errorf("topic %q not found; create it with: tutor topic add %q", ref, ref)
	}
	return t, err
}

func (a *app) archive(topic history.Topic) *history.AudioArchive {
	if a.files == nil {
		return nil
	}
	return history.NewAudioArchive(a.files, topic.ID)
}

// generator returns the configured graph provider, or nil when graphs are
// disabled.
func (a *app) generator(ctx context.Context) (llm.Generator, error) {
	switch a.cfg.Graph.Provider {
	case "none":
		return nil, nil
	case "gemini":
		if a.cfg.Gemini.APIKey == "" {
			return nil, errors.New("gemini.api_key (or GEMINI_API_KEY) is required for graph.provider gemini")
		}
		return llm.NewGemini(ctx, a.cfg.Gemini.APIKey, a.cfg.Gemini.Model, a.cfg.Gemini.BaseURL)
	default:
		if a.cfg.OpenAI.APIKey == "" {
			return nil, errors.New("openai.api_key (or OPENAI_API_KEY) is required for graph.provider openai")
		}
		var opts []option.RequestOption
		if a.cfg.OpenAI.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(a.cfg.OpenAI.BaseURL))
		}
		return llm.NewOpenAI(a.cfg.OpenAI.APIKey, a.cfg.OpenAI.ChatModel, opts...), nil
	}
}

func (a *app) trigger(ctx context.Context, topic history.Topic, opts ...conceptgraph.Option) (*conceptgraph.Trigger, error) {
	gen, err := a.generator(ctx)
	if err != nil || gen == nil {
		return nil, err
	}
	opts = append([]conceptgraph.Option{
		conceptgraph.WithInterval(a.cfg.Graph.Interval),
		conceptgraph.WithStore(a.history),
	}, opts...)
	return conceptgraph.New(gen, topic, opts...), nil
}

func (a *app) resumer(topic history.Topic) history.Resumer {
	if a.cfg.Session.Resumption == "audio" && a.files != nil {
		return history.AudioReplay{Archive: a.archive(topic), Phrase: a.cfg.Session.ResumptionPhrase}
	}
	return history.TextResumption{Phrase: a.cfg.Session.ResumptionPhrase}
}

func (a *app) sessionConfig(topic history.Topic) session.Config {
	c := a.cfg
	return session.Config{
		Topic:              topic,
		Instructions:       c.Session.Instructions,
		Greeting:           c.Session.Greeting,
		ResumptionPhrase:   c.Session.ResumptionPhrase,
		Voice:              c.OpenAI.Voice,
		TranscriptionModel: c.OpenAI.TranscriptionModel,
		ServerVAD:          c.OpenAI.TurnDetection == "server_vad",
		Reconnect: session.ReconnectPolicy{
			MaxAttempts: c.Reconnect.MaxAttempts,
			Initial:     c.Reconnect.Initial(),
			Max:         c.Reconnect.Max(),
			Multiplier:  c.Reconnect.Multiplier,
			Stable:      c.Reconnect.Stable(),
		},
	}
}
