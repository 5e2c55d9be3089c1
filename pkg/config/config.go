// Package config is the tutor's configuration, loaded once from YAML and
// the environment and handed to the components that need it.
//
// The file lives under os.UserConfigDir()/realtime-tutor/:
//
//	~/Library/Application Support/realtime-tutor/config.yaml   (macOS)
//	~/.config/realtime-tutor/config.yaml                       (Linux)
//	%AppData%/realtime-tutor/config.yaml                       (Windows)
//
// Secrets may be left out of the file and supplied through OPENAI_API_KEY,
// GEMINI_API_KEY, TAVILY_API_KEY, AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY instead.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// AppDir is the directory name under os.UserConfigDir().
	AppDir = "realtime-tutor"
	// FileName is the configuration file name.
	FileName = "config.yaml"
)

// Config holds every setting of the tutor.
type Config struct {
	OpenAI    OpenAI    `yaml:"openai" json:"openai"`
	Gemini    Gemini    `yaml:"gemini,omitempty" json:"gemini,omitempty"`
	Tavily    Tavily    `yaml:"tavily,omitempty" json:"tavily,omitempty"`
	Graph     Graph     `yaml:"graph" json:"graph"`
	Store     Store     `yaml:"store" json:"store"`
	Archive   Archive   `yaml:"archive" json:"archive"`
	Session   Session   `yaml:"session" json:"session"`
	Reconnect Reconnect `yaml:"reconnect" json:"reconnect"`

	path string
}

// OpenAI configures the realtime channel and the OpenAI chat generator.
type OpenAI struct {
	APIKey             string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL            string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	RealtimeModel      string `yaml:"realtime_model" json:"realtime_model"`
	Voice              string `yaml:"voice" json:"voice"`
	TranscriptionModel string `yaml:"transcription_model,omitempty" json:"transcription_model,omitempty"`
	// TurnDetection is "server_vad" or "none".
	TurnDetection string `yaml:"turn_detection" json:"turn_detection"`
	ChatModel     string `yaml:"chat_model" json:"chat_model"`
}

// Gemini configures the Gemini graph generator.
type Gemini struct {
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// Tavily configures the search_web tool. The tool is registered only when
// an API key is set.
type Tavily struct {
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Depth      string `yaml:"depth,omitempty" json:"depth,omitempty"`
	MaxResults int    `yaml:"max_results,omitempty" json:"max_results,omitempty"`
}

// Graph configures concept graph generation.
type Graph struct {
	// Provider is "openai", "gemini" or "none".
	Provider string `yaml:"provider" json:"provider"`
	// Interval is the number of new messages between regenerations.
	Interval int `yaml:"interval" json:"interval"`
}

// Store selects the key-value backend for history and topics.
type Store struct {
	// Backend is "badger", "redis" or "memory".
	Backend string `yaml:"backend" json:"backend"`
	// Dir is the badger directory; empty means DataDir()/db.
	Dir           string `yaml:"dir,omitempty" json:"dir,omitempty"`
	RedisAddr     string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db,omitempty" json:"redis_db,omitempty"`
	// TTLDays expires redis keys; 0 keeps them forever.
	TTLDays int `yaml:"ttl_days,omitempty" json:"ttl_days,omitempty"`
}

// Archive configures the raw-audio archive used by audio resumption.
type Archive struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Backend is "local" or "s3".
	Backend         string `yaml:"backend" json:"backend"`
	Dir             string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Bucket          string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// Session configures the conversation itself.
type Session struct {
	Instructions     string `yaml:"instructions" json:"instructions"`
	Greeting         string `yaml:"greeting" json:"greeting"`
	ResumptionPhrase string `yaml:"resumption_phrase" json:"resumption_phrase"`
	// Resumption is "text" or "audio".
	Resumption string `yaml:"resumption" json:"resumption"`
	// ChatURL is the external chat page used by "history chat-url".
	ChatURL string `yaml:"chat_url,omitempty" json:"chat_url,omitempty"`
}

// Reconnect bounds recovery from audio streaming failures. Durations are
// in milliseconds.
type Reconnect struct {
	MaxAttempts int     `yaml:"max_attempts" json:"max_attempts"`
	InitialMs   int     `yaml:"initial_ms" json:"initial_ms"`
	MaxMs       int     `yaml:"max_ms" json:"max_ms"`
	Multiplier  float64 `yaml:"multiplier" json:"multiplier"`
	// StableMs is how long a reconnected recording must stream before
	// the attempt count starts over.
	StableMs int `yaml:"stable_ms" json:"stable_ms"`
}

// Initial returns the first backoff delay.
func (r Reconnect) Initial() time.Duration { return time.Duration(r.InitialMs) * time.Millisecond }

// Max returns the backoff ceiling.
func (r Reconnect) Max() time.Duration { return time.Duration(r.MaxMs) * time.Millisecond }

// Stable returns how long a reconnect must hold before it counts as recovered.
func (r Reconnect) Stable() time.Duration { return time.Duration(r.StableMs) * time.Millisecond }

const defaultInstructions = `You are a patient tutor having a spoken conversation with a learner.
Ask short questions to check understanding, explain one idea at a time and
keep answers brief enough to be spoken aloud.`

// Default returns a configuration with every value set.
func Default() *Config {
	return &Config{
		OpenAI: OpenAI{
			RealtimeModel:      "gpt-4o-realtime-preview",
			Voice:              "alloy",
			TranscriptionModel: "whisper-1",
			TurnDetection:      "server_vad",
			ChatModel:          "gpt-4o-mini",
		},
		Gemini:  Gemini{Model: "gemini-2.0-flash"},
		Tavily:  Tavily{Depth: "basic", MaxResults: 5},
		Graph:   Graph{Provider: "openai", Interval: 5},
		Store:   Store{Backend: "badger", RedisAddr: "localhost:6379"},
		Archive: Archive{Backend: "local"},
		Session: Session{
			Instructions:     defaultInstructions,
			Greeting:         "Hey there!",
			ResumptionPhrase: "Continue from last conversation.",
			Resumption:       "text",
			ChatURL:          "https://chatgpt.com/",
		},
		Reconnect: Reconnect{MaxAttempts: 5, InitialMs: 500, MaxMs: 8000, Multiplier: 2, StableMs: 10000},
	}
}

// Dir returns os.UserConfigDir()/realtime-tutor.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot determine config directory: %w", err)
	}
	return filepath.Join(base, AppDir), nil
}

// Path returns the default configuration file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the default configuration file.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads path over Default(), applies environment overrides and
// validates the result. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.Gemini.APIKey, "GEMINI_API_KEY")
	set(&c.Tavily.APIKey, "TAVILY_API_KEY")
	set(&c.Archive.AccessKeyID, "AWS_ACCESS_KEY_ID")
	set(&c.Archive.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
}

// Validate rejects unknown enum values and impossible numbers.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, v string, allowed ...string) {
		if !slices.Contains(allowed, v) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %q", field, v, allowed))
		}
	}
	oneOf("openai.turn_detection", c.OpenAI.TurnDetection, "server_vad", "none")
	oneOf("graph.provider", c.Graph.Provider, "openai", "gemini", "none")
	oneOf("store.backend", c.Store.Backend, "badger", "redis", "memory")
	oneOf("archive.backend", c.Archive.Backend, "local", "s3")
	oneOf("session.resumption", c.Session.Resumption, "text", "audio")
	if c.Tavily.Depth != "" {
		oneOf("tavily.depth", c.Tavily.Depth, "basic", "advanced")
	}
	if c.Graph.Interval < 1 {
		errs = append(errs, fmt.Errorf("graph.interval: must be at least 1, got %d", c.Graph.Interval))
	}
	if c.Reconnect.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("reconnect.max_attempts: must be at least 1, got %d", c.Reconnect.MaxAttempts))
	}
	if c.Reconnect.StableMs < 0 {
		errs = append(errs, fmt.Errorf("reconnect.stable_ms: must not be negative, got %d", c.Reconnect.StableMs))
	}
	if c.Reconnect.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("reconnect.multiplier: must be at least 1, got %g", c.Reconnect.Multiplier))
	}
	if c.Archive.Enabled && c.Archive.Backend == "s3" && c.Archive.Bucket == "" {
		errs = append(errs, errors.New("archive.bucket: required for the s3 backend"))
	}
	if c.Session.Resumption == "audio" && !c.Archive.Enabled {
		errs = append(errs, errors.New("session.resumption: audio requires archive.enabled"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// File returns the path the configuration was loaded from.
func (c *Config) File() string { return c.path }

// DataDir returns the directory for local data next to the config file.
func (c *Config) DataDir() string { return filepath.Join(filepath.Dir(c.path), "data") }

// SaveTo writes the configuration to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	c.path = path
	return nil
}

// Redacted returns a copy with secrets masked for display.
func (c *Config) Redacted() *Config {
	r := *c
	r.OpenAI.APIKey = MaskSecret(c.OpenAI.APIKey)
	r.Gemini.APIKey = MaskSecret(c.Gemini.APIKey)
	r.Tavily.APIKey = MaskSecret(c.Tavily.APIKey)
	r.Store.RedisPassword = MaskSecret(c.Store.RedisPassword)
	r.Archive.AccessKeyID = MaskSecret(c.Archive.AccessKeyID)
	r.Archive.SecretAccessKey = MaskSecret(c.Archive.SecretAccessKey)
	return &r
}

// MaskSecret keeps the first and last four characters of long secrets.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
