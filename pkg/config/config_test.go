package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Session.Greeting != "Hey there!" || cfg.Graph.Interval != 5 || cfg.Store.Backend != "badger" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.File() != path {
		t.Errorf("File() = %q, want %q", cfg.File(), path)
	}
	if got, want := cfg.DataDir(), filepath.Join(filepath.Dir(path), "data"); got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func TestLoadFromMergesOverDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
openai:
  voice: verse
  turn_detection: none
graph:
  provider: gemini
  interval: 3
reconnect:
  max_attempts: 2
  initial_ms: 100
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.OpenAI.Voice != "verse" || cfg.OpenAI.TurnDetection != "none" {
		t.Errorf("openai = %+v", cfg.OpenAI)
	}
	if cfg.OpenAI.RealtimeModel != "gpt-4o-realtime-preview" {
		t.Errorf("unset realtime_model lost its default: %q", cfg.OpenAI.RealtimeModel)
	}
	if cfg.Graph.Provider != "gemini" || cfg.Graph.Interval != 3 {
		t.Errorf("graph = %+v", cfg.Graph)
	}
	if cfg.Reconnect.MaxAttempts != 2 || cfg.Reconnect.Initial() != 100*time.Millisecond || cfg.Reconnect.Max() != 8*time.Second || cfg.Reconnect.Stable() != 10*time.Second {
		t.Errorf("reconnect = %+v", cfg.Reconnect)
	}
}

func TestEnvironmentOverridesSecrets(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY":        "sk-env",
		"TAVILY_API_KEY":        "tvly-env",
		"AWS_SECRET_ACCESS_KEY": "secret",
	}
	cfg := Default()
	cfg.OpenAI.APIKey = "sk-file"
	cfg.Gemini.APIKey = "g-file"
	cfg.applyEnv(func(k string) string { return env[k] })

	if cfg.OpenAI.APIKey != "sk-env" || cfg.Tavily.APIKey != "tvly-env" || cfg.Archive.SecretAccessKey != "secret" {
		t.Errorf("env not applied: %+v %+v %+v", cfg.OpenAI, cfg.Tavily, cfg.Archive)
	}
	if cfg.Gemini.APIKey != "g-file" {
		t.Errorf("gemini key = %q, want file value kept", cfg.Gemini.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"turn detection", func(c *Config) { c.OpenAI.TurnDetection = "semantic" }, "openai.turn_detection"},
		{"graph provider", func(c *Config) { c.Graph.Provider = "claude" }, "graph.provider"},
		{"store backend", func(c *Config) { c.Store.Backend = "sqlite" }, "store.backend"},
		{"interval", func(c *Config) { c.Graph.Interval = 0 }, "graph.interval"},
		{"attempts", func(c *Config) { c.Reconnect.MaxAttempts = 0 }, "reconnect.max_attempts"},
		{"stable", func(c *Config) { c.Reconnect.StableMs = -1 }, "reconnect.stable_ms"},
		{"s3 bucket", func(c *Config) { c.Archive.Enabled, c.Archive.Backend = true, "s3" }, "archive.bucket"},
		{"audio needs archive", func(c *Config) { c.Session.Resumption = "audio" }, "session.resumption"},
		{"audio with archive", func(c *Config) { c.Session.Resumption, c.Archive.Enabled = "audio", true }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Session.Greeting = "Welcome back"
	cfg.Store.Backend = "memory"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.Session.Greeting != "Welcome back" || got.Store.Backend != "memory" {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.OpenAI.APIKey = "sk-1234567890abcd"
	r := cfg.Redacted()
	if r.OpenAI.APIKey != "sk-1*********abcd" {
		t.Errorf("masked = %q", r.OpenAI.APIKey)
	}
	if cfg.OpenAI.APIKey != "sk-1234567890abcd" {
		t.Error("Redacted modified the original")
	}
	if got := MaskSecret("short"); got != "*****" {
		t.Errorf("MaskSecret(short) = %q", got)
	}
}
