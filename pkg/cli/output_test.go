package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type topic struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

func TestOutputFormats(t *testing.T) {
	data := map[string]any{"name": "test", "value": 123}

	var buf bytes.Buffer
	if err := Output(data, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output json: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if got["name"] != "test" {
		t.Errorf("name = %v, want test", got["name"])
	}

	buf.Reset()
	if err := Output(data, OutputOptions{Writer: &buf}); err != nil {
		t.Fatalf("Output default: %v", err)
	}
	if !strings.Contains(buf.String(), "name: test") {
		t.Errorf("default format should be YAML, got: %s", buf.String())
	}

	buf.Reset()
	if err := Output("plain text", OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
		t.Fatalf("Output raw: %v", err)
	}
	if buf.String() != "plain text" {
		t.Errorf("raw = %q", buf.String())
	}

	if err := Output(data, OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestOutputQuery(t *testing.T) {
	topics := []topic{{ID: "a", Title: "Tides"}, {ID: "b", Title: "Photosynthesis"}}

	var buf bytes.Buffer
	err := Output(topics, OutputOptions{Format: FormatJSON, Query: ".[].title", Writer: &buf})
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if got := buf.String(); got != "\"Tides\"\n\"Photosynthesis\"\n" {
		t.Errorf("output = %q", got)
	}
}

func TestFilter(t *testing.T) {
	topics := []topic{{ID: "a", Title: "Tides"}, {ID: "b", Title: "Photosynthesis"}}
	tests := []struct {
		expr string
		want []any
	}{
		{".[0].id", []any{"a"}},
		{"length", []any{2}},
		{`map(select(.title | startswith("P"))) | .[].id`, []any{"b"}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Filter(topics, tt.expr)
			if err != nil {
				t.Fatalf("Filter: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Filter = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Filter[%d] = %v (%T), want %v", i, got[i], got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := Filter(topics, ".[] |"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Filter(topics, `error("boom")`); err == nil {
		t.Error("expected runtime error")
	}
}
