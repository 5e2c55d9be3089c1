package search_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/josancamon19/realtime-tutor/pkg/search"
)

func newServer(t *testing.T, status int, resp string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tvly-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if got != nil {
			json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnswer(t *testing.T) {
	var body map[string]any
	srv := newServer(t, http.StatusOK, `{"answer":"Ferris is the Rust mascot.","results":[]}`, &body)
	c := search.New("tvly-test", search.WithBaseURL(srv.URL+"/"), search.WithDepth(search.DepthAdvanced), search.WithMaxResults(3))

	got, err := c.Answer(context.Background(), "rust mascot")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "Ferris is the Rust mascot." {
		t.Fatalf("Answer = %q", got)
	}
	if body["query"] != "rust mascot" || body["search_depth"] != "advanced" || body["max_results"] != float64(3) || body["include_answer"] != true {
		t.Errorf("request body = %v", body)
	}
}

func TestAnswerFallsBackToResults(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"results":[{"title":"Rust","url":"https://rust-lang.org","content":"A language."}]}`, nil)
	got, err := search.New("tvly-test", search.WithBaseURL(srv.URL)).Answer(context.Background(), "rust")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !strings.Contains(got, "https://rust-lang.org") || !strings.Contains(got, "A language.") {
		t.Fatalf("Answer = %q", got)
	}
}

func TestAnswerHTTPError(t *testing.T) {
	srv := newServer(t, http.StatusUnauthorized, `{"detail":"invalid key"}`, nil)
	_, err := search.New("tvly-test", search.WithBaseURL(srv.URL)).Answer(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("Answer = %v, want status error", err)
	}
}

func TestTool(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"answer":"42"}`, nil)
	def, handler, err := search.New("tvly-test", search.WithBaseURL(srv.URL)).Tool()
	if err != nil {
		t.Fatalf("Tool: %v", err)
	}
	if def.Name != "search_web" {
		t.Fatalf("Name = %q", def.Name)
	}
	if _, ok := def.Parameters.Properties["query"]; !ok {
		t.Fatalf("schema has no query property: %+v", def.Parameters)
	}
	out, err := handler(context.Background(), map[string]any{"query": "meaning of life"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if m := out.(map[string]string); m["answer"] != "42" {
		t.Fatalf("handler = %v", out)
	}
	if _, err := handler(context.Background(), map[string]any{"query": " "}); err == nil {
		t.Fatal("handler accepted empty query")
	}
}
