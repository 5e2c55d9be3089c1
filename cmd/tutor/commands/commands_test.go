package commands

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/josancamon19/realtime-tutor/pkg/history"
	"github.com/josancamon19/realtime-tutor/pkg/kv"
)

// setupTestEnv points the CLI at a temporary config file and a shared
// in-memory store.
func setupTestEnv(t *testing.T) *history.Store {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "TAVILY_API_KEY", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY"} {
		t.Setenv(k, "")
	}
	mem := kv.NewMemory(nil)
	testKVOverride = mem
	globalConfig = nil
	t.Cleanup(func() {
		testKVOverride = nil
		globalConfig = nil
	})
	return history.NewStore(mem)
}

func runCmd(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	args = append([]string{"--config", filepath.Join(t.TempDir(), "config.yaml")}, args...)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()
	resetFlags(rootCmd)
	globalConfig = nil
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestVersion(t *testing.T) {
	setupTestEnv(t)
	stdout, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(stdout, "tutor dev") {
		t.Fatalf("expected 'tutor dev', got: %s", stdout)
	}
}

func TestTopicAddAndList(t *testing.T) {
	setupTestEnv(t)

	if _, err := runCmd(t, "topic", "add", "Ocean", "tides"); err != nil {
		t.Fatalf("topic add: %v", err)
	}
	if _, err := runCmd(t, "topic", "add", "Photosynthesis"); err != nil {
		t.Fatalf("topic add: %v", err)
	}

	stdout, err := runCmd(t, "topic", "list")
	if err != nil {
		t.Fatalf("topic list: %v", err)
	}
	if !strings.Contains(stdout, "TITLE") || !strings.Contains(stdout, "Ocean tides") {
		t.Errorf("table output = %s", stdout)
	}

	stdout, err = runCmd(t, "topic", "list", "-o", "json", "--jq", "[.[].title]")
	if err != nil {
		t.Fatalf("topic list --jq: %v", err)
	}
	var titles []string
	if err := json.Unmarshal([]byte(stdout), &titles); err != nil {
		t.Fatalf("jq output %q: %v", stdout, err)
	}
	if len(titles) != 2 || titles[0] != "Ocean tides" || titles[1] != "Photosynthesis" {
		t.Errorf("titles = %q", titles)
	}
}

func TestTopicAddRejectsBlank(t *testing.T) {
	setupTestEnv(t)
	if _, err := runCmd(t, "topic", "add", "  "); err == nil {
		t.Fatal("expected error for blank title")
	}
}

func TestHistoryCommands(t *testing.T) {
	store := setupTestEnv(t)
	ctx := t.Context()
	topic, err := store.AddTopic(ctx, "Tides")
	if err != nil {
		t.Fatal(err)
	}
	msgs := []history.Message{
		{ID: "1", Sender: "user", Text: "Why are there tides?"},
		{ID: "2", Sender: "assistant", Text: "The moon pulls on the oceans."},
		{ID: "3", Sender: "assistant", Text: "The sun does too."},
	}
	if err := store.SaveHistory(ctx, topic.ID, msgs); err != nil {
		t.Fatal(err)
	}

	stdout, err := runCmd(t, "history", "copy", "tides")
	if err != nil {
		t.Fatalf("history copy: %v", err)
	}
	want := "user: Why are there tides?\nassistant: The moon pulls on the oceans. The sun does too.\n"
	if stdout != want {
		t.Errorf("copy = %q, want %q", stdout, want)
	}

	stdout, err = runCmd(t, "history", "show", "tides", "-o", "json", "--jq", `.[] | select(.sender == "user") | .text`)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if strings.TrimSpace(stdout) != `"Why are there tides?"` {
		t.Errorf("show = %q", stdout)
	}

	stdout, err = runCmd(t, "history", "chat-url", topic.ID, "--prompt", "Review:")
	if err != nil {
		t.Fatalf("history chat-url: %v", err)
	}
	u, err := url.Parse(strings.TrimSpace(stdout))
	if err != nil {
		t.Fatalf("chat-url output %q: %v", stdout, err)
	}
	if q := u.Query().Get("q"); !strings.HasPrefix(q, "Review:") || !strings.Contains(q, "The moon pulls") {
		t.Errorf("q = %q", q)
	}

	if _, err := runCmd(t, "history", "clear", "tides"); err != nil {
		t.Fatalf("history clear: %v", err)
	}
	left, err := store.LoadHistory(ctx, topic.ID)
	if err != nil || len(left) != 0 {
		t.Errorf("history after clear = %+v, err %v", left, err)
	}
}

func TestUnknownTopic(t *testing.T) {
	setupTestEnv(t)
	_, err := runCmd(t, "history", "show", "nope")
	if err == nil || !strings.Contains(err.Error(), "tutor topic add") {
		t.Fatalf("err = %v, want hint to create the topic", err)
	}
}

func TestGraphShowWithoutGraph(t *testing.T) {
	store := setupTestEnv(t)
	if _, err := store.AddTopic(t.Context(), "Tides"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCmd(t, "graph", "show", "tides"); err == nil || !strings.Contains(err.Error(), "no graph") {
		t.Fatalf("err = %v", err)
	}
	if err := store.SaveGraph(t.Context(), mustTopic(t, store, "tides").ID, "graph TD\n  A-->B"); err != nil {
		t.Fatal(err)
	}
	stdout, err := runCmd(t, "graph", "show", "tides", "--jq", ".graph", "-o", "raw")
	if err != nil {
		t.Fatalf("graph show: %v", err)
	}
	if stdout != "graph TD\n  A-->B" {
		t.Errorf("graph = %q", stdout)
	}
}

func mustTopic(t *testing.T, store *history.Store, ref string) history.Topic {
	t.Helper()
	topic, err := store.FindTopic(t.Context(), ref)
	if err != nil {
		t.Fatal(err)
	}
	return topic
}

func TestConfigInitShowPath(t *testing.T) {
	setupTestEnv(t)
	path := filepath.Join(t.TempDir(), "tutor", "config.yaml")

	stdout, err := runCmd(t, "--config", path, "config", "path")
	if err != nil || strings.TrimSpace(stdout) != path {
		t.Fatalf("config path = %q, err %v", stdout, err)
	}
	if _, err := runCmd(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if _, err := runCmd(t, "--config", path, "config", "init"); err == nil {
		t.Fatal("second init should refuse to overwrite")
	}

	t.Setenv("OPENAI_API_KEY", "sk-abcdefghijklmnop")
	stdout, err = runCmd(t, "--config", path, "config", "show", "--jq", ".openai.api_key", "-o", "raw")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if stdout != "sk-a***********mnop" {
		t.Errorf("masked key = %q", stdout)
	}
}
