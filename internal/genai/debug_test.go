package genai

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newDebugClient(stateDir string, debug bool) *Client {
	return &Client{
		chat:        &mockChatService{resp: completionWith("Respira hondo, estoy aquí contigo.")},
		model:       "gpt-test",
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		debugMode:   debug,
		stateDir:    stateDir,
	}
}

func TestDebugModeWritesOneEntryPerCall(t *testing.T) {
	dir := t.TempDir()
	c := newDebugClient(dir, true)

	for _, msg := range []string{"no puedo dormir", "tengo mucho trabajo"} {
		if _, err := c.GenerateResponse(context.Background(), msg, "Nombre: Ana"); err != nil {
			t.Fatalf("GenerateResponse(%q): %v", msg, err)
		}
	}

	files, err := os.ReadDir(filepath.Join(dir, "debug"))
	if err != nil {
		t.Fatalf("read debug dir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d debug files, want 2", len(files))
	}

	raw, err := os.ReadFile(filepath.Join(dir, "debug", files[0].Name()))
	if err != nil {
		t.Fatalf("read debug file: %v", err)
	}
	var entry struct {
		Method string          `json:"method"`
		Model  string          `json:"model"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.Fatalf("decode debug file: %v", err)
	}
	if entry.Method != "GeneratePromptWithContext" || entry.Model != "gpt-test" {
		t.Errorf("entry = %+v, want method GeneratePromptWithContext and model gpt-test", entry)
	}
	if !strings.Contains(string(entry.Params), "Nombre: Ana") {
		t.Errorf("params do not carry the session context: %s", entry.Params)
	}
	if !strings.HasSuffix(files[0].Name(), ".json") {
		t.Errorf("debug file %q should be JSON", files[0].Name())
	}
}

func TestDebugModeOffOrWithoutStateDir(t *testing.T) {
	dir := t.TempDir()
	for _, c := range []*Client{newDebugClient(dir, false), newDebugClient("", true)} {
		if _, err := c.GenerateResponse(context.Background(), "hola", ""); err != nil {
			t.Fatalf("GenerateResponse: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "debug")); !os.IsNotExist(err) {
		t.Errorf("debug dir should not exist, stat err = %v", err)
	}
}
