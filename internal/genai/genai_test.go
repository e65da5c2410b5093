package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func completionWith(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerateResponse_Success(t *testing.T) {
	mock := &mockChatService{resp: completionWith("  Respira hondo, estoy contigo 🧘  ")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.7, maxTokens: 300}

	out, err := client.GenerateResponse(context.Background(), "no puedo dormir", "## Rol: Lumi")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Respira hondo, estoy contigo 🧘" {
		t.Errorf("expected trimmed content, got '%s'", out)
	}
	if len(mock.params.Messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(mock.params.Messages))
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %s", mock.params.Model)
	}
}

func TestGenerateResponse_SystemPromptCarriesContext(t *testing.T) {
	mock := &mockChatService{resp: completionWith("ok")}
	client := &Client{chat: mock, model: "test-model"}

	if _, err := client.GenerateResponse(context.Background(), "hola", "Nombre: Ana"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	system := mock.params.Messages[0].OfSystem
	if system == nil {
		t.Fatalf("expected first message to be a system message")
	}
	if !strings.Contains(system.Content.OfString.Value, "Usa el contexto del usuario: Nombre: Ana") {
		t.Errorf("system prompt missing context: %q", system.Content.OfString.Value)
	}
}

func TestGenerateResponse_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.GenerateResponse(context.Background(), "usr", "ctx")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerateResponse_NoChoices(t *testing.T) {
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	client := &Client{chat: &mockChatService{resp: mockResp}}
	_, err := client.GenerateResponse(context.Background(), "usr", "ctx")
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected missing key error, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o-mini"), WithMaxTokens(120))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli == nil {
		t.Fatal("expected client instance, got nil")
	}
	if cli.model != "gpt-4o-mini" || cli.maxTokens != 120 {
		t.Errorf("options not applied: model=%s maxTokens=%d", cli.model, cli.maxTokens)
	}
	if cli.temperature != DefaultTemperature {
		t.Errorf("expected default temperature, got %v", cli.temperature)
	}
}
