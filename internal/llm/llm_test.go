package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/claimdesk/internal/config"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{Content: "mock response", Model: "mock-model", FinishReason: "stop"},
	}
}

func (m *MockProvider) Name() string { return m.ProvName }

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func TestRateLimitedProviderPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	p := NewRateLimitedProvider(mock, 60)

	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{User("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Content)
	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 1, mock.CallCount())
}

func TestRateLimitedProviderBlocksWhenExhausted(t *testing.T) {
	mock := NewMockProvider("test")
	p := NewRateLimitedProvider(mock, 1)

	_, err := p.Complete(context.Background(), CompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, CompletionRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mock.CallCount())
}

func TestCompatibleProviderTalksChatCompletions(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","model":"llama3.1",
			"choices":[{"index":0,"message":{"role":"assistant","content":"hospital"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":1,"total_tokens":13}}`))
	}))
	defer srv.Close()

	p := NewCompatibleProvider("ollama", srv.URL+"/v1", "ollama", "llama3.1")
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{System("route the claim"), User("I stayed 3 nights in St. Vincent's")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hospital", resp.Content)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, "llama3.1", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestNewProvider(t *testing.T) {
	cfg := config.DefaultConfig()

	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.Nil(t, p, "provider none disables the LLM")

	cfg.Provider = config.ProviderOllama
	cfg.Model = "llama3.1"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	t.Setenv("OPENAI_API_KEY", "")
	cfg.Provider = config.ProviderOpenAI
	_, err = NewProvider(cfg)
	assert.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	cfg.Provider = "gemini"
	_, err = NewProvider(cfg)
	assert.Error(t, err)
}
