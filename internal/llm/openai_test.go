package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCloudTestServer(t *testing.T, handler http.HandlerFunc) (*CloudProvider, Config) {
	t.Helper()
	ts := httptest.NewTLSServer(handler)
	t.Cleanup(ts.Close)
	cfg := Config{
		Kind:        KindCloud,
		BaseURL:     ts.URL + "/v1",
		Model:       "gpt-4o-mini",
		Credential:  "test-api-key",
		MaxTokens:   64,
		Temperature: 0.5,
	}
	return NewCloudProvider(ts.Client()), cfg
}

func writeSSE(w http.ResponseWriter, payloads ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, p := range payloads {
		fmt.Fprintf(w, "data: %s\n\n", p)
	}
}

func TestCloudComplete_Success(t *testing.T) {
	provider, cfg := newCloudTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "Summarize {{FP_EMAIL_01}}", req.Messages[0].Content)

		writeSSE(w,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Sure"}}]}`,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":", done"},"finish_reason":"stop"}]}`,
			`[DONE]`,
		)
	})

	events := drain(t, provider.Complete(context.Background(), "Summarize {{FP_EMAIL_01}}", cfg))
	last := assertSingleTerminal(t, events)
	require.Equal(t, EventDone, last.Type)
	assert.Equal(t, "Sure, done", last.Text)
	require.Len(t, events, 3)
	assert.Equal(t, "Sure", events[0].Text)
}

func TestCloudComplete_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, AuthenticationFailed},
		{"forbidden", http.StatusForbidden, AuthenticationFailed},
		{"not found", http.StatusNotFound, ModelNotFound},
		{"rate limited", http.StatusTooManyRequests, APIError},
		{"server error", http.StatusInternalServerError, APIError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, cfg := newCloudTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"upstream says no","type":"invalid_request_error"}}`))
			})

			last := assertSingleTerminal(t, drain(t, provider.Complete(context.Background(), "Hi", cfg)))
			require.Equal(t, EventError, last.Type)
			assert.Equal(t, tt.want, last.Err.Kind)
			assert.Contains(t, last.Err.Message, "upstream says no")
		})
	}
}

func TestCloudComplete_MalformedEvent(t *testing.T) {
	provider, cfg := newCloudTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"ok"}}]}`,
			`{not json`,
		)
	})

	events := drain(t, provider.Complete(context.Background(), "Hi", cfg))
	last := assertSingleTerminal(t, events)
	require.Equal(t, EventError, last.Type)
	assert.Equal(t, DecodeError, last.Err.Kind)
}

func TestCloudValidate(t *testing.T) {
	p := NewCloudProvider(nil)
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults with key", Config{Kind: KindCloud, Credential: "sk-x"}, false},
		{"custom https endpoint", Config{Kind: KindCloud, BaseURL: "https://llm.example.com/v1", Credential: "k", Model: "m"}, false},
		{"missing key", Config{Kind: KindCloud}, true},
		{"blank key", Config{Kind: KindCloud, Credential: "  "}, true},
		{"plain http", Config{Kind: KindCloud, BaseURL: "http://api.openai.com/v1", Credential: "k"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, InvalidConfig, KindOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCloudComplete_InvalidConfigNoRequest(t *testing.T) {
	called := false
	provider, cfg := newCloudTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	cfg.Credential = ""

	last := assertSingleTerminal(t, drain(t, provider.Complete(context.Background(), "Hi", cfg)))
	assert.Equal(t, InvalidConfig, last.Err.Kind)
	assert.False(t, called)
}

func TestCloudListModels(t *testing.T) {
	provider, cfg := newCloudTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"},{"id":"text-embedding-3-small","object":"model"}]}`))
	})

	models, err := provider.ListModels(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, ModelInfo{ID: "gpt-4o-mini", Name: "gpt-4o-mini", Provider: KindCloud}, models[0])
	assert.True(t, provider.HealthCheck(context.Background(), cfg))
}

func TestCloudHealthCheckUnauthorized(t *testing.T) {
	provider, cfg := newCloudTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := provider.ListModels(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, AuthenticationFailed, KindOf(err))
	assert.False(t, provider.HealthCheck(context.Background(), cfg))
}
