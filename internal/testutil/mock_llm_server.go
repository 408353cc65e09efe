package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// NewOllamaServer starts an httptest.Server speaking the Ollama chat API.
// POST /api/chat streams one NDJSON line per chunk followed by a done line;
// GET /api/tags lists models. Caller must Close the server.
func NewOllamaServer(chunks []string, models ...string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, c := range chunks {
			_ = enc.Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": c},
				"done":    false,
			})
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		_ = enc.Encode(map[string]any{
			"message":     map[string]string{"role": "assistant", "content": ""},
			"done":        true,
			"done_reason": "stop",
		})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		list := make([]map[string]string, 0, len(models))
		for _, m := range models {
			list = append(list, map[string]string{"name": m, "model": m})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"models": list})
	})
	return httptest.NewServer(mux)
}

// NewOpenAIStreamServer starts a TLS httptest.Server speaking the OpenAI chat
// completions API. POST /v1/chat/completions streams one SSE event per chunk
// then [DONE]; GET /v1/models lists models. Requests without the bearer
// credential get 401. Use server.Client() as the provider's HTTP client.
func NewOpenAIStreamServer(credential string, chunks []string, models ...string) *httptest.Server {
	authorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer "+credential {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
			return false
		}
		return true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for i, c := range chunks {
			chunk := map[string]any{
				"id":     "chatcmpl-test",
				"object": "chat.completion.chunk",
				"model":  "gpt-4o-mini",
				"choices": []map[string]any{{
					"index": 0,
					"delta": map[string]string{"content": c},
				}},
			}
			if i == len(chunks)-1 {
				chunk["choices"].([]map[string]any)[0]["finish_reason"] = "stop"
			}
			b, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", b)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		data := make([]map[string]string, 0, len(models))
		for _, m := range models {
			data = append(data, map[string]string{"id": m, "object": "model", "owned_by": "test"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	return httptest.NewTLSServer(mux)
}
