package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	fpotel "github.com/flowpaste/flowpaste/internal/otel"
)

// maxNDJSONLine bounds a single NDJSON line from the local backend.
const maxNDJSONLine = 1 << 20

// LocalProvider implements Provider for Ollama-compatible local servers. It
// streams NDJSON from POST /api/chat and lists models from GET /api/tags.
type LocalProvider struct {
	httpClient *http.Client
}

// NewLocalProvider creates a local provider. A nil client uses a default
// client without a timeout; streams are bounded by their context instead.
func NewLocalProvider(client *http.Client) *LocalProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &LocalProvider{httpClient: client}
}

// Kind returns KindLocal.
func (p *LocalProvider) Kind() Kind { return KindLocal }

// Name returns the provider identifier.
func (p *LocalProvider) Name() string { return "ollama" }

// Validate accepts http and https base URLs and requires a model.
func (p *LocalProvider) Validate(cfg Config) error {
	return validateCommon(cfg.WithDefaults(), "http", "https")
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Complete streams a chat completion from the local server.
func (p *LocalProvider) Complete(ctx context.Context, prompt string, cfg Config) <-chan StreamEvent {
	cfg = cfg.WithDefaults()
	if err := p.Validate(cfg); err != nil {
		return failed(Classify(err))
	}
	return runStream(ctx, func(ctx context.Context, e *emitter) error {
		ctx, span := tracer.Start(ctx, "gen_ai.stream",
			trace.WithAttributes(fpotel.LLMRequestAttributes(p.Name(), cfg.Model, cfg.Temperature, cfg.MaxTokens)...))
		defer span.End()

		err := p.stream(ctx, prompt, cfg, e)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	})
}

func (p *LocalProvider) stream(ctx context.Context, prompt string, cfg Config, e *emitter) error {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    cfg.Model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   true,
		Options:  ollamaOptions{Temperature: cfg.Temperature, NumPredict: cfg.MaxTokens},
	})
	if err != nil {
		return fmt.Errorf("marshalling ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return NewError(InvalidConfig, "creating ollama request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxNDJSONLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return NewError(DecodeError, "malformed stream line", err)
		}
		if chunk.Error != "" {
			return NewError(APIError, chunk.Error, nil)
		}
		if err := e.delta(chunk.Message.Content); err != nil {
			return err
		}
		if chunk.Done {
			log.Debug().Str("provider", p.Name()).Str("done_reason", chunk.DoneReason).Msg("stream_done")
			e.done()
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return NewError(DecodeError, "reading stream", err)
	}
	return NewError(DecodeError, "stream ended without done", nil)
}

// ListModels returns the models installed on the local server.
func (p *LocalProvider) ListModels(ctx context.Context, cfg Config) ([]ModelInfo, error) {
	cfg = cfg.WithDefaults()
	if err := validateCommon(cfg, "http", "https"); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, TimeoutProbe)
	defer cancel()

	resp, err := p.getTags(ctx, cfg.BaseURL)
	if err != nil {
		return nil, Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, NewError(DecodeError, "decoding model list", err)
	}
	models := make([]ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		id := m.Name
		if id == "" {
			id = m.Model
		}
		models = append(models, ModelInfo{ID: id, Name: id, Provider: KindLocal})
	}
	return models, nil
}

// HealthCheck reports whether GET /api/tags answers with a 2xx status.
func (p *LocalProvider) HealthCheck(ctx context.Context, cfg Config) bool {
	cfg = cfg.WithDefaults()
	if validateCommon(cfg, "http", "https") != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, TimeoutProbe)
	defer cancel()

	resp, err := p.getTags(ctx, cfg.BaseURL)
	if err != nil {
		log.Debug().Err(err).Str("provider", p.Name()).Msg("health_check_failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (p *LocalProvider) getTags(ctx context.Context, baseURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return nil, NewError(InvalidConfig, "creating tags request", err)
	}
	return p.httpClient.Do(req)
}

// statusError converts a non-2xx response into an *Error, keeping a short
// excerpt of the body as the message.
func statusError(resp *http.Response) *Error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(excerpt))
	var body struct {
		Error any `json:"error"`
	}
	if json.Unmarshal(excerpt, &body) == nil && body.Error != nil {
		switch v := body.Error.(type) {
		case string:
			msg = v
		case map[string]any:
			if m, ok := v["message"].(string); ok {
				msg = m
			}
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return NewError(StatusKind(resp.StatusCode), fmt.Sprintf("status %d: %s", resp.StatusCode, msg), nil)
}
