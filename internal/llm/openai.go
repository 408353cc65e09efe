package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	fpotel "github.com/flowpaste/flowpaste/internal/otel"
)

// CloudProvider implements Provider for OpenAI-compatible chat completion
// APIs, streaming over SSE through go-openai.
type CloudProvider struct {
	httpClient *http.Client
}

// NewCloudProvider creates a cloud provider. A nil client uses
// http.DefaultClient; tests inject an httptest TLS client.
func NewCloudProvider(client *http.Client) *CloudProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &CloudProvider{httpClient: client}
}

// Kind returns KindCloud.
func (p *CloudProvider) Kind() Kind { return KindCloud }

// Name returns the provider identifier.
func (p *CloudProvider) Name() string { return "openai" }

// Validate requires an https base URL, a model and a credential.
func (p *CloudProvider) Validate(cfg Config) error {
	cfg = cfg.WithDefaults()
	if err := validateCommon(cfg, "https"); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Credential) == "" {
		return NewError(InvalidConfig, "cloud provider requires an API key", nil)
	}
	return nil
}

// client builds a go-openai client for cfg. The base URL is used as given,
// including any /v1 suffix.
func (p *CloudProvider) client(cfg Config) *openai.Client {
	config := openai.DefaultConfig(cfg.Credential)
	config.BaseURL = cfg.BaseURL
	config.HTTPClient = p.httpClient
	return openai.NewClientWithConfig(config)
}

// Complete streams a chat completion.
func (p *CloudProvider) Complete(ctx context.Context, prompt string, cfg Config) <-chan StreamEvent {
	cfg = cfg.WithDefaults()
	if err := p.Validate(cfg); err != nil {
		return failed(Classify(err))
	}
	return runStream(ctx, func(ctx context.Context, e *emitter) error {
		ctx, span := tracer.Start(ctx, "gen_ai.stream",
			trace.WithAttributes(fpotel.LLMRequestAttributes(p.Name(), cfg.Model, cfg.Temperature, cfg.MaxTokens)...))
		defer span.End()

		finish, err := p.stream(ctx, prompt, cfg, e)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetAttributes(fpotel.GenAIResponseFinishReason.String(finish))
		return nil
	})
}

func (p *CloudProvider) stream(ctx context.Context, prompt string, cfg Config, e *emitter) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
		Stream:      true,
	}

	stream, err := p.client(cfg).CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	defer stream.Close()

	var finish string
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Debug().Str("provider", p.Name()).Str("finish_reason", finish).Msg("stream_done")
			e.done()
			return finish, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", classifyStreamError(err)
		}
		for _, choice := range resp.Choices {
			if err := e.delta(choice.Delta.Content); err != nil {
				return "", err
			}
			if choice.FinishReason != "" {
				finish = string(choice.FinishReason)
			}
		}
	}
}

// ListModels returns the models the API key can access. No filtering is
// applied.
func (p *CloudProvider) ListModels(ctx context.Context, cfg Config) ([]ModelInfo, error) {
	cfg = cfg.WithDefaults()
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, TimeoutProbe)
	defer cancel()

	list, err := p.client(cfg).ListModels(ctx)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	models := make([]ModelInfo, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, ModelInfo{ID: m.ID, Name: m.ID, Provider: KindCloud})
	}
	return models, nil
}

// HealthCheck reports whether the model listing endpoint answers.
func (p *CloudProvider) HealthCheck(ctx context.Context, cfg Config) bool {
	_, err := p.ListModels(ctx, cfg)
	if err != nil {
		log.Debug().Str("provider", p.Name()).Str("code", string(KindOf(err))).Msg("health_check_failed")
	}
	return err == nil
}

// classifyOpenAIError maps go-openai errors, which carry the upstream HTTP
// status, to an *Error.
func classifyOpenAIError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return NewError(StatusKind(apiErr.HTTPStatusCode),
			fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return NewError(StatusKind(reqErr.HTTPStatusCode),
			fmt.Sprintf("status %d: %s", reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode)), err)
	}
	return Classify(err)
}

// classifyStreamError handles failures after the stream has started. Network
// failures keep their transport kind; anything else is a decode failure.
func classifyStreamError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewError(APIError, apiErr.Message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Classify(err)
	}
	return NewError(DecodeError, "malformed stream event", err)
}
