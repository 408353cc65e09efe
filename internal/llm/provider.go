package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// TimeoutProbe bounds model listing and health checks. Completion streams
// have no timeout; callers cancel them through the context.
const TimeoutProbe = 5 * time.Second

// Default endpoints and request parameters.
const (
	DefaultLocalBaseURL = "http://localhost:11434"
	DefaultCloudBaseURL = "https://api.openai.com/v1"
	DefaultLocalModel   = "llama3.2"
	DefaultCloudModel   = "gpt-4o-mini"
	DefaultMaxTokens    = 2048
	DefaultTemperature  = 0.7
)

// ErrUnknownProvider is returned when no provider is registered for a Kind.
var ErrUnknownProvider = errors.New("unknown provider")

// Kind selects a provider variant. The set is closed.
type Kind string

const (
	KindLocal Kind = "local"
	KindCloud Kind = "cloud"
)

// ParseKind resolves a provider kind name. "ollama" and "openai" are accepted
// as aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "ollama":
		return KindLocal, nil
	case "cloud", "openai":
		return KindCloud, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// Config is the immutable per-request provider configuration.
type Config struct {
	Kind        Kind    `json:"kind"`
	BaseURL     string  `json:"baseUrl"`
	Model       string  `json:"model"`
	Credential  string  `json:"-"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
}

// WithDefaults returns a copy of c with an empty base URL and model replaced
// by the defaults for its kind.
func (c Config) WithDefaults() Config {
	switch c.Kind {
	case KindLocal:
		if c.BaseURL == "" {
			c.BaseURL = DefaultLocalBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultLocalModel
		}
	case KindCloud:
		if c.BaseURL == "" {
			c.BaseURL = DefaultCloudBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultCloudModel
		}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// validateCommon checks the fields every provider needs.
func validateCommon(c Config, schemes ...string) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return NewError(InvalidConfig, fmt.Sprintf("invalid base URL %q", c.BaseURL), err)
	}
	ok := false
	for _, s := range schemes {
		if u.Scheme == s {
			ok = true
			break
		}
	}
	if !ok {
		return NewError(InvalidConfig, fmt.Sprintf("base URL scheme must be one of %s, got %q", strings.Join(schemes, ", "), u.Scheme), nil)
	}
	if strings.TrimSpace(c.Model) == "" {
		return NewError(InvalidConfig, "model is required", nil)
	}
	if c.MaxTokens < 0 {
		return NewError(InvalidConfig, "max tokens must not be negative", nil)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return NewError(InvalidConfig, "temperature must be between 0 and 2", nil)
	}
	return nil
}

// EventType distinguishes stream events.
type EventType int

const (
	EventDelta EventType = iota
	EventDone
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// StreamEvent is one item of a completion stream. Text carries the delta for
// EventDelta and the full response for EventDone; Err is set for EventError.
type StreamEvent struct {
	Type EventType
	Text string
	Err  *Error
}

// Terminal reports whether e ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider Kind   `json:"provider"`
}

// Provider is the interface all completion backends implement.
type Provider interface {
	// Kind returns the variant this provider serves.
	Kind() Kind
	// Name returns the provider identifier (e.g. "ollama", "openai").
	Name() string
	// Validate rejects a configuration this provider cannot serve with an
	// InvalidConfig *Error.
	Validate(cfg Config) error
	// Complete starts a streamed completion. The returned channel yields
	// deltas in order, then exactly one Done or Error event, then closes.
	// Cancelling ctx stops the transport. Callers must drain the channel.
	Complete(ctx context.Context, prompt string, cfg Config) <-chan StreamEvent
	// ListModels returns the models the backend offers.
	ListModels(ctx context.Context, cfg Config) ([]ModelInfo, error)
	// HealthCheck reports whether the backend is reachable. It never errors.
	HealthCheck(ctx context.Context, cfg Config) bool
}
