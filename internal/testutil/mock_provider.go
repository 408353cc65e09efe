// Package testutil provides shared test helpers, mocks, and utilities for
// FlowPaste tests.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/flowpaste/flowpaste/internal/llm"
)

// MockProvider implements llm.Provider for tests without live backends.
// Complete streams Deltas, then Done with their concatenation, or Err when set.
// With Echo the prompt itself is streamed back. With Hold the stream blocks
// before its terminal event until Release is called or ctx is cancelled.
type MockProvider struct {
	ProviderKind llm.Kind
	Deltas       []string
	Echo         bool
	Err          *llm.Error
	Hold         bool
	ValidateErr  error
	Models       []llm.ModelInfo
	Unhealthy    bool

	mu      sync.Mutex
	prompts []string
	release chan struct{}
	closed  bool
}

// Kind returns the configured kind (local when unset).
func (m *MockProvider) Kind() llm.Kind {
	if m.ProviderKind == "" {
		return llm.KindLocal
	}
	return m.ProviderKind
}

// Name returns "mock".
func (m *MockProvider) Name() string { return "mock" }

// Validate returns ValidateErr.
func (m *MockProvider) Validate(llm.Config) error { return m.ValidateErr }

// Prompts returns the prompts received by Complete, in call order.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Release unblocks every held stream, current and future.
func (m *MockProvider) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.release == nil {
		m.release = make(chan struct{})
	}
	if !m.closed {
		close(m.release)
		m.closed = true
	}
}

func (m *MockProvider) gate(prompt string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.release == nil {
		m.release = make(chan struct{})
	}
	return m.release
}

// Complete streams the scripted response.
func (m *MockProvider) Complete(ctx context.Context, prompt string, _ llm.Config) <-chan llm.StreamEvent {
	release := m.gate(prompt)
	deltas := m.Deltas
	if m.Echo {
		deltas = []string{prompt}
	}
	ch := make(chan llm.StreamEvent)
	go func() {
		defer close(ch)
		cancelled := llm.StreamEvent{Type: llm.EventError, Err: llm.NewError(llm.Cancelled, "request cancelled", ctx.Err())}
		var sb strings.Builder
		for _, d := range deltas {
			sb.WriteString(d)
			select {
			case ch <- llm.StreamEvent{Type: llm.EventDelta, Text: d}:
			case <-ctx.Done():
				ch <- cancelled
				return
			}
		}
		if m.Hold {
			select {
			case <-release:
			case <-ctx.Done():
				ch <- cancelled
				return
			}
		}
		if m.Err != nil {
			ch <- llm.StreamEvent{Type: llm.EventError, Err: m.Err}
			return
		}
		ch <- llm.StreamEvent{Type: llm.EventDone, Text: sb.String()}
	}()
	return ch
}

// ListModels returns Models.
func (m *MockProvider) ListModels(context.Context, llm.Config) ([]llm.ModelInfo, error) {
	return m.Models, nil
}

// HealthCheck reports !Unhealthy.
func (m *MockProvider) HealthCheck(context.Context, llm.Config) bool { return !m.Unhealthy }
