package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	typed := NewError(ModelNotFound, "no such model", nil)
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"typed passthrough", fmt.Errorf("wrapped: %w", typed), ModelNotFound},
		{"context canceled", fmt.Errorf("get: %w", context.Canceled), Cancelled},
		{"deadline", context.DeadlineExceeded, Timeout},
		{"net timeout", timeoutErr{}, Timeout},
		{"dial refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, ConnectionFailed},
		{"other", errors.New("boom"), APIError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
	assert.Nil(t, Classify(nil))
}

func TestStatusKind(t *testing.T) {
	assert.Equal(t, AuthenticationFailed, StatusKind(http.StatusUnauthorized))
	assert.Equal(t, AuthenticationFailed, StatusKind(http.StatusForbidden))
	assert.Equal(t, ModelNotFound, StatusKind(http.StatusNotFound))
	assert.Equal(t, Timeout, StatusKind(http.StatusGatewayTimeout))
	assert.Equal(t, APIError, StatusKind(http.StatusBadGateway))
}

func TestErrorIsAndUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := fmt.Errorf("request: %w", NewError(ConnectionFailed, "connection failed", cause))

	assert.True(t, errors.Is(err, &Error{Kind: ConnectionFailed}))
	assert.False(t, errors.Is(err, &Error{Kind: Timeout}))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ConnectionFailed, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
	assert.Equal(t, "CONNECTION_FAILED: connection failed: socket closed", errors.Unwrap(err).Error())
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"local": KindLocal, "Ollama": KindLocal, "cloud": KindCloud, " openai ": KindCloud} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("anthropic")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestConfigWithDefaults(t *testing.T) {
	local := Config{Kind: KindLocal}.WithDefaults()
	assert.Equal(t, DefaultLocalBaseURL, local.BaseURL)
	assert.Equal(t, DefaultLocalModel, local.Model)

	cloud := Config{Kind: KindCloud, BaseURL: "https://gw.example.com/v1/", Model: "m"}.WithDefaults()
	assert.Equal(t, "https://gw.example.com/v1", cloud.BaseURL)
	assert.Equal(t, "m", cloud.Model)
}
