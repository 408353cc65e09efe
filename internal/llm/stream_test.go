package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStream_TerminalExclusivity(t *testing.T) {
	events := drain(t, runStream(context.Background(), func(ctx context.Context, e *emitter) error {
		require.NoError(t, e.delta("a"))
		require.NoError(t, e.delta(""))
		require.NoError(t, e.delta("b"))
		e.done()
		e.fail(NewError(APIError, "late", nil))
		_ = e.delta("c")
		e.done()
		return errors.New("ignored after terminal")
	}))

	require.Len(t, events, 3)
	assert.Equal(t, EventDone, events[2].Type)
	assert.Equal(t, "ab", events[2].Text)
}

func TestRunStream_SynthesisesTerminal(t *testing.T) {
	t.Run("nil return without terminal", func(t *testing.T) {
		events := drain(t, runStream(context.Background(), func(ctx context.Context, e *emitter) error {
			return e.delta("x")
		}))
		last := assertSingleTerminal(t, events)
		require.Equal(t, EventError, last.Type)
		assert.Equal(t, DecodeError, last.Err.Kind)
	})

	t.Run("error return", func(t *testing.T) {
		events := drain(t, runStream(context.Background(), func(ctx context.Context, e *emitter) error {
			return NewError(AuthenticationFailed, "bad key", nil)
		}))
		last := assertSingleTerminal(t, events)
		assert.Equal(t, AuthenticationFailed, last.Err.Kind)
	})

	t.Run("cancelled context wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		events := drain(t, runStream(ctx, func(ctx context.Context, e *emitter) error {
			return errors.New("read: connection reset")
		}))
		last := assertSingleTerminal(t, events)
		assert.Equal(t, Cancelled, last.Err.Kind)
	})
}

func TestCollect(t *testing.T) {
	text, err := Collect(runStream(context.Background(), func(ctx context.Context, e *emitter) error {
		_ = e.delta("hello ")
		_ = e.delta("world")
		e.done()
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)

	_, err = Collect(failed(NewError(InvalidConfig, "nope", nil)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, &Error{Kind: InvalidConfig}))
}
