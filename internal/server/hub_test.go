package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpaste/flowpaste/internal/orchestrator"
)

func TestHub_FanOut(t *testing.T) {
	h := NewHub(4)
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	ev := orchestrator.Event{RequestID: "r1", Type: orchestrator.EventDelta, Content: "hi"}
	h.Publish(ev)

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-b)
}

func TestHub_EvictsSlowSubscriber(t *testing.T) {
	h := NewHub(1)
	slow, _ := h.Subscribe()
	fast, cancel := h.Subscribe()
	defer cancel()

	h.Publish(orchestrator.Event{RequestID: "r1", Type: orchestrator.EventDelta, Content: "a"})
	<-fast
	h.Publish(orchestrator.Event{RequestID: "r1", Type: orchestrator.EventDelta, Content: "b"})

	assert.Equal(t, 1, h.Len())
	first, ok := <-slow
	require.True(t, ok)
	assert.Equal(t, "a", first.Content)
	_, ok = <-slow
	assert.False(t, ok, "evicted subscriber channel should be closed")

	got := <-fast
	assert.Equal(t, "b", got.Content)
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	h.Close()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribe after close yields a closed channel")
	h.Publish(orchestrator.Event{RequestID: "r1"})
}
