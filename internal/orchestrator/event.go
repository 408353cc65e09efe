package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/flowpaste/flowpaste/internal/llm"
)

// State is the lifecycle state of the current request slot.
type State int

const (
	StateIdle State = iota
	StateMasking
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

var stateNames = [...]string{"idle", "masking", "streaming", "completed", "cancelled", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if strings.EqualFold(n, string(b)) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", string(b))
}

// Terminal reports whether s ends a request.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Token identifies one request generation. ID is the caller's request id;
// Seq is unique per orchestrator, so a reused ID still yields a new Token.
// Tokens are compared by value.
type Token struct {
	ID  string `json:"id"`
	Seq uint64 `json:"seq"`
}

// Handle is a snapshot of a request.
type Handle struct {
	Token     Token     `json:"token"`
	Cancelled bool      `json:"cancelled"`
	CreatedAt time.Time `json:"createdAt"`
	State     State     `json:"state"`
	Masked    bool      `json:"masked"`
	Provider  llm.Kind  `json:"provider"`
	Model     string    `json:"model"`
}

// EventType distinguishes caller-visible events.
type EventType string

const (
	EventDelta     EventType = "delta"
	EventDone      EventType = "done"
	EventError     EventType = "error"
	EventCancelled EventType = "cancelled"
)

// Event is what the caller's Sink receives. Content holds a delta or the
// final restored text; Code and Message describe errors and cancellation.
type Event struct {
	RequestID string    `json:"requestId"`
	Type      EventType `json:"type"`
	Content   string    `json:"content,omitempty"`
	Done      bool      `json:"done"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Terminal reports whether e is the last event of its request.
func (e Event) Terminal() bool { return e.Type != EventDelta }

// Sink receives events. Publish is called with the orchestrator lock held so
// deliveries are totally ordered; it must not call back into the
// Orchestrator and should not block for long.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) { f(e) }
