package llm

import (
	"context"
	"strings"
)

const streamBuffer = 16

// emitter is the producer side of a completion stream. It accumulates deltas
// for the final Done text and guarantees that exactly one terminal event is
// sent: after the first terminal every further event is dropped.
type emitter struct {
	ctx        context.Context
	ch         chan StreamEvent
	text       strings.Builder
	terminated bool
}

// runStream starts produce in its own goroutine and returns the consumer
// channel. If produce returns an error it becomes the terminal Error event;
// if it returns nil without a terminal, a DecodeError is synthesised.
func runStream(ctx context.Context, produce func(ctx context.Context, e *emitter) error) <-chan StreamEvent {
	ch := make(chan StreamEvent, streamBuffer)
	go func() {
		defer close(ch)
		e := &emitter{ctx: ctx, ch: ch}
		err := produce(ctx, e)
		switch {
		case e.terminated:
		case ctx.Err() != nil:
			e.fail(Classify(ctx.Err()))
		case err != nil:
			e.fail(Classify(err))
		default:
			e.fail(NewError(DecodeError, "stream ended without completion", nil))
		}
	}()
	return ch
}

// delta forwards a chunk of text. It returns the context error once the
// stream has been cancelled so producers can stop reading the transport.
func (e *emitter) delta(text string) error {
	if e.terminated {
		return nil
	}
	if text == "" {
		return e.ctx.Err()
	}
	e.text.WriteString(text)
	select {
	case e.ch <- StreamEvent{Type: EventDelta, Text: text}:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

// done emits the terminal Done event carrying the accumulated text.
func (e *emitter) done() {
	if e.terminated {
		return
	}
	e.terminated = true
	e.ch <- StreamEvent{Type: EventDone, Text: e.text.String()}
}

// fail emits the terminal Error event.
func (e *emitter) fail(err *Error) {
	if e.terminated {
		return
	}
	e.terminated = true
	e.ch <- StreamEvent{Type: EventError, Err: err}
}

// failed returns a closed channel holding a single Error event. Used when a
// request is rejected before any transport work starts.
func failed(err *Error) <-chan StreamEvent {
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Type: EventError, Err: err}
	close(ch)
	return ch
}

// Collect drains a stream and returns the final text, or the terminal error.
func Collect(events <-chan StreamEvent) (string, error) {
	var final string
	var err error
	for ev := range events {
		switch ev.Type {
		case EventDone:
			final = ev.Text
		case EventError:
			err = ev.Err
		}
	}
	return final, err
}
