// Package orchestrator runs at most one streamed completion at a time.
//
// Starting a request supersedes the current one. Every event coming back from
// a provider is checked against the current request token before it reaches
// the caller, so output from a superseded or cancelled request is never seen.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowpaste/flowpaste/internal/llm"
	fpotel "github.com/flowpaste/flowpaste/internal/otel"
	"github.com/flowpaste/flowpaste/internal/privacy"
)

var tracer = fpotel.Tracer("github.com/flowpaste/flowpaste/internal/orchestrator")

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("orchestrator closed")

// ProviderResolver resolves a provider by kind. *llm.Registry implements it.
type ProviderResolver interface {
	Get(kind llm.Kind) (llm.Provider, error)
}

// StartRequest describes a completion to run.
type StartRequest struct {
	RequestID        string
	Prompt           string
	Config           llm.Config
	UsePrivacyShield bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithScanner sets the scanner used by the privacy shield. Defaults to the
// embedded patterns.
func WithScanner(s *privacy.Scanner) Option {
	return func(o *Orchestrator) { o.scanner = s }
}

// WithClock overrides time.Now for handle timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

type request struct {
	handle  Handle
	cancel  context.CancelFunc
	ctx     context.Context
	span     trace.Span
	mapping  privacy.Mapping
	deadline *time.Timer
}

// Orchestrator owns the single current-request slot.
type Orchestrator struct {
	providers ProviderResolver
	sink      Sink
	scanner   *privacy.Scanner
	now       func() time.Time

	mu      sync.Mutex
	seq     uint64
	current *request
	last    *Handle
	closed  bool
	wg      sync.WaitGroup
}

// New creates an Orchestrator delivering events to sink.
func New(providers ProviderResolver, sink Sink, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers: providers,
		sink:      sink,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.scanner == nil {
		o.scanner = privacy.MustNewScanner()
	}
	return o
}

// Start validates the request, supersedes any active request, masks the
// prompt when the privacy shield is on, and starts streaming. An empty
// RequestID is replaced by a UUID. Invalid configuration is reported as an
// *llm.Error of kind InvalidConfig and leaves the current request untouched.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (Handle, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	provider, err := o.providers.Get(req.Config.Kind)
	if err != nil {
		return Handle{}, llm.NewError(llm.InvalidConfig, fmt.Sprintf("provider %q", req.Config.Kind), err)
	}
	cfg := req.Config.WithDefaults()
	if err := provider.Validate(cfg); err != nil {
		if llm.KindOf(err) != llm.InvalidConfig {
			err = llm.NewError(llm.InvalidConfig, "invalid provider config", err)
		}
		return Handle{}, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return Handle{}, ErrClosed
	}
	if o.current != nil {
		o.supersedeLocked(req.RequestID)
	}
	o.seq++
	token := Token{ID: req.RequestID, Seq: o.seq}

	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	reqCtx, span := tracer.Start(reqCtx, "orchestrator.request",
		trace.WithAttributes(
			fpotel.RequestID.String(token.ID),
			fpotel.GenAISystem.String(provider.Name()),
			fpotel.GenAIRequestModel.String(cfg.Model),
		))
	r := &request{
		handle: Handle{
			Token:     token,
			CreatedAt: o.now(),
			State:     StateStreaming,
			Provider:  cfg.Kind,
			Model:     cfg.Model,
		},
		cancel: cancel,
		ctx:    reqCtx,
		span:   span,
	}
	if req.UsePrivacyShield {
		r.handle.State = StateMasking
	}
	o.current = r
	o.wg.Add(1)
	o.mu.Unlock()

	log.Info().
		Str("request_id", token.ID).
		Uint64("seq", token.Seq).
		Str("provider", provider.Name()).
		Str("model", cfg.Model).
		Bool("privacy_shield", req.UsePrivacyShield).
		Func(fpotel.LogTraceFields(reqCtx)).
		Msg("request_started")

	prompt := req.Prompt
	var mapping privacy.Mapping
	if req.UsePrivacyShield {
		res := o.scanner.MaskText(reqCtx, prompt)
		prompt, mapping = res.Masked, res.Mapping
		span.SetAttributes(
			fpotel.PrivacyMasked.Bool(res.ScanResult.HasPII),
			fpotel.PrivacyCount.Int(len(res.ScanResult.Matches)),
		)
		if res.ScanResult.HasPII {
			ev := log.Info().Str("request_id", token.ID)
			for c, n := range res.ScanResult.CategoryCounts() {
				ev = ev.Int(string(c), n)
			}
			ev.Msg("prompt_masked")
		}
	}

	o.mu.Lock()
	if o.current != r || r.handle.Cancelled {
		// Superseded or cancelled while masking.
		snapshot := r.handle
		o.mu.Unlock()
		o.wg.Done()
		return snapshot, nil
	}
	r.mapping = mapping
	r.handle.Masked = len(mapping) > 0
	r.handle.State = StateStreaming
	snapshot := r.handle
	o.mu.Unlock()

	events := provider.Complete(reqCtx, prompt, cfg)
	go o.forward(r, token, events)
	return snapshot, nil
}

// forward delivers provider events in order until the stream closes. Events
// for a token that is no longer current are dropped.
func (o *Orchestrator) forward(r *request, token Token, events <-chan llm.StreamEvent) {
	defer o.wg.Done()
	for ev := range events {
		o.deliver(r, token, ev)
	}
}

func (o *Orchestrator) deliver(r *request, token Token, ev llm.StreamEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil || o.current.handle.Token != token || o.current.handle.Cancelled {
		log.Debug().
			Str("request_id", token.ID).
			Uint64("seq", token.Seq).
			Str("event", ev.Type.String()).
			Msg("stale_event_dropped")
		return
	}

	switch ev.Type {
	case llm.EventDelta:
		o.sink.Publish(Event{RequestID: token.ID, Type: EventDelta, Content: ev.Text})
	case llm.EventDone:
		content := ev.Text
		if len(r.mapping) > 0 {
			content = privacy.Restore(content, r.mapping)
		}
		o.sink.Publish(Event{RequestID: token.ID, Type: EventDone, Content: content, Done: true})
		o.finishLocked(r, StateCompleted, "completed", nil)
	case llm.EventError:
		err := ev.Err
		if err == nil {
			err = llm.NewError(llm.DecodeError, "stream failed", nil)
		}
		o.sink.Publish(Event{
			RequestID: token.ID,
			Type:      EventError,
			Done:      true,
			Code:      string(err.Kind),
			Message:   err.Message,
		})
		o.finishLocked(r, StateFailed, "failed", err)
	}
}

// finishLocked records the terminal state of r and clears the slot.
func (o *Orchestrator) finishLocked(r *request, state State, outcome string, err error) {
	r.handle.State = state
	r.cancel()
	if r.deadline != nil {
		r.deadline.Stop()
	}

	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
	}
	r.span.SetAttributes(fpotel.RequestOutcome.String(outcome))
	r.span.End()
	llm.RecordRequestMetrics(r.ctx, o.now().Sub(r.handle.CreatedAt), outcome, r.handle.Provider, r.handle.Model)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Str("code", string(llm.KindOf(err)))
	}
	ev.Str("request_id", r.handle.Token.ID).
		Uint64("seq", r.handle.Token.Seq).
		Str("outcome", outcome).
		Dur("duration", o.now().Sub(r.handle.CreatedAt)).
		Func(fpotel.LogTraceFields(r.ctx)).
		Msg("request_finished")

	last := r.handle
	o.last = &last
	if o.current == r {
		o.current = nil
	}
}

// supersedeLocked cancels the current request without emitting a terminal
// event for it.
func (o *Orchestrator) supersedeLocked(by string) {
	r := o.current
	r.handle.Cancelled = true
	r.cancel()
	log.Info().
		Str("request_id", r.handle.Token.ID).
		Uint64("seq", r.handle.Token.Seq).
		Str("superseded_by", by).
		Msg("request_superseded")
	o.finishLocked(r, StateCancelled, "superseded", nil)
}

// Cancel cancels the current request if its id matches and emits exactly one
// cancelled event. Unknown or non-current ids are a no-op; the return value
// reports whether a request was cancelled.
func (o *Orchestrator) Cancel(requestID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.current
	if r == nil || r.handle.Token.ID != requestID {
		return false
	}
	r.handle.Cancelled = true
	r.cancel()
	o.sink.Publish(Event{
		RequestID: requestID,
		Type:      EventCancelled,
		Done:      true,
		Code:      string(llm.Cancelled),
		Message:   "request cancelled",
	})
	o.finishLocked(r, StateCancelled, "cancelled", nil)
	return true
}

// Expire ends the current request with a TIMEOUT error if its id matches.
// It is the hook for caller-side deadlines; the core enforces none.
func (o *Orchestrator) Expire(requestID string) bool {
	return o.expire(func(t Token) bool { return t.ID == requestID })
}

// ExpireAfter arms a deadline for the request identified by h. The timer only
// fires against that exact request generation and is stopped when the request
// finishes. A handle that is no longer current gets an already stopped timer.
func (o *Orchestrator) ExpireAfter(h Handle, d time.Duration) *time.Timer {
	token := h.Token
	timer := time.AfterFunc(d, func() {
		o.expire(func(t Token) bool { return t == token })
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if r := o.current; r != nil && r.handle.Token == token {
		if r.deadline != nil {
			r.deadline.Stop()
		}
		r.deadline = timer
	} else {
		timer.Stop()
	}
	return timer
}

func (o *Orchestrator) expire(match func(Token) bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.current
	if r == nil || !match(r.handle.Token) {
		return false
	}
	r.handle.Cancelled = true
	r.cancel()
	err := llm.NewError(llm.Timeout, "request timed out", nil)
	o.sink.Publish(Event{
		RequestID: r.handle.Token.ID,
		Type:      EventError,
		Done:      true,
		Code:      string(err.Kind),
		Message:   err.Message,
	})
	o.finishLocked(r, StateFailed, "timeout", err)
	return true
}

// Current returns a snapshot of the active request.
func (o *Orchestrator) Current() (Handle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Handle{}, false
	}
	return o.current.handle, true
}

// Last returns a snapshot of the most recently finished request, including
// its terminal state.
func (o *Orchestrator) Last() (Handle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return Handle{}, false
	}
	return *o.last, true
}

// State returns the state of the current slot; StateIdle when empty.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return StateIdle
	}
	return o.current.handle.State
}

// Close cancels the current request without emitting an event, rejects
// further Starts, and waits for every forwarding goroutine to exit.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	if o.current != nil {
		r := o.current
		r.handle.Cancelled = true
		r.cancel()
		o.finishLocked(r, StateCancelled, "cancelled", nil)
	}
	o.mu.Unlock()
	o.wg.Wait()
}
