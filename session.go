package inkwell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// SessionStatus is the lifecycle status of a stream session.
type SessionStatus int32

const (
	// StatusIdle means the session has been created but not started
	StatusIdle SessionStatus = iota

	// StatusActive means the session is pumping events
	StatusActive

	// StatusCompleted means the session finished with a Completion
	StatusCompleted

	// StatusCancelled means the caller aborted the session
	StatusCancelled

	// StatusFailed means the session finished with an error
	StatusFailed
)

// String returns the status name for logging.
func (s SessionStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal returns true for statuses that end the session.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Callbacks is the contract a stream session dispatches into. All fields are
// optional; a nil callback is skipped (the accumulator still advances).
//
// Exactly one of OnComplete, OnError, OnCancelled fires per session, exactly
// once. OnToken, OnImages, OnSources and OnPhase may fire zero or more times
// before the terminal callback, in arrival order. Callbacks are invoked from
// the session's pump goroutine; handlers that touch shared state must
// synchronize accordingly.
type Callbacks struct {
	// OnToken receives each incremental text delta
	OnToken func(text string)

	// OnImages receives image side-channel payloads
	OnImages func(images []GeneratedImage)

	// OnSources receives source-citation side-channel payloads.
	// Non-terminal: the stream continues after sources arrive.
	OnSources func(sources []Source)

	// OnPhase receives explicit workflow phase labels emitted mid-stream
	OnPhase func(phase string)

	// OnComplete receives the terminal completion (full accumulated text,
	// sources and metadata if the server sent any)
	OnComplete func(c Completion)

	// OnError receives the terminal error (transport failure, non-success
	// HTTP status, or an explicit error payload from the server)
	OnError func(err error)

	// OnCancelled acknowledges caller-initiated cancellation.
	// Cancellation never routes through OnError.
	OnCancelled func()
}

// Session is one streaming request/response cycle against the backend. It
// owns the decoder→classifier pipeline, the text accumulator, and the
// registered callbacks, and it guarantees exactly one terminal outcome.
//
// Create sessions with Client.StartStream; the zero value is not usable.
type Session struct {
	status atomic.Int32
	cancel context.CancelFunc
	cb     Callbacks
	logger *slog.Logger
	done   chan struct{}

	mu      sync.Mutex
	acc     strings.Builder
	sources []Source
}

// Status returns the session's current lifecycle status.
func (s *Session) Status() SessionStatus {
	return SessionStatus(s.status.Load())
}

// Done returns a channel closed once the terminal callback has fired.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Text returns a snapshot of the accumulated answer text so far. The
// accumulator itself is owned exclusively by the session; callers only ever
// see copies.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.String()
}

// Cancel aborts the session. The underlying request is torn down and, if the
// session was still active, OnCancelled fires as the terminal callback. Any
// event classified concurrently with the abort is suppressed: terminal
// dispatch is a single compare-and-swap, so a racing completion loses.
// Cancelling an already-terminal session is a no-op.
func (s *Session) Cancel() {
	if s.status.CompareAndSwap(int32(StatusActive), int32(StatusCancelled)) {
		s.cancel()
		if s.cb.OnCancelled != nil {
			s.cb.OnCancelled()
		}
		close(s.done)
		return
	}
	// Already terminal; still release the transport.
	s.cancel()
}

// appendDelta appends text to the accumulator if the session is still
// active. Returns false once a terminal status has been reached, so stale
// deltas racing with cancellation never mutate the accumulator.
func (s *Session) appendDelta(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Status().Terminal() {
		s.acc.WriteString(text)
		return true
	}
	return false
}

// rememberSources stashes side-channel sources so a later completion frame
// that omits them (the multi-event protocol) still delivers them.
func (s *Session) rememberSources(sources []Source) {
	s.mu.Lock()
	s.sources = sources
	s.mu.Unlock()
}

// complete fires OnComplete exactly once, filling in the accumulated text
// and any remembered side-channel sources.
func (s *Session) complete(c Completion) {
	if !s.status.CompareAndSwap(int32(StatusActive), int32(StatusCompleted)) {
		return
	}
	s.mu.Lock()
	c.Text = s.acc.String()
	if c.Sources == nil {
		c.Sources = s.sources
	}
	s.mu.Unlock()
	if s.cb.OnComplete != nil {
		s.cb.OnComplete(c)
	}
	close(s.done)
}

// fail fires OnError exactly once.
func (s *Session) fail(err error) {
	if !s.status.CompareAndSwap(int32(StatusActive), int32(StatusFailed)) {
		return
	}
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
	close(s.done)
}

// StartStream opens a streaming POST against the backend and pumps the
// response through the decoder→classifier pipeline into the given callbacks.
// It always returns a usable Session: failures before or during the stream
// are delivered through OnError, never as a panic or a hung caller.
//
// The request body must carry the protocol's explicit streaming flag (the
// per-operation request types in this package set it); StartStream adds the
// event-stream Accept header.
func (c *Client) StartStream(ctx context.Context, path string, body interface{}, cb Callbacks) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cancel: cancel,
		cb:     cb,
		logger: c.logger,
		done:   make(chan struct{}),
	}
	s.status.Store(int32(StatusActive))

	go s.run(sctx, c, path, body)
	return s
}

// run issues the request and pumps the response body until a terminal event.
func (s *Session) run(ctx context.Context, c *Client, path string, body interface{}) {
	defer s.cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		s.fail(fmt.Errorf("marshal stream request: %w", err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		s.fail(fmt.Errorf("build stream request: %w", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		s.logger.Debug("stream request failed", "path", path, "error", err)
		s.fail(fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
		return
	}
	defer resp.Body.Close()

	// Non-success or bodyless responses short-circuit to OnError without
	// ever touching the decoder.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.fail(newAPIError(resp, path))
		return
	}
	if resp.Body == http.NoBody {
		s.fail(&APIError{StatusCode: resp.StatusCode, Message: "empty response body", Endpoint: path})
		return
	}

	s.pump(resp.Body)
}

// pump reads the response body chunk by chunk, reassembles frames, and
// dispatches classified events. The pipeline is strictly sequential: events
// are delivered in arrival order, with no batching or reordering.
func (s *Session) pump(body io.Reader) {
	dec := &FrameDecoder{}
	buf := make([]byte, 4096)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				if s.dispatch(f) {
					return
				}
			}
		}
		if readErr == io.EOF {
			if f, ok := dec.Flush(); ok {
				if s.dispatch(f) {
					return
				}
			}
			// Upstream closed without a terminal frame. Resolve with
			// whatever was accumulated instead of hanging the caller;
			// the completion is marked truncated.
			s.logger.Debug("stream ended without terminal event, synthesizing completion")
			s.complete(Completion{Truncated: true})
			return
		}
		if readErr != nil {
			// A read error after cancellation is the abort itself; fail()
			// is a no-op then because the status CAS already lost.
			s.fail(fmt.Errorf("read stream: %w", readErr))
			return
		}
	}
}

// dispatch routes one frame's event to the callbacks. Returns true when the
// event was terminal and pumping must stop.
func (s *Session) dispatch(f Frame) bool {
	ev, ok := Classify(f)
	if !ok {
		return false
	}

	switch {
	case ev.Delta != nil:
		if s.appendDelta(ev.Delta.Text) && s.cb.OnToken != nil {
			s.cb.OnToken(ev.Delta.Text)
		}
	case ev.Images != nil:
		if s.Status() == StatusActive && s.cb.OnImages != nil {
			s.cb.OnImages(ev.Images)
		}
	case ev.Sources != nil:
		s.rememberSources(ev.Sources)
		if s.Status() == StatusActive && s.cb.OnSources != nil {
			s.cb.OnSources(ev.Sources)
		}
	case ev.Phase != nil:
		if s.Status() == StatusActive && s.cb.OnPhase != nil {
			s.cb.OnPhase(*ev.Phase)
		}
	case ev.Completion != nil:
		s.complete(*ev.Completion)
		return true
	case ev.Err != nil:
		s.fail(ev.Err)
		return true
	}
	return false
}

// Slot is a logical conversation/query context holding at most one active
// session. Starting a new session through a slot cancels the previous one
// (last writer wins), so two stale sessions can never both write into the
// same consumer's state.
type Slot struct {
	mu     sync.Mutex
	active *Session
}

// Start cancels the slot's current session, then invokes begin to start the
// replacement and installs it. The cancel-then-start order is the invariant:
// the old session's transport is aborted before the new request opens.
func (sl *Slot) Start(begin func() *Session) *Session {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.active != nil {
		sl.active.Cancel()
	}
	sl.active = begin()
	return sl.active
}

// Active returns the slot's current session, or nil.
func (sl *Slot) Active() *Session {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.active
}

// Cancel aborts the slot's current session, if any.
func (sl *Slot) Cancel() {
	if s := sl.Active(); s != nil {
		s.Cancel()
	}
}
