package inkwell

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder collects callback invocations for assertions.
type recorder struct {
	mu         sync.Mutex
	tokens     []string
	sources    [][]Source
	images     [][]GeneratedImage
	phases     []string
	completion *Completion
	err        error
	cancelled  bool
	terminals  int

	tokenCh chan string
}

func newRecorder() *recorder {
	return &recorder{tokenCh: make(chan string, 64)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnToken: func(text string) {
			r.mu.Lock()
			r.tokens = append(r.tokens, text)
			r.mu.Unlock()
			r.tokenCh <- text
		},
		OnSources: func(s []Source) {
			r.mu.Lock()
			r.sources = append(r.sources, s)
			r.mu.Unlock()
		},
		OnImages: func(im []GeneratedImage) {
			r.mu.Lock()
			r.images = append(r.images, im)
			r.mu.Unlock()
		},
		OnPhase: func(p string) {
			r.mu.Lock()
			r.phases = append(r.phases, p)
			r.mu.Unlock()
		},
		OnComplete: func(c Completion) {
			r.mu.Lock()
			r.completion = &c
			r.terminals++
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.err = err
			r.terminals++
			r.mu.Unlock()
		},
		OnCancelled: func() {
			r.mu.Lock()
			r.cancelled = true
			r.terminals++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return recorder{
		tokens:     append([]string(nil), r.tokens...),
		phases:     append([]string(nil), r.phases...),
		completion: r.completion,
		err:        r.err,
		cancelled:  r.cancelled,
		terminals:  r.terminals,
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not reach a terminal state")
	}
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL, WithIdentity(Identity{UserID: "u-test", SessionID: "s-test"}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSession_LegacyStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept header = %q, want text/event-stream", got)
		}
		f := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range []string{
			`data: {"token":"Hello"}`,
			`data: {"token":" world"}`,
			`data: [DONE]`,
		} {
			w.Write([]byte(line + "\n"))
			f.Flush()
		}
	}))
	defer srv.Close()

	rec := newRecorder()
	s := testClient(t, srv.URL).StartStream(context.Background(), "/api/chat", AskRequest{Question: "hi", Stream: true}, rec.callbacks())
	waitDone(t, s)

	got := rec.snapshot()
	if got.terminals != 1 {
		t.Fatalf("terminal callbacks = %d, want exactly 1", got.terminals)
	}
	if got.completion == nil {
		t.Fatal("want OnComplete")
	}
	if got.completion.Text != "Hello world" {
		t.Errorf("completion text = %q, want %q", got.completion.Text, "Hello world")
	}
	if got.completion.Truncated {
		t.Error("completion marked truncated on a clean stream")
	}
	if strings.Join(got.tokens, "") != "Hello world" {
		t.Errorf("tokens = %v, want deltas in order", got.tokens)
	}
	if s.Status() != StatusCompleted {
		t.Errorf("status = %v, want completed", s.Status())
	}
}

func TestSession_MultiEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := w.(http.Flusher)
		for _, line := range []string{
			`data: {"type":"content","content":"answer"}`,
			`data: {"type":"sources","sources":[{"filename":"a.pdf"}]}`,
			`data: {"type":"done","session_id":"s1"}`,
		} {
			w.Write([]byte(line + "\n"))
			f.Flush()
		}
	}))
	defer srv.Close()

	rec := newRecorder()
	s := testClient(t, srv.URL).StartStream(context.Background(), "/api/chat", AskRequest{Question: "hi", Stream: true}, rec.callbacks())
	waitDone(t, s)

	got := rec.snapshot()
	if got.completion == nil {
		t.Fatal("want OnComplete")
	}
	if got.completion.SessionID != "s1" {
		t.Errorf("session id = %q, want s1", got.completion.SessionID)
	}
	// Side-channel sources ride on the completion even though the done
	// frame itself carried none.
	if len(got.completion.Sources) != 1 || got.completion.Sources[0].Filename != "a.pdf" {
		t.Errorf("completion sources = %+v, want a.pdf", got.completion.Sources)
	}
	rec.mu.Lock()
	sourceEvents := len(rec.sources)
	rec.mu.Unlock()
	if sourceEvents != 1 {
		t.Errorf("OnSources fired %d times, want 1", sourceEvents)
	}
}

func TestSession_HTTPErrorShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	rec := newRecorder()
	s := testClient(t, srv.URL).StartStream(context.Background(), "/api/chat", AskRequest{Question: "hi", Stream: true}, rec.callbacks())
	waitDone(t, s)

	got := rec.snapshot()
	if got.terminals != 1 || got.err == nil {
		t.Fatalf("want exactly one OnError, got terminals=%d err=%v", got.terminals, got.err)
	}
	var apiErr *APIError
	if !errors.As(got.err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", got.err)
	}
	if apiErr.Message != "boom" {
		t.Errorf("error message = %q, want server message %q", apiErr.Message, "boom")
	}
	if len(got.tokens) != 0 {
		t.Errorf("tokens = %v, want none before short-circuit", got.tokens)
	}
	if s.Status() != StatusFailed {
		t.Errorf("status = %v, want failed", s.Status())
	}
}

func TestSession_HTTPErrorUnparseableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>oops</html>"))
	}))
	defer srv.Close()

	rec := newRecorder()
	s := testClient(t, srv.URL).StartStream(context.Background(), "/api/chat", AskRequest{Stream: true}, rec.callbacks())
	waitDone(t, s)

	var apiErr *APIError
	if !errors.As(rec.snapshot().err, &apiErr) {
		t.Fatal("want *APIError")
	}
	if apiErr.Message != http.StatusText(http.StatusBadGateway) {
		t.Errorf("message = %q, want HTTP status text fallback", apiErr.Message)
	}
}

func TestSession_EOFSynthesizesCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := w.(http.Flusher)
		w.Write([]byte("data: {\"token\":\"par\"}\n"))
		f.Flush()
		w.Write([]byte("data: {\"token\":\"tial\"}\n"))
		f.Flush()
		// Connection closes with no terminal frame.
	}))
	defer srv.Close()

	rec := newRecorder()
	s := testClient(t, srv.URL).StartStream(context.Background(), "/api/chat", AskRequest{Stream: true}, rec.callbacks())
	waitDone(t, s)

	got := rec.snapshot()
	if got.terminals != 1 || got.completion == nil {
		t.Fatalf("want exactly one OnComplete, got terminals=%d", got.terminals)
	}
	if got.completion.Text != "partial" {
		t.Errorf("completion text = %q, want ordered concatenation %q", got.completion.Text, "partial")
	}
	if !got.completion.Truncated {
		t.Error("EOF-synthesized completion must be marked truncated")
	}
}

func TestSession_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := w.(http.Flusher)
		w.Write([]byte("data: {\"token\":\"a\"}\n"))
		f.Flush()
		w.Write([]byte("data: {\"error\":\"model exploded\"}\n"))
		f.Flush()
		// Anything after the terminal frame must be ignored.
		w.Write([]byte("data: {\"token\":\"late\"}\n"))
		f.Flush()
	}))
	defer srv.Close()

	rec := newRecorder()
	s := testClient(t, srv.URL).StartStream(context.Background(), "/api/chat", AskRequest{Stream: true}, rec.callbacks())
	waitDone(t, s)

	got := rec.snapshot()
	if got.terminals != 1 {
		t.Fatalf("terminal callbacks = %d, want 1", got.terminals)
	}
	var streamErr *StreamError
	if !errors.As(got.err, &streamErr) || streamErr.Message != "model exploded" {
		t.Fatalf("err = %v, want StreamError with verbatim message", got.err)
	}
	if strings.Join(got.tokens, "") != "a" {
		t.Errorf("tokens = %v, want only pre-error deltas", got.tokens)
	}
}

func TestSession_CancelMidStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := w.(http.Flusher)
		w.Write([]byte("data: {\"token\":\"one \"}\n"))
		f.Flush()
		w.Write([]byte("data: {\"token\":\"two\"}\n"))
		f.Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	rec := newRecorder()
	s := testClient(t, srv.URL).StartStream(context.Background(), "/api/chat", AskRequest{Stream: true}, rec.callbacks())

	// Wait for both deltas before cancelling.
	for i := 0; i < 2; i++ {
		select {
		case <-rec.tokenCh:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for deltas")
		}
	}
	s.Cancel()
	waitDone(t, s)

	got := rec.snapshot()
	if !got.cancelled {
		t.Fatal("want cancellation acknowledgment")
	}
	if got.terminals != 1 {
		t.Errorf("terminal callbacks = %d, want only the cancellation ack", got.terminals)
	}
	if got.completion != nil || got.err != nil {
		t.Error("neither OnComplete nor OnError may fire after cancel")
	}
	if s.Text() != "one two" {
		t.Errorf("accumulator = %q, want exactly the received deltas", s.Text())
	}
	if s.Status() != StatusCancelled {
		t.Errorf("status = %v, want cancelled", s.Status())
	}
}

func TestSession_CancelTwiceIsSafe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	rec := newRecorder()
	s := testClient(t, srv.URL).StartStream(context.Background(), "/api/chat", AskRequest{Stream: true}, rec.callbacks())
	s.Cancel()
	s.Cancel()
	waitDone(t, s)

	if got := rec.snapshot(); got.terminals != 1 {
		t.Errorf("terminal callbacks = %d, want 1", got.terminals)
	}
}

func TestSlot_StartCancelsPrevious(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := w.(http.Flusher)
		w.Write([]byte("data: {\"token\":\"x\"}\n"))
		f.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	var slot Slot

	first := newRecorder()
	s1 := slot.Start(func() *Session {
		return c.StartStream(context.Background(), "/api/chat", AskRequest{Stream: true}, first.callbacks())
	})

	select {
	case <-first.tokenCh:
	case <-time.After(5 * time.Second):
		t.Fatal("first session never started streaming")
	}

	second := newRecorder()
	s2 := slot.Start(func() *Session {
		return c.StartStream(context.Background(), "/api/chat", AskRequest{Stream: true}, second.callbacks())
	})

	waitDone(t, s1)
	if s1.Status() != StatusCancelled {
		t.Errorf("first session status = %v, want cancelled", s1.Status())
	}
	if slot.Active() != s2 {
		t.Error("slot must track the replacement session")
	}
	s2.Cancel()
	waitDone(t, s2)
}
