package inkwell

import (
	"context"
	"sync"
)

// QueryPhase is the linear phase sequence of one natural-language query run.
type QueryPhase string

const (
	QueryIdle       QueryPhase = "idle"
	QueryConnecting QueryPhase = "connecting"
	QueryGenerating QueryPhase = "generating"
	QueryValidating QueryPhase = "validating"
	QueryExecuting  QueryPhase = "executing"
	QueryComplete   QueryPhase = "complete"
	QueryErrored    QueryPhase = "error"
)

// busy returns true while a run is in flight and a new submission must be
// rejected.
func (p QueryPhase) busy() bool {
	switch p {
	case QueryIdle, QueryComplete, QueryErrored:
		return false
	default:
		return true
	}
}

// QueryRequest is the streaming request body for query generation.
type QueryRequest struct {
	ConnectionID string `json:"connection_id"`
	Prompt       string `json:"prompt"`
	SessionID    string `json:"session_id,omitempty"`
	Stream       bool   `json:"stream"`
}

// QueryResult is the terminal result of a successful run: the generated
// query text plus whatever the backend executed.
type QueryResult struct {
	// Query is the generated query text (the accumulated stream)
	Query string

	// Columns is the result set's column order, if the backend ran the query
	Columns []string

	// Rows is the executed result set
	Rows []map[string]interface{}

	// Metadata contains execution metadata (row counts, timings)
	Metadata map[string]interface{}
}

// QueryState is a read-only snapshot for the presentation layer.
type QueryState struct {
	Phase  QueryPhase
	Prompt string
	Result *QueryResult
	Err    error
}

// QueryWorkflow drives one-shot natural-language query execution over a
// stream session. Phase transitions are driven by explicit phase labels the
// backend emits mid-stream, never inferred from timing. The phase does not
// auto-reset on completion; a fresh Submit leaves QueryComplete.
//
// All mutation happens through Submit, Cancel and the session callbacks;
// external code only reads snapshots via State.
type QueryWorkflow struct {
	client   *Client
	slot     Slot
	onChange func(QueryState)

	mu     sync.Mutex
	phase  QueryPhase
	prompt string
	result *QueryResult
	err    error
}

// NewQueryWorkflow creates an idle workflow. onChange, if non-nil, receives
// a snapshot after every phase transition (on the session's goroutine).
func (c *Client) NewQueryWorkflow(onChange func(QueryState)) *QueryWorkflow {
	return &QueryWorkflow{
		client:   c,
		onChange: onChange,
		phase:    QueryIdle,
	}
}

// State returns a snapshot of the workflow.
func (w *QueryWorkflow) State() QueryState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return QueryState{Phase: w.phase, Prompt: w.prompt, Result: w.result, Err: w.err}
}

// Submit starts a run for prompt against the given connection. Returns
// ErrSessionBusy while a previous run is still in flight: two queries must
// never share the one result slot.
func (w *QueryWorkflow) Submit(ctx context.Context, connectionID, prompt string) error {
	w.mu.Lock()
	if w.phase.busy() {
		w.mu.Unlock()
		return ErrSessionBusy
	}
	w.phase = QueryConnecting
	w.prompt = prompt
	w.result = nil
	w.err = nil
	w.mu.Unlock()
	w.notify()

	req := QueryRequest{
		ConnectionID: connectionID,
		Prompt:       prompt,
		SessionID:    w.client.identity.SessionID,
		Stream:       true,
	}

	w.slot.Start(func() *Session {
		return w.client.StartStream(ctx, "/api/query", req, Callbacks{
			OnPhase:     w.handlePhase,
			OnComplete:  w.handleComplete,
			OnError:     w.handleError,
			OnCancelled: w.handleCancelled,
		})
	})
	return nil
}

// Cancel aborts the in-flight run and returns the workflow to idle.
// No-op in terminal or idle phases.
func (w *QueryWorkflow) Cancel() {
	w.slot.Cancel()
}

// handlePhase applies a backend-emitted phase label. Unknown labels are
// ignored rather than corrupting the phase sequence.
func (w *QueryWorkflow) handlePhase(label string) {
	next := QueryPhase(label)
	switch next {
	case QueryGenerating, QueryValidating, QueryExecuting:
	default:
		w.client.logger.Debug("ignoring unknown query phase label", "label", label)
		return
	}

	w.mu.Lock()
	if !w.phase.busy() {
		w.mu.Unlock()
		return
	}
	w.phase = next
	w.mu.Unlock()
	w.notify()
}

func (w *QueryWorkflow) handleComplete(c Completion) {
	result := &QueryResult{
		Query:    c.Text,
		Metadata: c.Metadata,
	}
	if c.Metadata != nil {
		if cols, ok := c.Metadata["columns"].([]interface{}); ok {
			for _, col := range cols {
				if s, ok := col.(string); ok {
					result.Columns = append(result.Columns, s)
				}
			}
		}
		if rows, ok := c.Metadata["rows"].([]interface{}); ok {
			for _, row := range rows {
				if m, ok := row.(map[string]interface{}); ok {
					result.Rows = append(result.Rows, m)
				}
			}
		}
	}

	w.mu.Lock()
	w.phase = QueryComplete
	w.result = result
	w.mu.Unlock()
	w.notify()
}

func (w *QueryWorkflow) handleError(err error) {
	w.mu.Lock()
	w.phase = QueryErrored
	w.err = err
	w.mu.Unlock()
	w.notify()
}

func (w *QueryWorkflow) handleCancelled() {
	w.mu.Lock()
	w.phase = QueryIdle
	w.mu.Unlock()
	w.notify()
}

func (w *QueryWorkflow) notify() {
	if w.onChange != nil {
		w.onChange(w.State())
	}
}
