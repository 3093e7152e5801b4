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
	"time"
)

// Client talks to an answer backend. It owns two HTTP clients: a bounded one
// for the simple request/response endpoints, and an unbounded one for event
// streams, which are ended only by the server or by explicit cancellation
// (generation latency is open-ended, so no read deadline is imposed there).
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	identity     Identity
	logger       *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for one-shot requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithIdentity sets the identity sent with conversational requests.
func WithIdentity(id Identity) Option {
	return func(c *Client) { c.identity = id }
}

// WithLogger sets the logger used by the client and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend at baseURL. A fresh random
// identity is minted unless WithIdentity overrides it.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrBackendUnavailable)
	}
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		streamClient: &http.Client{},
		identity:     NewIdentity(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Identity returns the identity this client presents to the backend.
func (c *Client) Identity() Identity {
	return c.identity
}

// doJSON performs a one-shot JSON request/response call. A nil body sends no
// payload; a nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// newAPIError builds an APIError from a non-success response, preferring the
// server's own message ("message" or "error" key) and falling back to the
// HTTP status text when the body is not parseable JSON.
func newAPIError(resp *http.Response, path string) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		Endpoint:   path,
	}
	if resp.StatusCode == http.StatusNotFound {
		apiErr.Err = ErrNotFound
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			apiErr.Message = parsed.Message
		} else if parsed.Error != "" {
			apiErr.Message = parsed.Error
		}
	}
	return apiErr
}

// ===== Notebook registry =====

// ListNotebooks returns all notebooks.
func (c *Client) ListNotebooks(ctx context.Context) ([]Notebook, error) {
	var out []Notebook
	if err := c.doJSON(ctx, http.MethodGet, "/api/notebooks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateNotebook creates a notebook with the given name.
func (c *Client) CreateNotebook(ctx context.Context, name, description string) (*Notebook, error) {
	req := map[string]string{"name": name, "description": description}
	var out Notebook
	if err := c.doJSON(ctx, http.MethodPost, "/api/notebooks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNotebook deletes a notebook and its documents.
func (c *Client) DeleteNotebook(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/notebooks/"+id, nil, nil)
}

// ListDocuments returns the documents in a notebook.
func (c *Client) ListDocuments(ctx context.Context, notebookID string) ([]Document, error) {
	var out []Document
	if err := c.doJSON(ctx, http.MethodGet, "/api/notebooks/"+notebookID+"/documents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDocument removes a document from its notebook.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/documents/"+id, nil, nil)
}

// ===== Connection registry =====

// ListConnections returns all registered database connections.
func (c *Client) ListConnections(ctx context.Context) ([]Connection, error) {
	var out []Connection
	if err := c.doJSON(ctx, http.MethodGet, "/api/connections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConnection registers a database connection.
func (c *Client) CreateConnection(ctx context.Context, conn Connection) (*Connection, error) {
	var out Connection
	if err := c.doJSON(ctx, http.MethodPost, "/api/connections", conn, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConnection removes a registered connection.
func (c *Client) DeleteConnection(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/connections/"+id, nil, nil)
}

// ===== Question answering (synchronous variant) =====

// Ask poses a question and blocks for the complete answer. This is the
// non-streaming sibling of Conversation.Send: the same logical operation,
// returning one JSON object. Callers choose one or the other, never both
// for the same call.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	req.Stream = false
	if req.SessionID == "" {
		req.SessionID = c.identity.SessionID
	}
	var out AskResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/ask", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== Quiz collaborators =====

// StartAttempt begins a quiz attempt, or resumes an incomplete one for the
// same identity.
func (c *Client) StartAttempt(ctx context.Context, req StartAttemptRequest) (*StartAttemptResponse, error) {
	if req.SessionID == "" {
		req.SessionID = c.identity.SessionID
	}
	var out StartAttemptResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/quiz/attempts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer grades one answer within an attempt.
func (c *Client) SubmitAnswer(ctx context.Context, attemptID string, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	var out SubmitAnswerResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/quiz/attempts/"+attemptID+"/answers", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
