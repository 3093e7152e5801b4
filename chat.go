package inkwell

import (
	"context"
	"sync"
)

// WireVariant identifies which streaming chat protocol the backend speaks.
// Two variants exist in the wild; both classify into the same StreamEvent
// taxonomy, so the variant only affects the request path.
type WireVariant string

const (
	// VariantLegacy is the single-shot protocol: deltas stream as bare
	// token frames and one final done frame carries sources and metadata.
	VariantLegacy WireVariant = "legacy"

	// VariantMultiEvent is the multi-event protocol: typed content, sources
	// and done frames arrive separately.
	VariantMultiEvent WireVariant = "multi_event"
)

// IsValid returns true if the variant is a known protocol variant.
func (v WireVariant) IsValid() bool {
	switch v {
	case VariantLegacy, VariantMultiEvent:
		return true
	default:
		return false
	}
}

// chatPath returns the streaming endpoint for this variant.
func (v WireVariant) chatPath(notebookID string) string {
	if v == VariantMultiEvent && notebookID != "" {
		return "/api/notebooks/" + notebookID + "/chat"
	}
	return "/api/chat"
}

// Conversation is a chat session bound to one slot: at most one answer
// streams at a time, and sending a new question cancels the previous
// in-flight answer. It maintains message history and the side-channel
// payloads of the last answer; the presentation layer reads snapshots.
type Conversation struct {
	client     *Client
	notebookID string
	variant    WireVariant
	slot       Slot

	mu        sync.Mutex
	history   []ChatMessage
	sources   []Source
	images    []GeneratedImage
	sessionID string
}

// NewConversation creates a conversation against the given notebook.
// notebookID may be empty for the legacy variant's global chat.
func (c *Client) NewConversation(notebookID string, variant WireVariant) *Conversation {
	if !variant.IsValid() {
		variant = VariantMultiEvent
	}
	return &Conversation{
		client:     c,
		notebookID: notebookID,
		variant:    variant,
		sessionID:  c.identity.SessionID,
	}
}

// Send streams an answer to question into the conversation. The caller's
// callbacks observe the stream as usual; the conversation additionally
// records the user turn immediately and the assistant turn (plus sources,
// images and the server session id) on completion. A Send while a previous
// answer is still streaming cancels that answer first.
func (conv *Conversation) Send(ctx context.Context, question string, cb Callbacks) *Session {
	conv.mu.Lock()
	conv.history = append(conv.history, ChatMessage{Role: "user", Content: question})
	req := AskRequest{
		Question:   question,
		NotebookID: conv.notebookID,
		SessionID:  conv.sessionID,
		History:    append([]ChatMessage(nil), conv.history...),
		Stream:     true,
	}
	conv.mu.Unlock()

	wrapped := cb
	wrapped.OnSources = func(sources []Source) {
		conv.mu.Lock()
		conv.sources = sources
		conv.mu.Unlock()
		if cb.OnSources != nil {
			cb.OnSources(sources)
		}
	}
	wrapped.OnImages = func(images []GeneratedImage) {
		conv.mu.Lock()
		conv.images = images
		conv.mu.Unlock()
		if cb.OnImages != nil {
			cb.OnImages(images)
		}
	}
	wrapped.OnComplete = func(c Completion) {
		conv.mu.Lock()
		conv.history = append(conv.history, ChatMessage{Role: "assistant", Content: c.Text})
		if c.Sources != nil {
			conv.sources = c.Sources
		}
		if c.SessionID != "" {
			conv.sessionID = c.SessionID
		}
		conv.mu.Unlock()
		if cb.OnComplete != nil {
			cb.OnComplete(c)
		}
	}

	return conv.slot.Start(func() *Session {
		return conv.client.StartStream(ctx, conv.variant.chatPath(conv.notebookID), req, wrapped)
	})
}

// Cancel aborts the in-flight answer, if any.
func (conv *Conversation) Cancel() {
	conv.slot.Cancel()
}

// History returns a copy of the conversation transcript so far.
func (conv *Conversation) History() []ChatMessage {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]ChatMessage(nil), conv.history...)
}

// LastSources returns the citations from the most recent answer.
func (conv *Conversation) LastSources() []Source {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]Source(nil), conv.sources...)
}

// LastImages returns the images from the most recent answer.
func (conv *Conversation) LastImages() []GeneratedImage {
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]GeneratedImage(nil), conv.images...)
}
