package inkwell

// StreamEvent is the classified, protocol-agnostic representation of one wire
// frame. Exactly one of the pointer/slice fields is populated per event.
//
// Event flow for a session:
//
//	zero or more Delta / Images / Sources / Phase events
//	followed by exactly one Completion or Err event
//
// Both wire variants (the legacy single-shot "done" protocol and the
// multi-event content/sources/done protocol) are normalized into this one
// taxonomy, so consumers never branch on the protocol variant.
type StreamEvent struct {
	// Delta contains an incremental piece of generated text (nil otherwise)
	Delta *TextDelta

	// Images contains generated/retrieved images delivered alongside the
	// answer (nil otherwise). Non-terminal side channel.
	Images []GeneratedImage

	// Sources contains source citations for the answer (nil otherwise).
	// Non-terminal side channel: in the multi-event protocol sources arrive
	// before the done frame, in the legacy protocol they ride on Completion.
	Sources []Source

	// Phase contains an explicit workflow phase label emitted mid-stream
	// (nil otherwise). Non-terminal side channel, consumed by the query
	// workflow state machine.
	Phase *string

	// Completion contains terminal success data when the stream finishes
	// (nil until then)
	Completion *Completion

	// Err contains a terminal application-level error from the server
	// (nil if successful)
	Err *StreamError
}

// IsTerminal returns true if this event ends the session.
func (e *StreamEvent) IsTerminal() bool {
	return e.Completion != nil || e.Err != nil
}

// TextDelta is an incremental piece of generated text.
type TextDelta struct {
	// Text is the raw delta content, appended verbatim to the accumulator
	Text string
}

// Completion is the terminal success event for a stream session.
//
// The classifier fills in everything it can read off the wire (sources,
// session id, metadata); the session owns the accumulator and fills in Text
// before dispatching to callbacks.
type Completion struct {
	// Text is the full accumulated answer text
	Text string

	// Sources contains source citations, if the server sent any
	// (either on the done frame or via an earlier sources frame)
	Sources []Source

	// SessionID is the server-side conversation identifier, if provided
	SessionID string

	// Metadata contains protocol-specific completion data (row sets,
	// execution timings, model info). Keys are server-defined.
	Metadata map[string]interface{}

	// Truncated is true when the session synthesized this completion because
	// the stream ended without a terminal frame. The accumulated text is
	// still delivered; callers that care can distinguish the two.
	Truncated bool
}

// GeneratedImage is an image payload delivered on the image side channel.
type GeneratedImage struct {
	// URL locates the image (may be a data: URL for inline payloads)
	URL string `json:"url,omitempty"`

	// Data contains base64 image bytes when the server inlines the image
	Data string `json:"data,omitempty"`

	// MimeType is the image content type (e.g. "image/png")
	MimeType string `json:"mime_type,omitempty"`

	// Caption is an optional server-provided description
	Caption string `json:"caption,omitempty"`
}

// Source is a citation pointing at the document material an answer was
// grounded on.
type Source struct {
	// Filename is the source document name
	Filename string `json:"filename,omitempty"`

	// Title is a display title, if distinct from the filename
	Title string `json:"title,omitempty"`

	// Page is the 1-based page number within the document (0 if unknown)
	Page int `json:"page,omitempty"`

	// Snippet is the matched excerpt
	Snippet string `json:"snippet,omitempty"`

	// Score is the retrieval relevance score (0 if the server omits it)
	Score float64 `json:"score,omitempty"`
}
