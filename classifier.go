package inkwell

import (
	"encoding/json"
	"strings"
)

// Wire protocol constants.
const (
	// dataPrefix marks a frame as carrying a payload. Frames without it
	// (blank keep-alive lines, comments) are ignored.
	dataPrefix = "data: "

	// doneSentinel is the legacy literal end-of-stream marker.
	doneSentinel = "[DONE]"
)

// framePayload is the superset of fields a structured payload may carry,
// across both wire variants. Fields are optional and the server mixes
// camelCase and snake_case for some of them, so both spellings are read and
// normalized here; nothing downstream sniffs payload shapes.
type framePayload struct {
	Type          string                 `json:"type,omitempty"`
	Token         *string                `json:"token,omitempty"`
	Content       *string                `json:"content,omitempty"`
	Images        []GeneratedImage       `json:"images,omitempty"`
	Sources       []Source               `json:"sources,omitempty"`
	Done          bool                   `json:"done,omitempty"`
	Error         *string                `json:"error,omitempty"`
	Phase         *string                `json:"phase,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	SessionIDAlt  string                 `json:"sessionId,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// sessionID returns the session identifier regardless of spelling.
func (p *framePayload) sessionID() string {
	if p.SessionID != "" {
		return p.SessionID
	}
	return p.SessionIDAlt
}

// Classify maps one frame to a StreamEvent. The second return value is false
// for non-data frames (keep-alives, SSE comments), which carry no event.
//
// Classification never fails: a payload that cannot be parsed as JSON is
// treated as a plain-text delta, because some server responses stream raw
// text instead of structured payloads. Unclassifiable input degrades to a
// delta rather than being dropped.
//
// Classify is a pure function of the frame: classifying the same frame twice
// yields the same event.
func Classify(f Frame) (StreamEvent, bool) {
	line := f.Raw
	if line == "" || strings.HasPrefix(line, ":") {
		return StreamEvent{}, false
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return StreamEvent{}, false
	}
	data := strings.TrimPrefix(line, dataPrefix)

	// Legacy end-of-stream sentinel: completion with no metadata.
	if data == doneSentinel {
		return StreamEvent{Completion: &Completion{}}, true
	}

	var p framePayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		// Raw-text protocol: the payload itself is the delta.
		return StreamEvent{Delta: &TextDelta{Text: data}}, true
	}

	switch {
	case p.Error != nil:
		return StreamEvent{Err: &StreamError{Message: *p.Error}}, true

	case p.Done || p.Type == "done":
		return StreamEvent{Completion: &Completion{
			Sources:   p.Sources,
			SessionID: p.sessionID(),
			Metadata:  p.Metadata,
		}}, true

	case len(p.Images) > 0:
		return StreamEvent{Images: p.Images}, true

	case p.Type == "sources" || len(p.Sources) > 0:
		// Multi-event protocol: sources arrive on their own frame and do
		// not terminate the stream.
		return StreamEvent{Sources: p.Sources}, true

	case p.Type == "phase" || p.Phase != nil:
		phase := ""
		if p.Phase != nil {
			phase = *p.Phase
		}
		return StreamEvent{Phase: &phase}, true

	case p.Token != nil:
		return StreamEvent{Delta: &TextDelta{Text: *p.Token}}, true

	case p.Content != nil:
		return StreamEvent{Delta: &TextDelta{Text: *p.Content}}, true
	}

	// Parsed as JSON but matches no known shape. Same degradation rule as
	// unparseable payloads: deliver it as text rather than drop it.
	return StreamEvent{Delta: &TextDelta{Text: data}}, true
}
