package inkwell

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		frame  string
		wantOK bool
		check  func(t *testing.T, ev StreamEvent)
	}{
		{
			name:   "blank keep-alive line",
			frame:  "",
			wantOK: false,
		},
		{
			name:   "comment line",
			frame:  ": keep-alive",
			wantOK: false,
		},
		{
			name:   "non-data line",
			frame:  "event: message",
			wantOK: false,
		},
		{
			name:   "legacy sentinel",
			frame:  "data: [DONE]",
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Completion == nil {
					t.Fatal("want Completion event")
				}
				if ev.Completion.SessionID != "" || ev.Completion.Metadata != nil {
					t.Error("sentinel completion must carry no metadata")
				}
			},
		},
		{
			name:   "token delta",
			frame:  `data: {"token":"Hel"}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Delta == nil || ev.Delta.Text != "Hel" {
					t.Errorf("Delta = %+v, want text %q", ev.Delta, "Hel")
				}
			},
		},
		{
			name:   "content delta",
			frame:  `data: {"type":"content","content":"lo"}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Delta == nil || ev.Delta.Text != "lo" {
					t.Errorf("Delta = %+v, want text %q", ev.Delta, "lo")
				}
			},
		},
		{
			name:   "empty token is still a delta",
			frame:  `data: {"token":""}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Delta == nil || ev.Delta.Text != "" {
					t.Errorf("Delta = %+v, want empty text delta", ev.Delta)
				}
			},
		},
		{
			name:   "images side channel",
			frame:  `data: {"images":[{"url":"http://x/1.png","mime_type":"image/png"}]}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if len(ev.Images) != 1 || ev.Images[0].URL != "http://x/1.png" {
					t.Errorf("Images = %+v, want one image", ev.Images)
				}
			},
		},
		{
			name:   "typed sources side channel",
			frame:  `data: {"type":"sources","sources":[{"filename":"a.pdf"}]}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.IsTerminal() {
					t.Error("sources frame must not be terminal")
				}
				if len(ev.Sources) != 1 || ev.Sources[0].Filename != "a.pdf" {
					t.Errorf("Sources = %+v, want a.pdf", ev.Sources)
				}
			},
		},
		{
			name:   "typed done with session id",
			frame:  `data: {"type":"done","session_id":"s1"}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Completion == nil || ev.Completion.SessionID != "s1" {
					t.Errorf("Completion = %+v, want session id s1", ev.Completion)
				}
			},
		},
		{
			name:   "camelCase session id",
			frame:  `data: {"type":"done","sessionId":"s2"}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Completion == nil || ev.Completion.SessionID != "s2" {
					t.Errorf("Completion = %+v, want session id s2", ev.Completion)
				}
			},
		},
		{
			name:   "legacy done with sources and metadata",
			frame:  `data: {"done":true,"sources":[{"filename":"b.pdf"}],"metadata":{"model":"m"}}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Completion == nil {
					t.Fatal("want Completion event")
				}
				if len(ev.Completion.Sources) != 1 {
					t.Errorf("Sources = %+v, want one", ev.Completion.Sources)
				}
				if ev.Completion.Metadata["model"] != "m" {
					t.Errorf("Metadata = %+v, want model=m", ev.Completion.Metadata)
				}
			},
		},
		{
			name:   "error payload",
			frame:  `data: {"error":"model exploded"}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Err == nil || ev.Err.Message != "model exploded" {
					t.Errorf("Err = %+v, want message verbatim", ev.Err)
				}
			},
		},
		{
			name:   "phase label",
			frame:  `data: {"type":"phase","phase":"validating"}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Phase == nil || *ev.Phase != "validating" {
					t.Errorf("Phase = %v, want validating", ev.Phase)
				}
			},
		},
		{
			name:   "unparseable payload degrades to text delta",
			frame:  `data: this is just raw text`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Delta == nil || ev.Delta.Text != "this is just raw text" {
					t.Errorf("Delta = %+v, want raw payload", ev.Delta)
				}
			},
		},
		{
			name:   "unknown JSON shape degrades to text delta",
			frame:  `data: {"something":"else"}`,
			wantOK: true,
			check: func(t *testing.T, ev StreamEvent) {
				if ev.Delta == nil || ev.Delta.Text != `{"something":"else"}` {
					t.Errorf("Delta = %+v, want raw payload", ev.Delta)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Classify(Frame{Raw: tt.frame})
			if ok != tt.wantOK {
				t.Fatalf("Classify() ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.check != nil {
				tt.check(t, ev)
			}
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	frames := []string{
		`data: {"token":"Hel"}`,
		`data: {"type":"sources","sources":[{"filename":"a.pdf"}]}`,
		`data: [DONE]`,
		`data: raw text`,
		`data: {"error":"boom"}`,
	}
	for _, raw := range frames {
		first, ok1 := Classify(Frame{Raw: raw})
		second, ok2 := Classify(Frame{Raw: raw})
		if ok1 != ok2 || !reflect.DeepEqual(first, second) {
			t.Errorf("Classify(%q) not idempotent: %+v vs %+v", raw, first, second)
		}
	}
}

// TestPipeline_ChunkedTokenThenSentinel runs the decoder and classifier
// together over a stream whose chunk boundaries fall mid-frame.
func TestPipeline_ChunkedTokenThenSentinel(t *testing.T) {
	chunks := [][]byte{
		[]byte("dat"),
		[]byte("a: {\"token\":\"Hel"),
		[]byte("lo\"}\n"),
		[]byte("data: [DONE]\n"),
	}

	var events []StreamEvent
	dec := &FrameDecoder{}
	for _, chunk := range chunks {
		for _, f := range dec.Feed(chunk) {
			if ev, ok := Classify(f); ok {
				events = append(events, ev)
			}
		}
	}
	if f, ok := dec.Flush(); ok {
		if ev, ok := Classify(f); ok {
			events = append(events, ev)
		}
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Delta == nil || events[0].Delta.Text != "Hello" {
		t.Errorf("first event = %+v, want Delta(Hello)", events[0])
	}
	if events[1].Completion == nil {
		t.Errorf("second event = %+v, want Completion", events[1])
	}
}

// TestPipeline_SourcesThenDone covers the multi-event protocol ordering.
func TestPipeline_SourcesThenDone(t *testing.T) {
	chunks := [][]byte{
		[]byte("data: {\"type\":\"sources\",\"sources\":[{\"filename\":\"a.pdf\"}]}\n"),
		[]byte("data: {\"type\":\"done\",\"session_id\":\"s1\"}\n"),
	}

	var events []StreamEvent
	dec := &FrameDecoder{}
	for _, chunk := range chunks {
		for _, f := range dec.Feed(chunk) {
			if ev, ok := Classify(f); ok {
				events = append(events, ev)
			}
		}
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if len(events[0].Sources) != 1 || events[0].Sources[0].Filename != "a.pdf" {
		t.Errorf("first event = %+v, want sources side channel", events[0])
	}
	if events[1].Completion == nil || events[1].Completion.SessionID != "s1" {
		t.Errorf("second event = %+v, want Completion with session s1", events[1])
	}
}
