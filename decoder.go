package inkwell

import (
	"bytes"
	"strings"
)

// Frame is one newline-delimited unit of the raw stream. Frames are created
// by the FrameDecoder per logical line and consumed immediately by the
// classifier; they are never persisted.
type Frame struct {
	// Raw is the frame content without the trailing newline
	Raw string
}

// FrameDecoder reassembles an arbitrarily chunked byte stream into complete
// text frames. The server gives no guarantee that a chunk boundary lands on a
// frame boundary (or even on a UTF-8 rune boundary), so the decoder buffers
// raw bytes across Feed calls and only converts to text once a full line is
// available. Splitting on '\n' at the byte level is rune-safe: no multi-byte
// UTF-8 sequence contains 0x0A.
//
// Usage:
//
//	dec := &FrameDecoder{}
//	for each chunk {
//	    for _, f := range dec.Feed(chunk) { ... }
//	}
//	if f, ok := dec.Flush(); ok { ... }
type FrameDecoder struct {
	buf []byte
}

// Feed appends a chunk to the internal buffer and returns every complete
// frame now available, in order. The trailing fragment after the last
// newline (possibly empty) is retained for the next call.
func (d *FrameDecoder) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		frames = append(frames, newFrame(d.buf[:i]))
		d.buf = d.buf[i+1:]
	}
	return frames
}

// Flush emits the buffered remainder as a final frame, if any. The server
// may close the connection without a trailing newline; whatever is left in
// the buffer is still a meaningful frame and must not be dropped.
func (d *FrameDecoder) Flush() (Frame, bool) {
	if len(d.buf) == 0 {
		return Frame{}, false
	}
	f := newFrame(d.buf)
	d.buf = nil
	return f, true
}

// newFrame converts a raw line into a Frame, trimming a trailing '\r' so
// CRLF-delimited streams classify identically to LF-delimited ones.
func newFrame(line []byte) Frame {
	return Frame{Raw: strings.TrimSuffix(string(line), "\r")}
}
