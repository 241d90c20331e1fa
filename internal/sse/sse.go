// Package sse implements server-sent-events framing for streaming
// chat-completion responses.
//
// The decoder is push-based: transport code feeds it raw byte chunks in
// whatever sizes the network delivers, and receives back the complete
// `data:` payloads found so far. Partial lines are buffered across feeds,
// so a logical line split anywhere, even mid-rune, decodes identically
// regardless of chunk boundaries.
package sse

import (
	"bytes"
)

// dataPrefix is the only SSE field this protocol uses.
var dataPrefix = []byte("data: ")

// doneSentinel is the payload that terminates a stream.
var doneSentinel = []byte("[DONE]")

// Decoder reassembles line-delimited SSE frames from arbitrary byte chunks.
//
// Thread Safety: Decoder is NOT safe for concurrent use. One decoder is
// owned by exactly one in-flight stream.
type Decoder struct {
	// buf accumulates the trailing partial line between feeds.
	buf []byte

	// done is set once the [DONE] sentinel is seen. Later input is ignored.
	done bool
}

// NewDecoder creates a decoder with an empty line buffer.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes the next raw chunk and returns the payloads of all
// complete `data:` lines it finalized, in arrival order.
//
// Only lines terminated by '\n' are finalized; any trailing partial line
// is carried forward to the next call. Blank lines and lines without the
// `data: ` prefix are ignored. Once the [DONE] sentinel is seen, Feed
// returns nil forever; no further lines are inspected even if present.
//
// The returned slices are copies and remain valid after subsequent feeds.
func (d *Decoder) Feed(p []byte) [][]byte {
	if d.done {
		return nil
	}

	d.buf = append(d.buf, p...)

	var payloads [][]byte
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}

		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]

		payload, ok := parseLine(line)
		if !ok {
			continue
		}
		if bytes.Equal(payload, doneSentinel) {
			d.done = true
			d.buf = nil
			break
		}

		out := make([]byte, len(payload))
		copy(out, payload)
		payloads = append(payloads, out)
	}

	return payloads
}

// Done reports whether the [DONE] sentinel has been seen.
//
// A transport stream that ends without the sentinel is treated as an
// implicit completion by the caller; Done only reports the explicit signal.
func (d *Decoder) Done() bool {
	return d.done
}

// parseLine extracts the payload from one complete line.
// Returns ok=false for blank lines and lines without the data prefix.
func parseLine(line []byte) ([]byte, bool) {
	// Tolerate CRLF framing
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return nil, false
	}
	if !bytes.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	return line[len(dataPrefix):], true
}
