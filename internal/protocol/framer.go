package protocol

import (
	"bytes"

	"firestige.xyz/airsniff/internal/cobs"
)

// DefaultMaxSpan bounds the bytes buffered between delimiters. The largest
// legal message (a 2300-byte frame event) stuffs to well under this.
const DefaultMaxSpan = 8 * 1024

// Framer turns a raw byte stream into messages. It is not safe for
// concurrent use; the session feeds it from its reader goroutine only.
//
// Feed may be called with arbitrarily chunked input and yields the same
// messages as a single call with the concatenated input.
type Framer struct {
	buf       []byte
	maxSpan   int
	skipping  bool
	discarded uint64
}

// NewFramer returns a framer that drops spans longer than maxSpan bytes.
// A non-positive maxSpan selects DefaultMaxSpan.
func NewFramer(maxSpan int) *Framer {
	if maxSpan <= 0 {
		maxSpan = DefaultMaxSpan
	}
	return &Framer{maxSpan: maxSpan}
}

// Feed appends chunk to the accumulation buffer and returns every message
// completed by it. Corrupt spans are dropped silently and counted.
func (f *Framer) Feed(chunk []byte) []Message {
	f.buf = append(f.buf, chunk...)

	var out []Message
	start := 0
	for {
		idx := bytes.IndexByte(f.buf[start:], cobs.Delimiter)
		if idx < 0 {
			break
		}
		span := f.buf[start : start+idx]
		start += idx + 1

		if f.skipping {
			// tail of an overlong span
			f.skipping = false
			f.discarded++
			continue
		}
		if len(span) == 0 {
			// idle padding between delimiters
			continue
		}
		if len(span) > f.maxSpan {
			f.discarded++
			continue
		}
		if msg, ok := f.decodeSpan(span); ok {
			out = append(out, msg)
		}
	}

	rest := f.buf[start:]
	if len(rest) > f.maxSpan {
		f.skipping = true
		rest = rest[:0]
	}
	// compact so the buffer does not grow with the stream
	f.buf = append(f.buf[:0], rest...)
	return out
}

func (f *Framer) decodeSpan(span []byte) (Message, bool) {
	decoded, err := cobs.Decode(span)
	if err != nil {
		f.discarded++
		return Message{}, false
	}
	msg, err := DecodeMessage(decoded)
	if err != nil {
		f.discarded++
		return Message{}, false
	}
	return msg, true
}

// Discarded returns how many spans were dropped as malformed or oversized.
func (f *Framer) Discarded() uint64 { return f.discarded }

// Buffered returns the number of bytes waiting for a delimiter.
func (f *Framer) Buffered() int { return len(f.buf) }

// Reset drops any partial span.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.skipping = false
}
