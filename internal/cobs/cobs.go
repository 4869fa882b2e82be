// Package cobs implements Consistent Overhead Byte Stuffing.
//
// Encoded output never contains 0x00, so a single zero byte can delimit
// frames on a byte stream. Overhead is at most one byte per 254 bytes of
// input, plus one.
package cobs

import (
	"errors"
	"fmt"
)

// Delimiter is the byte removed from encoded output.
const Delimiter byte = 0x00

// maxRun is the longest literal run a single code byte can announce.
const maxRun = 0xFF

var (
	// ErrMalformed is the parent of every decode failure.
	ErrMalformed = errors.New("cobs: malformed input")

	ErrZeroByte  = fmt.Errorf("%w: zero code byte", ErrMalformed)
	ErrTruncated = fmt.Errorf("%w: truncated run", ErrMalformed)
)

// MaxEncodedLen returns the worst-case encoded size of n input bytes.
func MaxEncodedLen(n int) int {
	return n + n/254 + 1
}

// Encode stuffs p. The result is never empty: an empty input encodes to a
// single code byte.
func Encode(p []byte) []byte {
	out := make([]byte, 1, MaxEncodedLen(len(p)))
	codeIdx := 0
	code := byte(1)

	for _, b := range p {
		if b == Delimiter {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
			continue
		}
		out = append(out, b)
		code++
		if code == maxRun {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
		}
	}

	out[codeIdx] = code
	return out
}

// Decode reverses Encode. The input must not include the framing delimiters.
func Decode(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	i := 0
	for i < len(b) {
		code := b[i]
		i++
		if code == 0 {
			return nil, fmt.Errorf("%w at offset %d", ErrZeroByte, i-1)
		}
		n := int(code) - 1
		if i+n > len(b) {
			return nil, fmt.Errorf("%w: code 0x%02x needs %d bytes, %d left", ErrTruncated, code, n, len(b)-i)
		}
		out = append(out, b[i:i+n]...)
		i += n
		if code < maxRun && i < len(b) {
			out = append(out, Delimiter)
		}
	}
	return out, nil
}
