// Package stream incrementally parses the line-oriented event stream produced by
// the chat relay into content deltas.
package stream

import (
	"errors"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder converts UTF-8 bytes arriving in arbitrary chunks into text. A code
// point split across chunks is held back until its remaining bytes arrive.
// Invalid sequences decode to U+FFFD.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode returns the text for all complete code points in the pending bytes plus
// chunk. With atEOF set, an incomplete trailing sequence is emitted as U+FFFD.
func (d *Decoder) Decode(chunk []byte, atEOF bool) (string, error) {
	src := append(d.pending, chunk...)
	d.pending = nil
	if len(src) == 0 {
		return "", nil
	}

	// An invalid byte expands to the three-byte replacement character.
	dst := make([]byte, 3*len(src))
	nDst, nSrc, err := d.t.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		return "", err
	}
	if nSrc < len(src) {
		d.pending = append([]byte(nil), src[nSrc:]...)
	}

	return string(dst[:nDst]), nil
}

// Pending reports how many bytes are held back waiting for the rest of a code point.
func (d *Decoder) Pending() int {
	return len(d.pending)
}
