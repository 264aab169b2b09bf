package stream

import "strings"

// State is the LineBuffer's position in the line-assembly state machine.
type State int

const (
	// AccumulatingLine means the buffer holds no complete line.
	AccumulatingLine State = iota
	// HaveCompleteLine means Next will return a line.
	HaveCompleteLine
	// AwaitingMoreBytes means a line was pushed back and is retried after the next Write.
	AwaitingMoreBytes
)

func (s State) String() string {
	switch s {
	case AccumulatingLine:
		return "AccumulatingLine"
	case HaveCompleteLine:
		return "HaveCompleteLine"
	case AwaitingMoreBytes:
		return "AwaitingMoreBytes"
	}
	return "Unknown"
}

// LineBuffer splits text on newlines. It has a single pushback slot: a line
// handed back with PushBack is returned again, ahead of the buffered text, once
// more text has been written.
//
// Consumed lines only advance off; the text is compacted on Write.
type LineBuffer struct {
	buf      string
	off      int
	pushback *string
	state    State
}

// State returns the current state.
func (b *LineBuffer) State() State {
	return b.state
}

// Write appends text and leaves AwaitingMoreBytes.
func (b *LineBuffer) Write(text string) {
	b.buf = b.buf[b.off:] + text
	b.off = 0
	b.state = AccumulatingLine
	b.refresh()
}

// Next returns the next complete line without its newline and without a
// trailing carriage return. It returns false when no complete line is
// available or a pushed-back line is waiting for more bytes.
func (b *LineBuffer) Next() (string, bool) {
	if b.state == AwaitingMoreBytes {
		return "", false
	}

	if b.pushback != nil {
		line := *b.pushback
		b.pushback = nil
		b.refresh()
		return line, true
	}

	idx := strings.IndexByte(b.buf[b.off:], '\n')
	if idx < 0 {
		b.state = AccumulatingLine
		return "", false
	}

	line := strings.TrimSuffix(b.buf[b.off:b.off+idx], "\r")
	b.off += idx + 1
	b.refresh()

	return line, true
}

// PushBack parks line in the pushback slot until the next Write.
func (b *LineBuffer) PushBack(line string) {
	b.pushback = &line
	b.state = AwaitingMoreBytes
}

// Drain empties the buffer and returns every remaining line, including a final
// line without a trailing newline. A pushed-back line comes first. Empty lines
// are preserved so callers apply the same skipping rules as for Next.
func (b *LineBuffer) Drain() []string {
	var lines []string
	if b.pushback != nil {
		lines = append(lines, *b.pushback)
		b.pushback = nil
	}

	rest := b.buf[b.off:]
	b.buf, b.off = "", 0
	b.state = AccumulatingLine

	if rest == "" {
		return lines
	}
	for _, raw := range strings.Split(rest, "\n") {
		lines = append(lines, strings.TrimSuffix(raw, "\r"))
	}
	return lines
}

// Buffered returns the number of bytes of unconsumed text, excluding the pushback slot.
func (b *LineBuffer) Buffered() int {
	return len(b.buf) - b.off
}

func (b *LineBuffer) refresh() {
	if b.state == AwaitingMoreBytes {
		return
	}
	if b.pushback != nil || strings.IndexByte(b.buf[b.off:], '\n') >= 0 {
		b.state = HaveCompleteLine
		return
	}
	b.state = AccumulatingLine
}
