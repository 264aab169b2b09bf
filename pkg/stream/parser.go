package stream

import (
	"encoding/json"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
)

// LineKind classifies a single event-stream line.
type LineKind int

const (
	// LineSkip is a comment, a blank line, or a line without the data prefix.
	LineSkip LineKind = iota
	// LineDone is the end-of-stream sentinel.
	LineDone
	// LineDelta is a decoded data line. Its delta may be empty.
	LineDelta
	// LineMalformed is a data line whose payload is not valid JSON.
	LineMalformed
)

// Line is a classified event-stream line.
type Line struct {
	Kind  LineKind
	Delta string
	Err   error
}

// ParseLine classifies line and extracts choices[0].delta.content from data lines.
func ParseLine(line string) Line {
	if strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
		return Line{Kind: LineSkip}
	}
	if !strings.HasPrefix(line, llm.DataPrefix) {
		return Line{Kind: LineSkip}
	}

	payload := strings.TrimSpace(line[len(llm.DataPrefix):])
	if payload == llm.DoneSentinel {
		return Line{Kind: LineDone}
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Line{Kind: LineMalformed, Err: err}
	}

	var delta string
	if len(chunk.Choices) > 0 {
		delta = chunk.Choices[0].Delta.Content
	}
	return Line{Kind: LineDelta, Delta: delta}
}

// Parser turns response body chunks into content deltas, in arrival order.
// Once the sentinel is seen it yields nothing further.
type Parser struct {
	decoder *Decoder
	lines   LineBuffer
	done    bool
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{decoder: NewDecoder()}
}

// Done reports whether the end-of-stream sentinel has been processed.
func (p *Parser) Done() bool {
	return p.done
}

// Feed consumes one chunk of body bytes and returns the non-empty deltas of
// every complete line now available. A line whose JSON does not parse is pushed
// back and retried after the next chunk.
func (p *Parser) Feed(chunk []byte) ([]string, error) {
	if p.done {
		return nil, nil
	}

	text, err := p.decoder.Decode(chunk, false)
	if err != nil {
		return nil, err
	}
	if text != "" {
		p.lines.Write(text)
	}

	var deltas []string
	for {
		line, ok := p.lines.Next()
		if !ok {
			return deltas, nil
		}

		parsed := ParseLine(line)
		switch parsed.Kind {
		case LineDone:
			p.done = true
			return deltas, nil
		case LineMalformed:
			p.lines.PushBack(line)
			return deltas, nil
		case LineDelta:
			if parsed.Delta != "" {
				deltas = append(deltas, parsed.Delta)
			}
		}
	}
}

// Flush runs the line logic over whatever remains after the body ended,
// including a last line with no trailing newline. Lines that still do not
// parse are discarded.
func (p *Parser) Flush() []string {
	if p.done {
		return nil
	}

	if text, err := p.decoder.Decode(nil, true); err == nil && text != "" {
		p.lines.Write(text)
	}

	var deltas []string
	for _, line := range p.lines.Drain() {
		parsed := ParseLine(line)
		switch parsed.Kind {
		case LineDone:
			p.done = true
			return deltas
		case LineDelta:
			if parsed.Delta != "" {
				deltas = append(deltas, parsed.Delta)
			}
		}
	}
	return deltas
}
