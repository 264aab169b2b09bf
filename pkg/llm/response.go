package llm

import "io"

// Wire framing of the two reply shapes.
const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"

	DataPrefix   = "data: "
	DoneSentinel = "[DONE]"
)

// Reply is the outcome of a relay turn. It is either an *ImageReply or a *TextStream;
// the transport layer picks the wire encoding.
type Reply interface {
	isReply()
}

// ImageReply is a whole-JSON reply carrying a generated image.
type ImageReply struct {
	Content  string `json:"content"`
	Image    string `json:"image"`
	HasImage bool   `json:"hasImage"`
}

func (*ImageReply) isReply() {}

// TextStream is an upstream event-stream body forwarded without re-encoding.
// The receiver owns Body and must close it.
type TextStream struct {
	Body io.ReadCloser
}

func (*TextStream) isReply() {}
