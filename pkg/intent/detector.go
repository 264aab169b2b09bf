// Package intent decides whether a chat message asks for a visual answer.
//
// Detection is a plain case-insensitive substring match over a fixed keyword
// list. False positives such as "show me the fee structure" are expected.
package intent

import "strings"

// DefaultKeywords are the phrases that route a message to image generation.
var DefaultKeywords = []string{
	"draw",
	"show",
	"illustrate",
	"diagram",
	"structure",
	"picture",
	"sketch",
	"graph",
	"chart",
	"visualize",
	"depict",
	"image of",
}

// Detector matches text against a keyword list.
type Detector struct {
	keywords []string
}

// NewDetector creates a Detector. With no keywords, DefaultKeywords are used.
func NewDetector(keywords ...string) *Detector {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}

	return &Detector{keywords: lowered}
}

// IsVisualRequest reports whether text contains any keyword.
func (d *Detector) IsVisualRequest(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range d.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Keywords returns a copy of the detector's keywords.
func (d *Detector) Keywords() []string {
	out := make([]string, len(d.keywords))
	copy(out, d.keywords)
	return out
}
