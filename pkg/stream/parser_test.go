package stream_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/stream"
)

func dataLine(content string) string {
	payload, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	Expect(err).NotTo(HaveOccurred())
	return "data: " + string(payload) + "\n"
}

// feedAll feeds body to a fresh parser in the given chunks, flushes, and
// returns the concatenated deltas.
func feedAll(chunks [][]byte) (string, *stream.Parser) {
	p := stream.NewParser()
	var out strings.Builder
	for _, c := range chunks {
		deltas, err := p.Feed(c)
		Expect(err).NotTo(HaveOccurred())
		for _, d := range deltas {
			out.WriteString(d)
		}
	}
	for _, d := range p.Flush() {
		out.WriteString(d)
	}
	return out.String(), p
}

func splitAt(body []byte, points ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, pt := range points {
		chunks = append(chunks, body[prev:pt])
		prev = pt
	}
	return append(chunks, body[prev:])
}

var _ = Describe("ParseLine", func() {
	DescribeTable("classifies lines",
		func(line string, kind stream.LineKind, delta string) {
			parsed := stream.ParseLine(line)
			Expect(parsed.Kind).To(Equal(kind))
			Expect(parsed.Delta).To(Equal(delta))
		},
		Entry("comment", ": keep-alive", stream.LineSkip, ""),
		Entry("blank", "", stream.LineSkip, ""),
		Entry("whitespace", "   ", stream.LineSkip, ""),
		Entry("event name", "event: message", stream.LineSkip, ""),
		Entry("data without space", `data:{"choices":[]}`, stream.LineSkip, ""),
		Entry("sentinel", "data: [DONE]", stream.LineDone, ""),
		Entry("sentinel with padding", "data:  [DONE]  ", stream.LineDone, ""),
		Entry("delta", `data: {"choices":[{"delta":{"content":"Hi"}}]}`, stream.LineDelta, "Hi"),
		Entry("role only delta", `data: {"choices":[{"delta":{"role":"assistant"}}]}`, stream.LineDelta, ""),
		Entry("no choices", `data: {"choices":[]}`, stream.LineDelta, ""),
		Entry("partial json", `data: {"choi`, stream.LineMalformed, ""),
	)

	It("keeps the decode error for malformed lines", func() {
		Expect(stream.ParseLine(`data: {"choi`).Err).To(HaveOccurred())
	})
})

var _ = Describe("Parser", func() {
	fragments := []string{"Hello", ", ", "wörld ", "世界 ", "👋", "\nnew line"}

	buildBody := func() []byte {
		var b strings.Builder
		b.WriteString(": gateway keep-alive\n")
		for i, f := range fragments {
			b.WriteString(dataLine(f))
			if i%2 == 0 {
				b.WriteString("\r\n")
			}
		}
		b.WriteString("data: [DONE]\n")
		return []byte(b.String())
	}

	expected := strings.Join(fragments, "")

	It("folds all fragments from a single chunk", func() {
		out, p := feedAll([][]byte{buildBody()})
		Expect(out).To(Equal(expected))
		Expect(p.Done()).To(BeTrue())
	})

	It("folds identically for every two-way split of the body", func() {
		body := buildBody()
		for i := 0; i <= len(body); i++ {
			out, _ := feedAll(splitAt(body, i))
			Expect(out).To(Equal(expected), fmt.Sprintf("split at byte %d", i))
		}
	})

	It("folds identically when fed one byte at a time", func() {
		body := buildBody()
		chunks := make([][]byte, len(body))
		for i := range body {
			chunks[i] = body[i : i+1]
		}
		out, _ := feedAll(chunks)
		Expect(out).To(Equal(expected))
	})

	It("folds identically for random chunkings", func() {
		body := buildBody()
		rng := rand.New(rand.NewSource(42))
		for round := 0; round < 200; round++ {
			var points []int
			for pos := rng.Intn(7) + 1; pos < len(body); pos += rng.Intn(13) + 1 {
				points = append(points, pos)
			}
			out, _ := feedAll(splitAt(body, points...))
			Expect(out).To(Equal(expected), fmt.Sprintf("round %d", round))
		}
	})

	It("does not lose a fragment split mid JSON", func() {
		p := stream.NewParser()

		deltas, err := p.Feed([]byte(`data: {"choi`))
		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(BeEmpty())

		deltas, err = p.Feed([]byte(`ces":[{"delta":{"content":"hi"}}]}` + "\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(Equal([]string{"hi"}))

		Expect(p.Flush()).To(BeEmpty())
	})

	It("stops at the sentinel even when more data follows in the same chunk", func() {
		body := dataLine("one") + "data: [DONE]\n" + dataLine("two") + dataLine("three")
		p := stream.NewParser()

		deltas, err := p.Feed([]byte(body))
		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(Equal([]string{"one"}))
		Expect(p.Done()).To(BeTrue())

		deltas, err = p.Feed([]byte(dataLine("four")))
		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(BeEmpty())
		Expect(p.Flush()).To(BeEmpty())
	})

	It("stops at a sentinel reached during the final flush", func() {
		body := dataLine("a") + "data: {bad}\n" + "data: [DONE]\n" + dataLine("z")
		out, p := feedAll([][]byte{[]byte(body)})
		Expect(out).To(Equal("a"))
		Expect(p.Done()).To(BeTrue())
	})

	Context("when the stream ends without a sentinel", func() {
		It("flushes a complete last line that had no newline", func() {
			body := dataLine("a") + strings.TrimSuffix(dataLine("b"), "\n")
			out, p := feedAll([][]byte{[]byte(body)})
			Expect(out).To(Equal("ab"))
			Expect(p.Done()).To(BeFalse())
		})

		It("discards an incomplete last line", func() {
			body := dataLine("a") + `data: {"choices":[{"delta":{"content":"lost`
			out, _ := feedAll([][]byte{[]byte(body)})
			Expect(out).To(Equal("a"))
		})
	})

	It("parks a malformed line and keeps later lines for the final flush", func() {
		p := stream.NewParser()

		deltas, err := p.Feed([]byte(dataLine("a") + "data: {oops}\n" + dataLine("b")))
		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(Equal([]string{"a"}))

		deltas, err = p.Feed([]byte(dataLine("c")))
		Expect(err).NotTo(HaveOccurred())
		Expect(deltas).To(BeEmpty())

		Expect(p.Flush()).To(Equal([]string{"b", "c"}))
	})

	It("ignores empty deltas", func() {
		body := `data: {"choices":[{"delta":{"role":"assistant","content":""}}]}` + "\n" + dataLine("x")
		out, _ := feedAll([][]byte{[]byte(body)})
		Expect(out).To(Equal("x"))
	})
})
