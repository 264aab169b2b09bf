package translate_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sashabaranov/go-openai"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/translate"
)

type fakeCompleter struct {
	calls    int
	reply    string
	err      error
	messages []openai.ChatCompletionMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

var _ = Describe("Translator", func() {
	var (
		ctx       context.Context
		completer *fakeCompleter
		cache     *translate.LRUCache
		tr        *translate.Translator
	)

	BeforeEach(func() {
		ctx = context.Background()
		completer = &fakeCompleter{reply: "  Bonjour  "}

		var err error
		cache, err = translate.NewLRUCache(2)
		Expect(err).NotTo(HaveOccurred())
		tr = translate.New(completer, cache)
	})

	It("returns English text unchanged", func() {
		out, err := tr.Translate(ctx, "Hello", "en")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Hello"))
		Expect(completer.calls).To(Equal(0))
	})

	It("treats unknown codes as English", func() {
		out, err := tr.Translate(ctx, "Hello", "de")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Hello"))
		Expect(completer.calls).To(Equal(0))
	})

	It("returns empty text unchanged", func() {
		out, err := tr.Translate(ctx, "   ", "fr")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("   "))
		Expect(completer.calls).To(Equal(0))
	})

	It("asks the model for the target language", func() {
		out, err := tr.Translate(ctx, "Hello", "fr")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("Bonjour"))
		Expect(completer.messages).To(HaveLen(2))
		Expect(completer.messages[0].Content).To(ContainSubstring("French"))
		Expect(completer.messages[1].Content).To(Equal("Hello"))
	})

	It("memoizes by language and text", func() {
		_, err := tr.Translate(ctx, "Hello", "fr")
		Expect(err).NotTo(HaveOccurred())
		_, err = tr.Translate(ctx, "Hello", "fr")
		Expect(err).NotTo(HaveOccurred())
		Expect(completer.calls).To(Equal(1))

		_, err = tr.Translate(ctx, "Hello", "sw")
		Expect(err).NotTo(HaveOccurred())
		Expect(completer.calls).To(Equal(2))
	})

	It("evicts the least recently used entry", func() {
		for _, text := range []string{"a", "b", "c"} {
			_, err := tr.Translate(ctx, text, "fr")
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(cache.Len()).To(Equal(2))

		_, ok := cache.Get("French", "a")
		Expect(ok).To(BeFalse())
	})

	It("does not cache failures", func() {
		completer.err = errors.New("boom")
		_, err := tr.Translate(ctx, "Hello", "fr")
		Expect(err).To(MatchError(ContainSubstring("boom")))
		Expect(cache.Len()).To(Equal(0))
	})

	It("works without a cache", func() {
		tr = translate.New(completer, nil)
		_, err := tr.Translate(ctx, "Hello", "fr")
		Expect(err).NotTo(HaveOccurred())
		_, err = tr.Translate(ctx, "Hello", "fr")
		Expect(err).NotTo(HaveOccurred())
		Expect(completer.calls).To(Equal(2))
	})
})
