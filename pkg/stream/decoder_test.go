package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/stream"
)

var _ = Describe("Decoder", func() {
	var decoder *stream.Decoder

	BeforeEach(func() {
		decoder = stream.NewDecoder()
	})

	It("passes ASCII through", func() {
		text, err := decoder.Decode([]byte("hello"), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("hello"))
		Expect(decoder.Pending()).To(Equal(0))
	})

	It("holds back a code point split across chunks", func() {
		euro := []byte("€") // three bytes

		first, err := decoder.Decode(append([]byte("a"), euro[:2]...), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(first).To(Equal("a"))
		Expect(decoder.Pending()).To(Equal(2))

		second, err := decoder.Decode(append(euro[2:], 'b'), false)
		Expect(err).NotTo(HaveOccurred())
		Expect(second).To(Equal("€b"))
		Expect(decoder.Pending()).To(Equal(0))
	})

	It("reassembles a four byte code point fed one byte at a time", func() {
		wave := []byte("👋")
		var out string
		for _, b := range wave {
			text, err := decoder.Decode([]byte{b}, false)
			Expect(err).NotTo(HaveOccurred())
			out += text
		}
		Expect(out).To(Equal("👋"))
	})

	It("replaces an incomplete sequence at end of input", func() {
		_, err := decoder.Decode([]byte("é")[:1], false)
		Expect(err).NotTo(HaveOccurred())

		text, err := decoder.Decode(nil, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("�"))
	})

	It("replaces invalid bytes", func() {
		text, err := decoder.Decode([]byte{'a', 0xff, 'b'}, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("a�b"))
	})
})
