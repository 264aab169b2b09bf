package intent_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/intent"
)

var _ = Describe("Detector", func() {
	var detector *intent.Detector

	BeforeEach(func() {
		detector = intent.NewDetector()
	})

	DescribeTable("routes visual requests",
		func(text string, expected bool) {
			Expect(detector.IsVisualRequest(text)).To(Equal(expected))
		},
		Entry("draw", "draw the structure of an eye", true),
		Entry("upper case", "DRAW a triangle", true),
		Entry("mixed case inside a word", "Can you Illustrate photosynthesis?", true),
		Entry("image of", "give me an image of the heart", true),
		Entry("visualize", "visualize the water cycle", true),
		Entry("chart", "make a pie chart of fruits", true),
		Entry("substring match", "redrawing the map", true),
		Entry("fee structure false positive", "show me the fee structure", true),
		Entry("plain question", "What are your fees?", false),
		Entry("empty text", "", false),
		Entry("image without of", "what image formats work", false),
	)

	It("uses custom keywords when given", func() {
		custom := intent.NewDetector(" Paint ", "")

		Expect(custom.Keywords()).To(Equal([]string{"paint"}))
		Expect(custom.IsVisualRequest("paint a sunset")).To(BeTrue())
		Expect(custom.IsVisualRequest("draw a sunset")).To(BeFalse())
	})

	It("exposes the default keyword set", func() {
		Expect(detector.Keywords()).To(ConsistOf(intent.DefaultKeywords))
	})
})
