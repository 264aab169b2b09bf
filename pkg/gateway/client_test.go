package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/gateway"
)

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		client   *gateway.Client
		handler  http.HandlerFunc
		captured map[string]any
		authz    string
	)

	BeforeEach(func() {
		ctx = context.Background()
		captured = nil
		authz = ""
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			authz = r.Header.Get("Authorization")
			Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())
			handler(w, r)
		}))
		client = gateway.New(gateway.Config{
			BaseURL: server.URL + "/v1/",
			APIKey:  "secret",
		}, zap.NewNop())
	})

	AfterEach(func() {
		client.Close()
		server.Close()
	})

	Describe("StreamChat", func() {
		It("returns the upstream body untouched", func() {
			payload := "data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\ndata: [DONE]\n\n"
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				io.WriteString(w, payload)
			}

			body, err := client.StreamChat(ctx, []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: "hello"},
			})
			Expect(err).NotTo(HaveOccurred())
			defer body.Close()

			data, err := io.ReadAll(body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(payload))

			Expect(authz).To(Equal("Bearer secret"))
			Expect(captured["stream"]).To(BeTrue())
			Expect(captured["model"]).To(Equal(gateway.DefaultTextModel))
		})

		DescribeTable("reports non-OK statuses as StatusError",
			func(status int) {
				handler = func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(status)
					io.WriteString(w, `{"error":"nope"}`)
				}

				_, err := client.StreamChat(ctx, nil)

				var se *gateway.StatusError
				Expect(errors.As(err, &se)).To(BeTrue())
				Expect(se.StatusCode).To(Equal(status))
				Expect(se.Body).To(ContainSubstring("nope"))
				Expect(gateway.StatusCode(err)).To(Equal(status))
			},
			Entry("rate limited", http.StatusTooManyRequests),
			Entry("payment required", http.StatusPaymentRequired),
			Entry("server error", http.StatusInternalServerError),
		)
	})

	Describe("GenerateImage", func() {
		It("extracts the image URL and explanation", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":" An eye diagram. ","images":[{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}}]}}]}`)
			}

			result, err := client.GenerateImage(ctx, "draw an eye")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.URL).To(Equal("data:image/png;base64,AAAA"))
			Expect(result.Text).To(Equal("An eye diagram."))

			Expect(captured["model"]).To(Equal(gateway.DefaultImageModel))
			Expect(captured["modalities"]).To(ConsistOf("image", "text"))
		})

		It("returns an empty URL when the model sent no image", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"choices":[{"message":{"content":"I cannot draw that."}}]}`)
			}

			result, err := client.GenerateImage(ctx, "draw")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.URL).To(BeEmpty())
			Expect(result.Text).To(Equal("I cannot draw that."))
		})

		It("reports upstream failures", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}

			_, err := client.GenerateImage(ctx, "draw")
			Expect(gateway.StatusCode(err)).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("Complete", func() {
		It("returns the first choice", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Bonjour"}}]}`)
			}

			text, err := client.Complete(ctx, []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: "Translate hello"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Bonjour"))
			Expect(captured).NotTo(HaveKey("stream"))
		})

		It("fails when there are no choices", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"choices":[]}`)
			}

			_, err := client.Complete(ctx, nil)
			Expect(err).To(MatchError(ContainSubstring("no choices")))
		})
	})

	It("refuses to call without an API key", func() {
		keyless := gateway.New(gateway.Config{BaseURL: server.URL}, zap.NewNop())
		defer keyless.Close()

		_, err := keyless.StreamChat(ctx, nil)
		Expect(err).To(MatchError(gateway.ErrMissingAPIKey))

		_, err = keyless.GenerateImage(ctx, "draw")
		Expect(err).To(MatchError(gateway.ErrMissingAPIKey))

		_, err = keyless.Complete(ctx, nil)
		Expect(err).To(MatchError(gateway.ErrMissingAPIKey))
	})
})
