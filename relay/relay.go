// Package relay provides the school chat relay: a stateless HTTP service that
// answers each chat turn either with a generated image or with the gateway's
// event stream forwarded verbatim.
package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sashabaranov/go-openai"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/gateway"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/intent"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/prompt"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/translate"
)

const streamBufferSize = 4096

var errNoImage = errors.New("image model returned no image")

// Relay mediates between chat clients and the LLM gateway. It holds no
// conversation state; every request carries the full history.
type Relay struct {
	config     Config
	gateway    *gateway.Client
	facts      prompt.Source
	detector   *intent.Detector
	translator *translate.Translator
	metrics    *metrics
	logger     *zap.Logger
	server     *fiber.App

	stopWatch context.CancelFunc
}

// Option configures a Relay.
type Option func(*Relay)

// WithFacts overrides the facts source. It takes precedence over Config.FactsPath.
func WithFacts(src prompt.Source) Option {
	return func(r *Relay) { r.facts = src }
}

// WithDetector overrides the visual request detector.
func WithDetector(d *intent.Detector) Option {
	return func(r *Relay) { r.detector = d }
}

// WithTranslationCache overrides the translation cache.
func WithTranslationCache(cache translate.Cache) Option {
	return func(r *Relay) { r.translator.Cache = cache }
}

// New creates a new Relay.
func New(config Config, logger *zap.Logger, opts ...Option) (*Relay, error) {
	if config.UpstreamTimeout <= 0 {
		config.UpstreamTimeout = 5 * time.Minute
	}

	gw := gateway.New(gateway.Config{
		BaseURL:        config.GatewayURL,
		APIKey:         config.APIKey,
		TextModel:      config.TextModel,
		ImageModel:     config.ImageModel,
		RequestTimeout: config.RequestTimeout,
	}, logger)

	cache, err := translate.NewLRUCache(config.TranslationCacheSize)
	if err != nil {
		return nil, err
	}

	r := &Relay{
		config:     config,
		gateway:    gw,
		detector:   intent.NewDetector(),
		translator: translate.New(gw, cache),
		metrics:    newMetrics(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.facts == nil {
		if err := r.loadFacts(); err != nil {
			gw.Close()
			return nil, err
		}
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ErrorHandler:          r.handleError,
	})
	app.Use(recover.New())
	// An empty AllowHeaders echoes whatever headers the preflight asks for.
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
	}))

	app.Post("/chat", r.handleChat)
	app.Post("/translate", r.handleTranslate)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
	app.Get("/metrics", r.metrics.handler())

	r.server = app
	return r, nil
}

// loadFacts picks the built-in facts, or watches Config.FactsPath.
func (r *Relay) loadFacts() error {
	if r.config.FactsPath == "" {
		r.facts = prompt.NewStatic(nil)
		r.logger.Info("using built-in school facts")
		return nil
	}

	w, err := prompt.NewWatcher(r.config.FactsPath, r.logger)
	if err != nil {
		return fmt.Errorf("loading school facts: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.stopWatch = cancel
	go w.Run(ctx)

	r.facts = w
	r.logger.Info("watching school facts", zap.String("path", r.config.FactsPath))
	return nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("gateway", r.config.GatewayURL),
	)
	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener serves on an existing listener.
func (r *Relay) RunWithListener(ln net.Listener) error {
	r.logger.Info("starting relay server",
		zap.String("listen", ln.Addr().String()),
		zap.String("gateway", r.config.GatewayURL),
	)
	return r.server.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (r *Relay) Shutdown(ctx context.Context) error {
	return r.server.ShutdownWithContext(ctx)
}

// Close releases the gateway client and stops watching the facts file.
func (r *Relay) Close() error {
	if r.stopWatch != nil {
		r.stopWatch()
	}
	return r.gateway.Close()
}

// Respond answers one chat turn. A visual request first tries the image model;
// any failure there falls through silently to the streamed text reply.
func (r *Relay) Respond(ctx context.Context, req *llm.ChatRequest) (llm.Reply, error) {
	last := req.LastContent()

	if r.detector.IsVisualRequest(last) {
		reply, err := r.generateImage(ctx, last, req.Language)
		if err == nil {
			return reply, nil
		}
		r.metrics.imageFallbacks.Inc()
		r.logger.Warn("image generation failed, falling back to text", zap.Error(err))
	}

	body, err := r.gateway.StreamChat(ctx, r.buildMessages(req))
	if err != nil {
		return nil, err
	}
	return &llm.TextStream{Body: body}, nil
}

func (r *Relay) generateImage(ctx context.Context, request, language string) (*llm.ImageReply, error) {
	result, err := r.gateway.GenerateImage(ctx, prompt.ImagePrompt(request, language))
	if err != nil {
		return nil, err
	}
	if result.URL == "" {
		return nil, errNoImage
	}

	caption := result.Text
	if caption == "" {
		caption = llm.MsgDefaultCaption
	}
	return &llm.ImageReply{Content: caption, Image: result.URL, HasImage: true}, nil
}

// buildMessages prepends the system prompt to the client's history.
func (r *Relay) buildMessages(req *llm.ChatRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: prompt.SystemPrompt(r.facts.Facts(), req.Language),
	})
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return messages
}

// handleChat answers POST /chat with either a JSON image reply or the
// gateway's event stream.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		r.logger.Error("failed to parse request", zap.Error(err))
		r.metrics.requests.WithLabelValues(branchNone, outcomeError).Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
	}

	r.logger.Debug("received chat request",
		zap.Int("message_count", len(req.Messages)),
		zap.String("language", req.Language),
	)

	// The stream outlives this handler, so the turn gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), r.config.UpstreamTimeout)

	reply, err := r.Respond(ctx, &req)
	if err != nil {
		cancel()
		r.metrics.requests.WithLabelValues(branchText, outcomeError).Inc()
		return r.writeError(c, err)
	}

	switch reply := reply.(type) {
	case *llm.ImageReply:
		cancel()
		r.metrics.requests.WithLabelValues(branchImage, outcomeOK).Inc()
		r.metrics.duration.WithLabelValues(branchImage).Observe(time.Since(startTime).Seconds())
		r.logger.Info("image reply", zap.Duration("duration", time.Since(startTime)))
		return c.Status(fiber.StatusOK).JSON(reply)
	case *llm.TextStream:
		r.metrics.requests.WithLabelValues(branchText, outcomeOK).Inc()
		r.metrics.duration.WithLabelValues(branchText).Observe(time.Since(startTime).Seconds())
		return r.writeStream(c, reply, cancel, startTime)
	default:
		cancel()
		return fmt.Errorf("unexpected reply type %T", reply)
	}
}

// writeStream copies the upstream body to the client as it arrives. The body
// and the turn context are released when the copy ends.
func (r *Relay) writeStream(c *fiber.Ctx, stream *llm.TextStream, cancel context.CancelFunc, startTime time.Time) error {
	c.Set(fiber.HeaderContentType, llm.ContentTypeEventStream)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer stream.Body.Close()

		buf := make([]byte, streamBufferSize)
		written := 0
		for {
			n, err := stream.Body.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					r.logger.Warn("client went away", zap.Error(werr))
					return
				}
				if ferr := w.Flush(); ferr != nil {
					r.logger.Warn("client went away", zap.Error(ferr))
					return
				}
				written += n
			}
			if errors.Is(err, io.EOF) {
				r.logger.Debug("streaming complete",
					zap.Int("bytes", written),
					zap.Duration("duration", time.Since(startTime)),
				)
				return
			}
			if err != nil {
				r.logger.Error("error reading stream", zap.Error(err))
				return
			}
		}
	}))

	return nil
}

// writeError maps a failed turn onto the relay's error contract.
func (r *Relay) writeError(c *fiber.Ctx, err error) error {
	status := gateway.StatusCode(err)
	r.logger.Error("chat turn failed", zap.Int("upstream_status", status), zap.Error(err))

	var se *gateway.StatusError
	if !errors.As(err, &se) {
		if !errors.Is(err, gateway.ErrMissingAPIKey) {
			r.metrics.observeUpstreamError(0)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	r.metrics.observeUpstreamError(status)
	switch status {
	case fiber.StatusTooManyRequests:
		return c.Status(fiber.StatusTooManyRequests).JSON(llm.ErrorResponse{Error: llm.MsgRateLimited})
	case fiber.StatusPaymentRequired:
		return c.Status(fiber.StatusPaymentRequired).JSON(llm.ErrorResponse{Error: llm.MsgPaymentRequired})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: llm.MsgGatewayError})
	}
}

type translateRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type translateResponse struct {
	Translation string `json:"translation"`
}

// handleTranslate answers POST /translate.
func (r *Relay) handleTranslate(c *fiber.Ctx) error {
	var req translateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	translation, err := r.translator.Translate(c.UserContext(), req.Text, req.Language)
	if err != nil {
		return r.writeError(c, err)
	}
	return c.JSON(translateResponse{Translation: translation})
}

// handleError renders errors that escape a handler, including recovered panics.
func (r *Relay) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	r.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}
