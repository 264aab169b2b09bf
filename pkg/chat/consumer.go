package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/stream"
)

const (
	DefaultEndpoint       = "http://localhost:8080"
	DefaultTimeout        = 2 * time.Minute
	DefaultReadBufferSize = 4096

	chatPath = "/chat"

	maxErrorBody = 64 * 1024
)

// Config configures a Consumer.
type Config struct {
	// Endpoint is the relay base URL.
	Endpoint string

	// Language is the reply language code sent with every turn.
	Language string

	// Timeout bounds one turn, from sending the request to the end of the reply.
	Timeout time.Duration

	// ReadBufferSize is the size of each body read.
	ReadBufferSize int
}

// Consumer sends chat turns to the relay and keeps the resulting conversation.
// Only one turn may be in flight at a time.
type Consumer struct {
	config   Config
	http     *resty.Client
	store    storage.HistoryStore
	notifier Notifier
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	conv    Conversation
	loading bool
}

// New creates a Consumer, filling unset config fields with defaults.
func New(config Config, opts ...Option) *Consumer {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Language == "" {
		config.Language = llm.DefaultLanguage
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = DefaultReadBufferSize
	}

	c := &Consumer{
		config: config,
		http: resty.New().
			SetBaseURL(strings.TrimRight(config.Endpoint, "/")).
			SetHeader("Content-Type", llm.ContentTypeJSON),
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the HTTP client. The history store is owned by the caller.
func (c *Consumer) Close() error {
	return c.http.Close()
}

// Messages returns a snapshot of the conversation.
func (c *Consumer) Messages() []llm.ConversationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv.Messages()
}

// IsLoading reports whether a turn is in flight.
func (c *Consumer) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Load replaces the conversation with the persisted history.
func (c *Consumer) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.conv = FromEntries(entries)
	c.mu.Unlock()

	c.notifyObserver()
	return nil
}

// Clear empties the conversation and removes the persisted history.
func (c *Consumer) Clear(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.conv = Conversation{}
	c.mu.Unlock()

	c.notifyObserver()
	if c.store == nil {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// Send appends text as a user turn and reads the reply into the conversation.
// Failures never leave the conversation without an answer: a fallback
// assistant message is appended and the error is returned for logging.
func (c *Consumer) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	c.mu.Unlock()

	c.update(ctx, func(conv Conversation) Conversation { return conv.AppendUser(text) })

	turnCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := c.now()
	err := c.exchange(turnCtx)
	if err != nil {
		c.fail(ctx, err)
	} else {
		c.logger.Debug("turn complete", zap.Duration("duration", c.now().Sub(start)))
	}

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	c.notifyObserver()

	return err
}

// DeleteImage removes the image from the message carrying imageID. It reports
// whether the image was found.
func (c *Consumer) DeleteImage(ctx context.Context, imageID string) bool {
	found := false
	c.update(ctx, func(conv Conversation) Conversation {
		next, ok := conv.DeleteImage(imageID)
		found = ok
		return next
	})
	return found
}

// CanEditImage reports whether the image carrying imageID is still inside the
// edit window.
func (c *Consumer) CanEditImage(imageID string) bool {
	c.mu.Lock()
	msg, ok := c.conv.FindImage(imageID)
	c.mu.Unlock()
	if !ok {
		return false
	}
	return !IsEditDisabled(c.now(), msg.ImageCreatedAt)
}

// DownloadImage saves the image carrying imageID into dir. Failures are also
// reported through the notifier.
func (c *Consumer) DownloadImage(ctx context.Context, imageID, dir string) (string, error) {
	c.mu.Lock()
	msg, ok := c.conv.FindImage(imageID)
	c.mu.Unlock()
	if !ok {
		c.notify("Failed to download image")
		return "", fmt.Errorf("image %q not found", imageID)
	}

	path, err := Download(ctx, c.http, msg.Image, dir, c.now())
	if err != nil {
		c.logger.Warn("image download failed", zap.String("image_id", imageID), zap.Error(err))
		c.notify("Failed to download image")
		return "", err
	}
	c.notify("Image downloaded")
	return path, nil
}

// exchange performs one request and folds the reply into the conversation.
func (c *Consumer) exchange(ctx context.Context) error {
	c.mu.Lock()
	req := c.conv.Request(c.config.Language)
	c.mu.Unlock()

	c.logger.Debug("sending chat turn",
		zap.Int("message_count", len(req.Messages)),
		zap.String("language", req.Language),
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post(chatPath)
	if err != nil {
		return fmt.Errorf("calling relay: %w", err)
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return errors.New("calling relay: empty response body")
	}
	body := resp.RawResponse.Body
	defer body.Close()

	if resp.IsError() {
		return relayError(resp.StatusCode(), body)
	}

	if isJSON(resp.RawResponse.Header.Get("Content-Type")) {
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("reading reply: %w", err)
		}
		var reply llm.ImageReply
		if err := json.Unmarshal(data, &reply); err == nil && reply.HasImage && reply.Image != "" {
			c.appendImage(ctx, &reply)
			return nil
		}
		return c.consume(ctx, bytes.NewReader(data))
	}

	return c.consume(ctx, body)
}

func (c *Consumer) appendImage(ctx context.Context, reply *llm.ImageReply) {
	id := c.newID()
	created := c.now().UnixMilli()
	c.update(ctx, func(conv Conversation) Conversation {
		return conv.AppendImage(reply.Content, reply.Image, id, created)
	})
	c.logger.Debug("image reply received", zap.String("image_id", id))
}

// consume reads an event-stream body until the end-of-stream sentinel or EOF,
// then flushes what is left in the line buffer. A connection that drops after
// reply text arrived ends the turn with the partial reply; a timeout or a
// drop before any text is an error.
func (c *Consumer) consume(ctx context.Context, body io.Reader) error {
	parser := stream.NewParser()
	buf := make([]byte, c.config.ReadBufferSize)

	var running strings.Builder
	fold := func(deltas []string) {
		if len(deltas) == 0 {
			return
		}
		for _, d := range deltas {
			running.WriteString(d)
		}
		text := running.String()
		c.update(ctx, func(conv Conversation) Conversation { return conv.UpsertAssistant(text) })
	}

	var readErr error
	for !parser.Done() {
		var n int
		n, readErr = body.Read(buf)
		if n > 0 {
			deltas, err := parser.Feed(buf[:n])
			if err != nil {
				return fmt.Errorf("decoding reply: %w", err)
			}
			fold(deltas)
		}
		if errors.Is(readErr, io.EOF) {
			readErr = nil
			break
		}
		if readErr != nil {
			break
		}
	}

	// The tail of the line buffer is folded even when the body broke off.
	fold(parser.Flush())

	if readErr == nil {
		return nil
	}
	if ctx.Err() == nil && running.Len() > 0 {
		c.logger.Warn("reply stream dropped, keeping partial reply",
			zap.Int("reply_length", running.Len()),
			zap.Error(readErr),
		)
		return nil
	}
	return fmt.Errorf("reading reply: %w", readErr)
}

// fail appends the fallback reply and tells the user what went wrong.
func (c *Consumer) fail(ctx context.Context, err error) {
	c.logger.Error("chat turn failed", zap.Error(err))

	var re *RelayError
	if errors.As(err, &re) {
		c.notify(re.notice())
	}

	c.update(ctx, func(conv Conversation) Conversation {
		return conv.AppendAssistant(llm.MsgClientFallback)
	})
}

// update applies fn to the conversation, persists the result and notifies
// the observer.
func (c *Consumer) update(ctx context.Context, fn func(Conversation) Conversation) {
	c.mu.Lock()
	c.conv = fn(c.conv)
	conv := c.conv
	c.mu.Unlock()

	c.persist(context.WithoutCancel(ctx), conv)
	c.notifyObserver()
}

// persist saves the text history. When the store is full the stored history is
// dropped; the in-memory conversation is unaffected.
func (c *Consumer) persist(ctx context.Context, conv Conversation) {
	if c.store == nil {
		return
	}

	err := c.store.Save(ctx, conv.Entries())
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrQuotaExceeded) {
		c.logger.Warn("failed to save history", zap.Error(err))
		return
	}

	c.logger.Warn("history quota exceeded, clearing", zap.Error(err))
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear history", zap.Error(err))
	}
	c.notify(llm.MsgHistoryCleared)
}

func (c *Consumer) notify(message string) {
	if c.notifier != nil {
		c.notifier.Notify(message)
	}
}

func (c *Consumer) notifyObserver() {
	if c.observer == nil {
		return
	}
	c.mu.Lock()
	messages := c.conv.Messages()
	loading := c.loading
	c.mu.Unlock()
	c.observer(messages, loading)
}

func relayError(status int, body io.Reader) error {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))

	var payload llm.ErrorResponse
	message := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		message = payload.Error
	}
	return &RelayError{StatusCode: status, Message: message}
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), llm.ContentTypeJSON)
}
