package chat

import (
	"time"

	"go.uber.org/zap"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage"
)

// Notifier shows a short non-blocking notice to the user.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Observer is called with a snapshot after every change to the conversation or
// the loading state.
type Observer func(messages []llm.ConversationMessage, loading bool)

// Option configures a Consumer.
type Option func(*Consumer)

// WithStore persists the text history to store.
func WithStore(store storage.HistoryStore) Option {
	return func(c *Consumer) { c.store = store }
}

// WithNotifier routes user notices to n.
func WithNotifier(n Notifier) Option {
	return func(c *Consumer) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Consumer) { c.logger = logger }
}

// WithObserver registers fn to receive conversation snapshots.
func WithObserver(fn Observer) Option {
	return func(c *Consumer) { c.observer = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) { c.now = now }
}

// WithIDGenerator replaces the image ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(c *Consumer) { c.newID = newID }
}
