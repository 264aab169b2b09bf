// Package translate memoizes model-backed translations of assistant replies.
package translate

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sashabaranov/go-openai"

	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
)

// DefaultCacheSize is the number of translations NewLRUCache keeps when given
// a non-positive size.
const DefaultCacheSize = 512

// Completer runs a single non-streamed completion.
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error)
}

// Cache stores translations keyed by language and source text.
type Cache interface {
	Get(language, text string) (string, bool)
	Add(language, text, translation string)
}

// LRUCache is a bounded Cache.
type LRUCache struct {
	cache *lru.Cache
}

// NewLRUCache creates an LRUCache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating translation cache: %w", err)
	}
	return &LRUCache{cache: c}, nil
}

func (c *LRUCache) Get(language, text string) (string, bool) {
	v, ok := c.cache.Get(cacheKey(language, text))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *LRUCache) Add(language, text, translation string) {
	c.cache.Add(cacheKey(language, text), translation)
}

// Len returns the number of cached translations.
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

func cacheKey(language, text string) string {
	return language + "\x00" + text
}

// Translator translates text through a Completer, consulting Cache first.
// A nil Cache disables memoization.
type Translator struct {
	Completer Completer
	Cache     Cache
}

// New creates a Translator.
func New(completer Completer, cache Cache) *Translator {
	return &Translator{Completer: completer, Cache: cache}
}

// Translate returns text rendered in the language named by code. English and
// empty text are returned unchanged without calling the model.
func (t *Translator) Translate(ctx context.Context, text, code string) (string, error) {
	language := llm.LanguageName(code)
	if strings.TrimSpace(text) == "" || language == llm.LanguageName(llm.DefaultLanguage) {
		return text, nil
	}

	if t.Cache != nil {
		if cached, ok := t.Cache.Get(language, text); ok {
			return cached, nil
		}
	}

	translated, err := t.Completer.Complete(ctx, []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("You are a translator for a school assistant. Translate the user's text into %s. "+
				"Keep names, numbers and currency amounts unchanged. Reply with the translation only.", language),
		},
		{Role: openai.ChatMessageRoleUser, Content: text},
	})
	if err != nil {
		return "", fmt.Errorf("translating to %s: %w", language, err)
	}
	translated = strings.TrimSpace(translated)

	if t.Cache != nil {
		t.Cache.Add(language, text, translated)
	}
	return translated, nil
}
