// Package chat implements the client side of the school chat relay: it sends a
// turn, folds the streamed reply into the conversation, and persists the
// text history.
package chat

import (
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/llm"
	"github.com/Bruno-at/uganda-school-kit-sub000/pkg/storage"
)

// Conversation is an ordered message list. Every mutation returns a new
// Conversation and leaves the receiver untouched.
type Conversation struct {
	messages []llm.ConversationMessage
}

// NewConversation creates a Conversation holding a copy of messages.
func NewConversation(messages ...llm.ConversationMessage) Conversation {
	return Conversation{messages: clone(messages, 0)}
}

// FromEntries rebuilds a Conversation from persisted history.
func FromEntries(entries []storage.Entry) Conversation {
	messages := make([]llm.ConversationMessage, 0, len(entries))
	for _, e := range entries {
		messages = append(messages, llm.ConversationMessage{Role: llm.Role(e.Role), Content: e.Content})
	}
	return Conversation{messages: messages}
}

// Messages returns a copy of the message list.
func (c Conversation) Messages() []llm.ConversationMessage {
	return clone(c.messages, 0)
}

func (c Conversation) Len() int { return len(c.messages) }

// Last returns the final message, if any.
func (c Conversation) Last() (llm.ConversationMessage, bool) {
	if len(c.messages) == 0 {
		return llm.ConversationMessage{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// AppendUser adds a user turn.
func (c Conversation) AppendUser(content string) Conversation {
	return c.append(llm.ConversationMessage{Role: llm.RoleUser, Content: content})
}

// AppendAssistant adds a new assistant message.
func (c Conversation) AppendAssistant(content string) Conversation {
	return c.append(llm.ConversationMessage{Role: llm.RoleAssistant, Content: content})
}

// UpsertAssistant sets the running reply text. If the last message is from the
// assistant it is replaced by a copy carrying text, otherwise a new assistant
// message is appended.
func (c Conversation) UpsertAssistant(text string) Conversation {
	last, ok := c.Last()
	if !ok || last.Role != llm.RoleAssistant {
		return c.AppendAssistant(text)
	}

	messages := clone(c.messages, 0)
	last.Content = text
	messages[len(messages)-1] = last
	return Conversation{messages: messages}
}

// AppendImage adds an assistant message carrying an image.
func (c Conversation) AppendImage(content, image, imageID string, createdAt int64) Conversation {
	return c.append(llm.ConversationMessage{
		Role:           llm.RoleAssistant,
		Content:        content,
		Image:          image,
		ImageID:        imageID,
		ImageCreatedAt: &createdAt,
	})
}

// DeleteImage clears the image fields of the message carrying imageID and keeps
// its text. It reports whether such a message was found.
func (c Conversation) DeleteImage(imageID string) (Conversation, bool) {
	i := c.indexOfImage(imageID)
	if i < 0 {
		return c, false
	}
	messages := clone(c.messages, 0)
	messages[i] = messages[i].WithoutImage()
	return Conversation{messages: messages}, true
}

// FindImage returns the message carrying imageID.
func (c Conversation) FindImage(imageID string) (llm.ConversationMessage, bool) {
	i := c.indexOfImage(imageID)
	if i < 0 {
		return llm.ConversationMessage{}, false
	}
	return c.messages[i], true
}

// Entries returns the role and content of every message, dropping images.
func (c Conversation) Entries() []storage.Entry {
	entries := make([]storage.Entry, 0, len(c.messages))
	for _, m := range c.messages {
		entries = append(entries, storage.Entry{Role: string(m.Role), Content: m.Content})
	}
	return entries
}

// Request returns the text-only history sent to the relay.
func (c Conversation) Request(language string) llm.ChatRequest {
	messages := make([]llm.ConversationMessage, 0, len(c.messages))
	for _, m := range c.messages {
		messages = append(messages, llm.ConversationMessage{Role: m.Role, Content: m.Content})
	}
	return llm.ChatRequest{Messages: messages, Language: language}
}

func (c Conversation) append(m llm.ConversationMessage) Conversation {
	messages := clone(c.messages, 1)
	messages = append(messages, m)
	return Conversation{messages: messages}
}

func (c Conversation) indexOfImage(imageID string) int {
	if imageID == "" {
		return -1
	}
	for i, m := range c.messages {
		if m.ImageID == imageID {
			return i
		}
	}
	return -1
}

func clone(messages []llm.ConversationMessage, extra int) []llm.ConversationMessage {
	out := make([]llm.ConversationMessage, len(messages), len(messages)+extra)
	copy(out, messages)
	return out
}
