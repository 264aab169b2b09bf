package llm

// ChatRequest is the body of POST /chat. The relay holds no session state, so
// the full history is sent on every turn.
type ChatRequest struct {
	Messages []ConversationMessage `json:"messages"`
	Language string                `json:"language,omitempty"`
}

// LastContent returns the content of the final message, or "" for an empty history.
func (r *ChatRequest) LastContent() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}
