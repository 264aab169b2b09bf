package llm

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is a single turn in a chat. Image fields are only set on
// assistant messages produced by an image reply.
type ConversationMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Image is a data URI or URL.
	Image string `json:"image,omitempty"`

	// ImageID correlates an image with edit and delete actions. Generated client side.
	ImageID string `json:"imageId,omitempty"`

	// ImageCreatedAt is the epoch time in milliseconds the image arrived.
	ImageCreatedAt *int64 `json:"imageCreatedAt,omitempty"`

	// IsRemoving marks a message mid-deletion in a UI. Never serialized.
	IsRemoving bool `json:"-"`
}

// HasImage reports whether the message carries an image.
func (m ConversationMessage) HasImage() bool {
	return m.Image != ""
}

// WithoutImage returns a copy of m with all image fields cleared.
func (m ConversationMessage) WithoutImage() ConversationMessage {
	m.Image = ""
	m.ImageID = ""
	m.ImageCreatedAt = nil
	return m
}
