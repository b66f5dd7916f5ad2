// Package chat runs retrieval-augmented conversation turns against a streaming completion service.
package chat

import "slices"

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation entry. User messages hold the assembled prompt, not the raw question.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered message history owned by the caller. It is not safe for concurrent use.
type Conversation struct {
	messages []Message
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	return slices.Clone(c.messages)
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Reset clears the history.
func (c *Conversation) Reset() { c.messages = nil }

func (c *Conversation) append(role Role, content string) {
	c.messages = append(c.messages, Message{Role: role, Content: content})
}

func (c *Conversation) truncate(n int) {
	if n < len(c.messages) {
		c.messages = c.messages[:n]
	}
}
