package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessage appends a message to the conversation history
	AddMessage(ctx context.Context, conversationID string, message *schema.Message) error

	// LoadHistory retrieves at most the last limit messages, all of them when limit <= 0
	LoadHistory(ctx context.Context, conversationID string, limit int) (*ConversationHistory, error)

	ClearHistory(ctx context.Context, conversationID string) error
}

// ConversationHistory is the persisted user/assistant exchange of one conversation.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}
