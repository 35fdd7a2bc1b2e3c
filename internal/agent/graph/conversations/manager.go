package conversations

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/savant-model-analyzer/server/internal/agent/model"
)

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// SaveQuery stores the user query so it becomes part of the history.
func (cm *MessagesManager) SaveQuery(ctx context.Context, conversationID, query string) error {
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(query))
}

// BuildResponseContext assembles system prompt, caller-held history and the
// stored history (which ends with the current query).
func (cm *MessagesManager) BuildResponseContext(ctx context.Context, conversationID, systemPrompt string, callerHistory []*schema.Message) ([]*schema.Message, error) {
	history, err := cm.conversationRepo.LoadHistory(ctx, conversationID, cm.maxTurns)
	if err != nil {
		return nil, err
	}

	messages := make([]*schema.Message, 0, 1+len(callerHistory)+len(history.Messages))
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, m := range callerHistory {
		if m == nil || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role != schema.User && m.Role != schema.Assistant {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, history.Messages...)
	return messages, nil
}

func (cm *MessagesManager) SaveResponse(ctx context.Context, conversationID string, content string) error {
	return cm.conversationRepo.AddMessage(ctx, conversationID, schema.AssistantMessage(content, nil))
}
