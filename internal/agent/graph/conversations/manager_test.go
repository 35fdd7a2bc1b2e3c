package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savant-model-analyzer/server/internal/agent/model"
	"github.com/savant-model-analyzer/server/internal/agent/repo"
)

func newManager(t *testing.T, maxTurns int) *MessagesManager {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewMessagesManager(repo.NewRedisConversationRepository(rdb, time.Minute), model.ConversationConfig{MaxTurns: maxTurns})
}

func TestBuildResponseContext(t *testing.T) {
	ctx := context.Background()
	mm := newManager(t, 2)

	require.NoError(t, mm.SaveQuery(ctx, "c", "first"))
	require.NoError(t, mm.SaveResponse(ctx, "c", "answer"))
	require.NoError(t, mm.SaveQuery(ctx, "c", "second"))

	caller := []*schema.Message{
		schema.UserMessage("earlier"),
		schema.SystemMessage("ignored"),
		schema.AssistantMessage("", nil),
	}
	msgs, err := mm.BuildResponseContext(ctx, "c", "persona", caller)
	require.NoError(t, err)

	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "persona", msgs[0].Content)
	assert.Equal(t, "earlier", msgs[1].Content)
	assert.Equal(t, "answer", msgs[2].Content)
	assert.Equal(t, "second", msgs[3].Content)
}
