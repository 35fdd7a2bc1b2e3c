package repo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, ttl time.Duration) (*RedisConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisConversationRepository(rdb, ttl), mr
}

func TestAddAndLoadHistory(t *testing.T) {
	ctx := context.Background()
	r, mr := newRepo(t, 15*time.Minute)

	require.NoError(t, r.AddMessage(ctx, "c1", schema.UserMessage("top drivers?")))
	require.NoError(t, r.AddMessage(ctx, "c1", schema.AssistantMessage("hub enrolment", nil)))
	require.NoError(t, r.AddMessage(ctx, "c1", schema.UserMessage("and cost?")))

	h, err := r.LoadHistory(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, h.Messages, 3)
	assert.Equal(t, schema.User, h.Messages[0].Role)
	assert.Equal(t, "hub enrolment", h.Messages[1].Content)

	recent, err := r.LoadHistory(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, recent.Messages, 2)
	assert.Equal(t, "and cost?", recent.Messages[1].Content)

	assert.Equal(t, 15*time.Minute, mr.TTL("conversation:c1:messages"))
}

func TestLoadMissingConversation(t *testing.T) {
	r, _ := newRepo(t, 0)
	h, err := r.LoadHistory(context.Background(), "none", 5)
	require.NoError(t, err)
	assert.Empty(t, h.Messages)
	assert.Equal(t, "none", h.ConversationID)
}

func TestClearHistory(t *testing.T) {
	ctx := context.Background()
	r, mr := newRepo(t, time.Minute)

	require.NoError(t, r.AddMessage(ctx, "c2", schema.UserMessage("hi")))
	require.NoError(t, r.ClearHistory(ctx, "c2"))
	assert.False(t, mr.Exists("conversation:c2:messages"))
}

func TestCorruptEntry(t *testing.T) {
	r, mr := newRepo(t, 0)
	_, err := mr.Push("conversation:bad:messages", "{not json")
	require.NoError(t, err)

	_, err = r.LoadHistory(context.Background(), "bad", 0)
	assert.Error(t, err)
}
