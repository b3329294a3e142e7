package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/repository"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (repository.Store, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return repository.NewRedisStore(rdb, "", ttl), mr
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	// ARRANGE
	store, mr := setupRedisStore(t, 0)
	ctx := context.Background()

	// ACT
	err := store.Save(ctx, "abc", sampleHistory())
	require.NoError(t, err)
	history, err := store.Get(ctx, "abc")

	// ASSERT
	require.NoError(t, err)
	require.Len(t, history.Messages, 3)
	assert.Equal(t, llm.RoleAssistant, history.Messages[2].Role)
	assert.Equal(t, "msg-1", history.Messages[2].MessageID)
	assert.True(t, mr.Exists("chats:chat-abc"))
}

func TestRedisStore_GetNotFound(t *testing.T) {
	store, _ := setupRedisStore(t, 0)

	_, err := store.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRedisStore_SaveKeepsCreatedAt(t *testing.T) {
	store, _ := setupRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc", sampleHistory()))
	first, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	longer := sampleHistory()
	longer.Messages = append(longer.Messages, llm.NewUserMessage(llm.TextContent{Text: "Another one"}))
	require.NoError(t, store.Save(ctx, "abc", longer))
	second, err := store.List(ctx)
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].CreatedAt, second[0].CreatedAt)
	assert.Equal(t, 4, second[0].MessageCount)
	assert.Equal(t, "Tell me a joke", second[0].Title)
}

func TestRedisStore_Delete(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store, mr := setupRedisStore(t, 0)
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, "abc", sampleHistory()))

		err := store.Delete(ctx, "abc")

		require.NoError(t, err)
		assert.False(t, mr.Exists("chats:chat-abc"))
		summaries, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, summaries)
	})

	t.Run("Not found", func(t *testing.T) {
		store, _ := setupRedisStore(t, 0)

		err := store.Delete(context.Background(), "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestRedisStore_ListExpired(t *testing.T) {
	// ARRANGE
	store, mr := setupRedisStore(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "old", sampleHistory()))
	mr.FastForward(2 * time.Hour)
	require.NoError(t, store.Save(ctx, "new", sampleHistory()))

	// ACT
	summaries, err := store.List(ctx)

	// ASSERT
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "new", summaries[0].ID)
	members, err := mr.ZMembers("chats:index")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, members)
}
