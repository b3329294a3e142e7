package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/model"
)

type redisStore struct {
	rdb     *redis.Client
	storeID string
	ttl     time.Duration
}

// NewRedisStore keeps each history as a JSON string under
// "<storeID>:chat-<id>" and indexes chats in a sorted set by update time.
// A positive ttl expires idle chats.
func NewRedisStore(rdb *redis.Client, storeID string, ttl time.Duration) Store {
	if storeID == "" {
		storeID = DefaultStoreID
	}
	return &redisStore{rdb: rdb, storeID: storeID, ttl: ttl}
}

// Key Generation Helpers
func (r *redisStore) chatKey(chatID string) string { return fmt.Sprintf("%s:%s", r.storeID, ChatKey(chatID)) }
func (r *redisStore) indexKey() string             { return fmt.Sprintf("%s:index", r.storeID) }

func (r *redisStore) load(ctx context.Context, chatID string) (*record, error) {
	raw, err := r.rdb.Get(ctx, r.chatKey(chatID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("could not decode history of chat %s: %w", chatID, err)
	}
	return &rec, nil
}

func (r *redisStore) Get(ctx context.Context, chatID string) (llm.Prompt, error) {
	rec, err := r.load(ctx, chatID)
	if err != nil {
		return llm.Prompt{}, err
	}
	return rec.History, nil
}

func (r *redisStore) Save(ctx context.Context, chatID string, history llm.Prompt) error {
	now := time.Now().UTC()
	rec := record{Title: TitleFor(history), CreatedAt: now, UpdatedAt: now, History: history}
	if existing, err := r.load(ctx, chatID); err == nil {
		rec.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("could not encode history of chat %s: %w", chatID, err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.chatKey(chatID), raw, r.ttl)
	pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: chatID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute chat save pipeline: %w", err)
	}
	return nil
}

func (r *redisStore) Delete(ctx context.Context, chatID string) error {
	pipe := r.rdb.TxPipeline()
	del := pipe.Del(ctx, r.chatKey(chatID))
	pipe.ZRem(ctx, r.indexKey(), chatID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute chat deletion pipeline: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *redisStore) List(ctx context.Context) ([]model.ChatSummary, error) {
	chatIDs, err := r.rdb.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ChatSummary, 0, len(chatIDs))
	var expired []any
	for _, id := range chatIDs {
		rec, err := r.load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			expired = append(expired, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, model.ChatSummary{
			ID:           id,
			Title:        rec.Title,
			MessageCount: len(rec.History.Messages),
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
		})
	}

	// chats whose key expired are dropped from the index lazily
	if len(expired) > 0 {
		if err := r.rdb.ZRem(ctx, r.indexKey(), expired...).Err(); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}
