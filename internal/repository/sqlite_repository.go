package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
	"github.com/IMax153/netlify-ai-gateway/internal/model"
)

type sqliteStore struct {
	db      *sql.DB
	storeID string
}

// NewSQLiteStore keeps histories in the chat_histories table, scoped to storeID.
func NewSQLiteStore(db *sql.DB, storeID string) Store {
	if storeID == "" {
		storeID = DefaultStoreID
	}
	return &sqliteStore{db: db, storeID: storeID}
}

func (s *sqliteStore) Get(ctx context.Context, chatID string) (llm.Prompt, error) {
	query := "SELECT history FROM chat_histories WHERE store_id = ? AND key = ?"
	var raw string
	err := s.db.QueryRowContext(ctx, query, s.storeID, ChatKey(chatID)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return llm.Prompt{}, ErrNotFound
		}
		return llm.Prompt{}, err
	}

	var history llm.Prompt
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return llm.Prompt{}, fmt.Errorf("could not decode history of chat %s: %w", chatID, err)
	}
	return history, nil
}

func (s *sqliteStore) Save(ctx context.Context, chatID string, history llm.Prompt) error {
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("could not encode history of chat %s: %w", chatID, err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO chat_histories (store_id, key, title, message_count, history, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(store_id, key) DO UPDATE SET
			title = excluded.title,
			message_count = excluded.message_count,
			history = excluded.history,
			updated_at = excluded.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		s.storeID,
		ChatKey(chatID),
		TitleFor(history),
		len(history.Messages),
		string(raw),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("could not save history of chat %s: %w", chatID, err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, chatID string) error {
	query := "DELETE FROM chat_histories WHERE store_id = ? AND key = ?"
	res, err := s.db.ExecContext(ctx, query, s.storeID, ChatKey(chatID))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) List(ctx context.Context) ([]model.ChatSummary, error) {
	query := `
		SELECT key, title, message_count, created_at, updated_at
		FROM chat_histories
		WHERE store_id = ?
		ORDER BY updated_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, s.storeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	summaries := []model.ChatSummary{}
	for rows.Next() {
		var key string
		var summary model.ChatSummary
		if err := rows.Scan(&key, &summary.Title, &summary.MessageCount, &summary.CreatedAt, &summary.UpdatedAt); err != nil {
			return nil, err
		}
		summary.ID = chatIDFromKey(key)
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
