package audit

import (
	"context"
	"fmt"
	"time"

	"warden.app/bot/common/id"
	"warden.app/bot/core/db"
)

// Store is the postgres-backed Recorder.
type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

func (s *Store) Record(ctx context.Context, action *Action) error {
	if action.ID == 0 {
		action.ID = id.New()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO moderation_actions (
			id, account_id, account_label, channel_id, message_id,
			verdict, reason, source, restricted_until, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		action.ID, action.AccountID, action.AccountLabel, action.ChannelID, action.MessageID,
		action.Verdict, action.Reason, action.Source, action.RestrictedUntil, action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert moderation action: %w", err)
	}
	return nil
}

// ListRecent returns the newest actions first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, account_id, account_label, channel_id, message_id,
		       verdict, reason, source, restricted_until, created_at
		FROM moderation_actions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query moderation actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(
			&a.ID, &a.AccountID, &a.AccountLabel, &a.ChannelID, &a.MessageID,
			&a.Verdict, &a.Reason, &a.Source, &a.RestrictedUntil, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan moderation action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// ListForAccount returns actions taken against a single account, newest first.
func (s *Store) ListForAccount(ctx context.Context, accountID string, limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Pool().Query(ctx, `
		SELECT id, account_id, account_label, channel_id, message_id,
		       verdict, reason, source, restricted_until, created_at
		FROM moderation_actions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query moderation actions for account: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		if err := rows.Scan(
			&a.ID, &a.AccountID, &a.AccountLabel, &a.ChannelID, &a.MessageID,
			&a.Verdict, &a.Reason, &a.Source, &a.RestrictedUntil, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan moderation action: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
