package audit

import (
	"context"
	"time"
)

// Action is one moderation decision that resulted in a restriction.
type Action struct {
	ID              int64
	AccountID       string
	AccountLabel    string
	ChannelID       string
	MessageID       string
	Verdict         string
	Reason          string
	Source          string // which policy flagged it: "model" or "keyword"
	RestrictedUntil *time.Time
	CreatedAt       time.Time
}

// Recorder persists moderation actions.
type Recorder interface {
	Record(ctx context.Context, action *Action) error
}

// Nop discards actions; used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, *Action) error { return nil }
