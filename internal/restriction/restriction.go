package restriction

import (
	"context"
	"time"
)

// Record is one currently-restricted account as reported by the platform.
// Remaining time is always derived from ExpiresAt, never cached.
type Record struct {
	AccountID string
	Label     string
	ExpiresAt time.Time
}

func (r Record) Remaining(now time.Time) time.Duration {
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (r Record) Active(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// Source lists accounts with an active restriction. The status reconciler
// polls this; implementations should return records in a stable order.
type Source interface {
	ListActive(ctx context.Context) ([]Record, error)
}

// Enforcer imposes a timed communication restriction on an account.
type Enforcer interface {
	Restrict(ctx context.Context, accountID, label string, d time.Duration) (time.Time, error)
}
