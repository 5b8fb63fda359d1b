package discord

import (
	"context"
	"fmt"
	"time"

	"warden.app/bot/internal/restriction"
)

// Restrictions reads and writes member timeouts for one guild. The platform
// is the source of truth; moderator actions taken in the native UI show up
// here just like the bot's own.
type Restrictions struct {
	client  *Client
	guildID string
}

var (
	_ restriction.Source   = (*Restrictions)(nil)
	_ restriction.Enforcer = (*Restrictions)(nil)
)

func NewRestrictions(client *Client, guildID string) *Restrictions {
	return &Restrictions{client: client, guildID: guildID}
}

type member struct {
	User struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
	} `json:"user"`
	Nick       string     `json:"nick"`
	MutedUntil *time.Time `json:"communication_disabled_until"`
}

func (m member) label() string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

// ListActive pages through the guild's members and keeps those whose timeout
// has not yet expired.
func (r *Restrictions) ListActive(ctx context.Context) ([]restriction.Record, error) {
	now := time.Now()
	var records []restriction.Record
	after := ""
	for {
		path := fmt.Sprintf("/guilds/%s/members?limit=%d", r.guildID, memberPageSize)
		if after != "" {
			path += "&after=" + after
		}

		var page []member
		if err := r.client.do(ctx, "GET", path, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list guild members: %w", err)
		}

		for _, m := range page {
			if m.MutedUntil == nil || !m.MutedUntil.After(now) {
				continue
			}
			records = append(records, restriction.Record{
				AccountID: m.User.ID,
				Label:     m.label(),
				ExpiresAt: *m.MutedUntil,
			})
		}

		if len(page) < memberPageSize {
			return records, nil
		}
		after = page[len(page)-1].User.ID
	}
}

const memberPageSize = 1000

// Restrict times the member out until now+d and returns the expiry the
// platform accepted.
func (r *Restrictions) Restrict(ctx context.Context, accountID, _ string, d time.Duration) (time.Time, error) {
	until := time.Now().Add(d).UTC()
	err := r.client.do(ctx, "PATCH",
		fmt.Sprintf("/guilds/%s/members/%s", r.guildID, accountID),
		map[string]string{"communication_disabled_until": until.Format(time.RFC3339)}, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to restrict member: %w", err)
	}
	return until, nil
}
