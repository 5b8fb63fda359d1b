package status

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Surface implementations when the underlying
// message no longer exists (deleted out-of-band). The reconciler recovers by
// creating a fresh surface; callers never see this error.
var ErrNotFound = errors.New("surface not found")

// Surface is the display collaborator: one chat message the reconciler keeps
// in sync. Edit and Fetch fail with ErrNotFound when the message is gone and
// with gateway.ErrRateLimited when the platform throttles the call.
type Surface interface {
	Send(ctx context.Context, channelID, content string) (string, error)
	Edit(ctx context.Context, channelID, messageID, content string) error
	Fetch(ctx context.Context, channelID, messageID string) error
}
