// Package notify posts operational notices to a chat channel. The sink is
// passed to callers explicitly rather than spliced into the logger, so a
// broken chat API can never take structured logging down with it.
package notify

import "context"

// Sink receives human-readable notices.
type Sink interface {
	Post(ctx context.Context, text string) error
}

// Sender is the chat operation a ChannelSink needs. It is satisfied by the
// platform client.
type Sender interface {
	Send(ctx context.Context, channelID, content string) (string, error)
}

// ChannelSink posts notices to a fixed chat channel.
type ChannelSink struct {
	sender    Sender
	channelID string
}

func NewChannelSink(sender Sender, channelID string) *ChannelSink {
	return &ChannelSink{sender: sender, channelID: channelID}
}

// Post sends the notice. It never logs its own failure; ForwardHandler runs
// Post from inside the logging path, so an error here must stop with the
// returned value.
func (s *ChannelSink) Post(ctx context.Context, text string) error {
	_, err := s.sender.Send(ctx, s.channelID, text)
	return err
}

// Nop drops notices; used when no log channel is configured.
type Nop struct{}

func (Nop) Post(context.Context, string) error { return nil }
