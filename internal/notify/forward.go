package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ForwardHandler decorates a slog.Handler and forwards records at or above
// min to the sink. The local handler always runs first and its result is
// what the caller sees; forwarding is asynchronous and best effort, and its
// own failures are dropped so a broken chat API cannot recurse into logging.
type ForwardHandler struct {
	next slog.Handler
	sink Sink
	min  slog.Level
}

func NewForwardHandler(next slog.Handler, sink Sink, min slog.Level) *ForwardHandler {
	return &ForwardHandler{next: next, sink: sink, min: min}
}

func (h *ForwardHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ForwardHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)

	if r.Level >= h.min {
		text := formatRecord(r)
		go func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = h.sink.Post(ctx, text)
		}(ctx)
	}
	return err
}

func (h *ForwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ForwardHandler{next: h.next.WithAttrs(attrs), sink: h.sink, min: h.min}
}

func (h *ForwardHandler) WithGroup(name string) slog.Handler {
	return &ForwardHandler{next: h.next.WithGroup(name), sink: h.sink, min: h.min}
}

func formatRecord(r slog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** %s", r.Level, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	return b.String()
}
