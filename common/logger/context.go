package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment so handlers, the gateway
// and the reconciler don't have to repeat identifiers on every log statement.
type LogFields struct {
	AccountID *string // chat account the operation concerns
	ChannelID *string // channel the message or surface lives in
	MessageID *string // platform message ID being moderated
	SurfaceID *string // status surface message ID
	Component string  // component name, e.g. "warden.gateway"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.AccountID != nil {
		result.AccountID = next.AccountID
	}
	if next.ChannelID != nil {
		result.ChannelID = next.ChannelID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.SurfaceID != nil {
		result.SurfaceID = next.SurfaceID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like message content.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
