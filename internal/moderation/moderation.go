package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"warden.app/bot/common/logger"
	"warden.app/bot/internal/audit"
	"warden.app/bot/internal/classifier"
	"warden.app/bot/internal/gateway"
	"warden.app/bot/internal/notify"
	"warden.app/bot/internal/restriction"
)

// Message is an inbound chat message to moderate.
type Message struct {
	ID           string
	ChannelID    string
	AccountID    string
	AccountLabel string
	Content      string
	ImageURLs    []string
}

// Outcome reports what happened to a message.
type Outcome struct {
	Verdict         classifier.Verdict
	Reason          string
	Source          string
	Duplicate       bool
	Restricted      bool
	RestrictedUntil time.Time
}

type Config struct {
	RestrictionDuration time.Duration
}

// Service runs each message through the classifier and applies restrictions
// to flagged accounts. Model calls go through the gateway; when the model is
// unavailable the keyword fallback keeps moderation running.
type Service struct {
	cfg      Config
	gw       *gateway.Gateway
	model    classifier.Client
	fallback classifier.Client
	enforcer restriction.Enforcer
	dedupe   Deduper
	recorder audit.Recorder
	sink     notify.Sink
}

func NewService(
	cfg Config,
	gw *gateway.Gateway,
	model classifier.Client,
	fallback classifier.Client,
	enforcer restriction.Enforcer,
	dedupe Deduper,
	recorder audit.Recorder,
	sink notify.Sink,
) *Service {
	if cfg.RestrictionDuration <= 0 {
		cfg.RestrictionDuration = 10 * time.Minute
	}
	return &Service{
		cfg:      cfg,
		gw:       gw,
		model:    model,
		fallback: fallback,
		enforcer: enforcer,
		dedupe:   dedupe,
		recorder: recorder,
		sink:     sink,
	}
}

func (s *Service) HandleMessage(ctx context.Context, msg Message) (Outcome, error) {
	sc := logger.StartSpan(ctx, "moderation.handle_message")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		AccountID: logger.Ptr(msg.AccountID),
		ChannelID: logger.Ptr(msg.ChannelID),
		MessageID: logger.Ptr(msg.ID),
		Component: "moderation",
	})

	seen, err := s.dedupe.MarkSeen(ctx, msg.ID)
	if err != nil {
		// Dedupe is best effort. A moderated message twice beats one missed.
		slog.WarnContext(ctx, "dedupe check failed", "error", err)
	}
	if seen {
		slog.DebugContext(ctx, "skipping duplicate message")
		return Outcome{Duplicate: true}, nil
	}

	result, err := s.classify(ctx, msg)
	if err != nil {
		sc.RecordError(err)
		return Outcome{}, err
	}

	outcome := Outcome{
		Verdict: result.Verdict,
		Reason:  result.Reason,
		Source:  result.Source,
	}
	if result.Verdict != classifier.VerdictFlagged {
		return outcome, nil
	}

	until, err := s.enforcer.Restrict(ctx, msg.AccountID, msg.AccountLabel, s.cfg.RestrictionDuration)
	if err != nil {
		return outcome, fmt.Errorf("failed to restrict account: %w", err)
	}
	outcome.Restricted = true
	outcome.RestrictedUntil = until

	slog.InfoContext(ctx, "restricted account",
		"verdict", string(result.Verdict),
		"source", result.Source,
		"until", until)

	action := &audit.Action{
		AccountID:       msg.AccountID,
		AccountLabel:    msg.AccountLabel,
		ChannelID:       msg.ChannelID,
		MessageID:       msg.ID,
		Verdict:         string(result.Verdict),
		Reason:          result.Reason,
		Source:          result.Source,
		RestrictedUntil: &until,
	}
	if err := s.recorder.Record(ctx, action); err != nil {
		slog.ErrorContext(ctx, "failed to record moderation action", "error", err)
	}

	notice := fmt.Sprintf("Restricted **%s** until %s (%s): %s",
		msg.AccountLabel, until.UTC().Format(time.RFC3339), result.Source, result.Reason)
	_ = s.sink.Post(ctx, notice)

	return outcome, nil
}

// classify picks the policy. The model is skipped entirely once the gateway
// reports quota exhaustion; otherwise a failed model call falls back to the
// keyword policy for this message only.
func (s *Service) classify(ctx context.Context, msg Message) (classifier.Result, error) {
	in := classifier.Input{
		AuthorLabel: msg.AccountLabel,
		Text:        msg.Content,
		ImageURLs:   msg.ImageURLs,
	}

	if s.gw.Degraded() {
		return s.fallback.Classify(ctx, in)
	}

	raw, err := s.gw.Do(ctx, func(opCtx context.Context) (any, error) {
		res, err := s.model.Classify(opCtx, in)
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return classifier.Result{}, ctx.Err()
		}
		if errors.Is(err, gateway.ErrQuotaExhausted) {
			slog.WarnContext(ctx, "model quota exhausted, using keyword policy", "error", err)
		} else {
			slog.WarnContext(ctx, "model classification failed, using keyword policy", "error", err)
		}
		return s.fallback.Classify(ctx, in)
	}

	result, ok := raw.(classifier.Result)
	if !ok {
		return classifier.Result{}, fmt.Errorf("unexpected classification result type %T", raw)
	}
	return result, nil
}
