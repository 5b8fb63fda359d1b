package status

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden.app/bot/common/logger"
	"warden.app/bot/internal/gateway"
	"warden.app/bot/internal/restriction"
)

type Config struct {
	ChannelID         string
	Tick              time.Duration
	RefreshInterval   time.Duration // account-state poll cadence, backed off on failure
	RefreshMaxBackoff time.Duration
	EditInterval      time.Duration // min spacing between surface writes
	EditCooldown      time.Duration // pause after the platform rate-limits a write
}

// Reconciler keeps one chat message in sync with the set of currently
// restricted accounts. Each tick refreshes (on its own slower cadence),
// renders, diffs against the last applied text and, only when it changed,
// writes through a single-writer edit queue. If the message disappears
// out-of-band it is recreated and the new identifier persisted.
type Reconciler struct {
	cfg     Config
	source  restriction.Source
	surface Surface
	state   StateStore
	edits   *gateway.Gateway

	snapshot    []restriction.Record
	lastRefresh time.Time
	refreshWait time.Duration
	surfaceID   string
	lastApplied string
}

func NewReconciler(cfg Config, source restriction.Source, surface Surface, state StateStore) *Reconciler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Second
	}
	if cfg.RefreshMaxBackoff < cfg.RefreshInterval {
		cfg.RefreshMaxBackoff = cfg.RefreshInterval
	}
	if cfg.EditInterval <= 0 {
		cfg.EditInterval = 600 * time.Millisecond
	}
	if cfg.EditCooldown <= 0 {
		cfg.EditCooldown = 5 * time.Second
	}

	// All surface writes flow through their own gateway: one writer, spaced
	// by EditInterval, with the platform's 429s handled as a fixed cooldown.
	edits := gateway.New(gateway.Config{
		Name:        "surface",
		MinInterval: cfg.EditInterval,
		CallTimeout: 10 * time.Second,
		BaseBackoff: cfg.EditCooldown,
		MaxBackoff:  cfg.EditCooldown,
		MaxRetries:  0,
	})

	return &Reconciler{
		cfg:     cfg,
		source:  source,
		surface: surface,
		state:   state,
		edits:   edits,
	}
}

// Run ticks until ctx is cancelled. On shutdown the tick simply stops; no
// final edit is forced.
func (r *Reconciler) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "warden.status",
		ChannelID: logger.Ptr(r.cfg.ChannelID),
	})

	go func() {
		_ = r.edits.Run(ctx)
	}()

	r.resume(ctx)

	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	slog.InfoContext(ctx, "status reconciler started", "tick", r.cfg.Tick)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "status reconciler stopping")
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// resume tries to pick up the surface persisted by a previous run so a
// restart edits the same message instead of stacking new ones.
func (r *Reconciler) resume(ctx context.Context) {
	id, err := r.state.SurfaceID(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to load persisted surface id", "error", err)
		return
	}
	if id == "" {
		return
	}

	switch err := r.surface.Fetch(ctx, r.cfg.ChannelID, id); {
	case err == nil:
		r.surfaceID = id
		slog.InfoContext(ctx, "resumed status surface",
			"surface_id", id)
	case errors.Is(err, ErrNotFound):
		slog.InfoContext(ctx, "persisted surface is gone, will create a new one",
			"surface_id", id)
		if err := r.state.ClearSurfaceID(ctx); err != nil {
			slog.WarnContext(ctx, "failed to clear stale surface id", "error", err)
		}
	default:
		// Transient fetch failure: keep the id and let the first edit decide.
		r.surfaceID = id
		slog.WarnContext(ctx, "could not verify persisted surface, keeping it",
			"surface_id", id,
			"error", err)
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	now := time.Now()
	r.maybeRefresh(ctx, now)

	text := Render(r.snapshot, now)
	if r.surfaceID != "" && text == r.lastApplied {
		return
	}
	r.apply(ctx, text)
}

func (r *Reconciler) maybeRefresh(ctx context.Context, now time.Time) {
	if !r.lastRefresh.IsZero() && now.Sub(r.lastRefresh) < r.refreshWait {
		return
	}
	r.lastRefresh = now

	records, err := r.source.ListActive(ctx)
	if err != nil {
		// Keep the previous snapshot; only the refresh cadence backs off.
		prev := r.refreshWait
		if prev <= 0 {
			prev = r.cfg.RefreshInterval
		}
		r.refreshWait = min(prev*2, r.cfg.RefreshMaxBackoff)
		slog.WarnContext(ctx, "restriction refresh failed, backing off",
			"next_attempt_in", r.refreshWait,
			"error", err)
		return
	}

	r.snapshot = records
	r.refreshWait = r.cfg.RefreshInterval
}

func (r *Reconciler) apply(ctx context.Context, text string) {
	if r.surfaceID == "" {
		r.create(ctx, text)
		return
	}

	id := r.surfaceID
	_, err := r.edits.Do(ctx, func(opCtx context.Context) (any, error) {
		return nil, r.surface.Edit(opCtx, r.cfg.ChannelID, id, text)
	})
	switch {
	case err == nil:
		r.lastApplied = text
	case errors.Is(err, ErrNotFound):
		slog.InfoContext(ctx, "status surface was deleted, recreating",
			"surface_id", id)
		r.surfaceID = ""
		r.lastApplied = ""
		if clearErr := r.state.ClearSurfaceID(ctx); clearErr != nil {
			slog.WarnContext(ctx, "failed to clear deleted surface id", "error", clearErr)
		}
	case ctx.Err() != nil:
		// Shutting down; nothing to log.
	default:
		slog.WarnContext(ctx, "status edit failed",
			"surface_id", id,
			"error", err)
	}
}

func (r *Reconciler) create(ctx context.Context, text string) {
	res, err := r.edits.Do(ctx, func(opCtx context.Context) (any, error) {
		return r.surface.Send(opCtx, r.cfg.ChannelID, text)
	})
	if err != nil {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "failed to create status surface", "error", err)
		}
		return
	}

	id, _ := res.(string)
	r.surfaceID = id
	r.lastApplied = text
	// Persist right away so a restart resumes this surface instead of
	// creating a duplicate.
	if err := r.state.SetSurfaceID(ctx, id); err != nil {
		slog.WarnContext(ctx, "failed to persist surface id",
			"surface_id", id,
			"error", err)
	}
	slog.InfoContext(ctx, "created status surface", "surface_id", id)
}
