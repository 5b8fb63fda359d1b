package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"warden.app/bot/common/logger"
)

// Failure taxonomy for external calls. Operations wrap provider errors with
// these sentinels so the gateway can tell a retryable stall from a dead end.
var (
	// ErrRateLimited marks a "too many requests" response. The gateway keeps
	// retrying the same operation with exponential backoff and does not
	// advance the queue past it.
	ErrRateLimited = errors.New("rate limited")

	// ErrQuotaExhausted marks a hard quota or billing failure. The operation
	// fails immediately and the gateway flips its degraded flag so callers
	// can switch to a fallback policy.
	ErrQuotaExhausted = errors.New("quota exhausted")
)

// Operation is a deferred external call executed by the gateway.
type Operation func(ctx context.Context) (any, error)

// Result is the terminal outcome of a submitted operation.
type Result struct {
	Value any
	Err   error
}

// Pending is the caller's handle on a submitted operation. The gateway owns
// the operation until it resolves; the caller owns only this handle.
type Pending struct {
	ch chan Result
}

// Wait blocks until the operation resolves or ctx is done. The operation keeps
// its queue slot even if the caller stops waiting.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-p.ch:
		return res.Value, res.Err
	}
}

type Config struct {
	Name        string        // used in logs, e.g. "classifier"
	MinInterval time.Duration // min gap between consecutive dispatch starts
	CallTimeout time.Duration // per-attempt upper bound
	BaseBackoff time.Duration // first rate-limit backoff, doubles up to MaxBackoff
	MaxBackoff  time.Duration
	RetryDelay  time.Duration // fixed wait between transient retries
	MaxRetries  int           // transient retries per operation before failing it
}

// Gateway serializes all calls to one rate-limited external service.
// Operations are dispatched strictly in submission order, at most one in
// flight, with at least MinInterval between the starts of consecutive
// dispatches. Concurrent callers anywhere in the process share the queue;
// calling the service directly would bypass the spacing guarantee.
type Gateway struct {
	cfg Config

	mu    sync.Mutex
	queue []*task
	wake  chan struct{}

	lastDispatch time.Time
	degraded     atomic.Bool
}

type task struct {
	ctx     context.Context
	op      Operation
	pending *Pending
}

func New(cfg Config) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 20 * time.Second
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Gateway{
		cfg:  cfg,
		wake: make(chan struct{}, 1),
	}
}

// Submit enqueues op and returns immediately. Submission never fails; only
// the operation's own execution can. ctx bounds the operation's lifetime: if
// it is cancelled before dispatch, the pending handle resolves with its error.
func (g *Gateway) Submit(ctx context.Context, op Operation) *Pending {
	p := &Pending{ch: make(chan Result, 1)}
	t := &task{ctx: ctx, op: op, pending: p}

	g.mu.Lock()
	g.queue = append(g.queue, t)
	g.mu.Unlock()

	select {
	case g.wake <- struct{}{}:
	default:
	}
	return p
}

// Do submits op and waits for its result.
func (g *Gateway) Do(ctx context.Context, op Operation) (any, error) {
	return g.Submit(ctx, op).Wait(ctx)
}

// Degraded reports whether a quota-exhausted failure has been observed.
// Callers consult this to switch to a local fallback policy.
func (g *Gateway) Degraded() bool {
	return g.degraded.Load()
}

// Run drains the queue until ctx is cancelled. It is the only goroutine that
// dispatches operations; run exactly one per gateway.
func (g *Gateway) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "warden.gateway." + g.cfg.Name,
	})

	slog.InfoContext(ctx, "gateway started",
		"gateway", g.cfg.Name,
		"min_interval", g.cfg.MinInterval)

	for {
		if ctx.Err() != nil {
			g.failQueued(ctx.Err())
			return ctx.Err()
		}

		t := g.next()
		if t == nil {
			select {
			case <-ctx.Done():
				g.failQueued(ctx.Err())
				return ctx.Err()
			case <-g.wake:
			}
			continue
		}

		g.process(ctx, t)
	}
}

func (g *Gateway) next() *task {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queue) == 0 {
		return nil
	}
	t := g.queue[0]
	g.queue = g.queue[1:]
	return t
}

func (g *Gateway) process(ctx context.Context, t *task) {
	backoff := g.cfg.BaseBackoff
	attempt := 0
	retries := 0

	for {
		if t.ctx.Err() != nil {
			t.pending.ch <- Result{Err: t.ctx.Err()}
			return
		}

		// Enforce spacing from the previous dispatch start.
		if wait := g.cfg.MinInterval - time.Since(g.lastDispatch); wait > 0 {
			if err := sleepCtx(ctx, wait); err != nil {
				t.pending.ch <- Result{Err: err}
				return
			}
		}

		attempt++
		g.lastDispatch = time.Now()

		callCtx, cancel := context.WithTimeout(t.ctx, g.cfg.CallTimeout)
		start := time.Now()
		val, err := t.op(callCtx)
		cancel()

		switch {
		case err == nil:
			t.pending.ch <- Result{Value: val}
			return

		case errors.Is(err, ErrQuotaExhausted):
			if g.degraded.CompareAndSwap(false, true) {
				slog.ErrorContext(ctx, "external service quota exhausted, entering degraded mode",
					"gateway", g.cfg.Name,
					"attempt", attempt,
					"error", err)
			}
			t.pending.ch <- Result{Err: err}
			return

		case t.ctx.Err() != nil:
			// The caller's context expired mid-call; not worth retrying.
			t.pending.ch <- Result{Err: t.ctx.Err()}
			return

		case errors.Is(err, ErrRateLimited):
			slog.WarnContext(ctx, "external call rate limited, backing off",
				"gateway", g.cfg.Name,
				"attempt", attempt,
				"backoff", backoff,
				"elapsed", time.Since(start))
			if err := sleepCtx(ctx, backoff); err != nil {
				t.pending.ch <- Result{Err: err}
				return
			}
			backoff = min(backoff*2, g.cfg.MaxBackoff)

		default:
			retries++
			if retries > g.cfg.MaxRetries {
				t.pending.ch <- Result{Err: fmt.Errorf("after %d attempts: %w", attempt, err)}
				return
			}
			slog.WarnContext(ctx, "external call failed, retrying",
				"gateway", g.cfg.Name,
				"attempt", attempt,
				"elapsed", time.Since(start),
				"error", err)
			if err := sleepCtx(ctx, g.cfg.RetryDelay); err != nil {
				t.pending.ch <- Result{Err: err}
				return
			}
		}
	}
}

func (g *Gateway) failQueued(err error) {
	g.mu.Lock()
	queued := g.queue
	g.queue = nil
	g.mu.Unlock()

	for _, t := range queued {
		t.pending.ch <- Result{Err: err}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
