package gateway_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"warden.app/bot/internal/gateway"
)

// dispatchRecorder captures the start time of every dispatch attempt.
type dispatchRecorder struct {
	mu     sync.Mutex
	starts []time.Time
	labels []string
}

func (r *dispatchRecorder) record(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, time.Now())
	r.labels = append(r.labels, label)
}

func (r *dispatchRecorder) snapshot() ([]time.Time, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.starts...), append([]string(nil), r.labels...)
}

var _ = Describe("Gateway", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	run := func(g *gateway.Gateway) {
		go func() {
			defer GinkgoRecover()
			_ = g.Run(ctx)
		}()
	}

	Describe("dispatch ordering and spacing", func() {
		It("executes every submitted operation in FIFO order with at least MinInterval between starts", func() {
			const minInterval = 25 * time.Millisecond

			g := gateway.New(gateway.Config{
				Name:        "test",
				MinInterval: minInterval,
			})
			run(g)

			rec := &dispatchRecorder{}
			var pendings []*gateway.Pending
			for i := 0; i < 4; i++ {
				label := fmt.Sprintf("op-%d", i)
				pendings = append(pendings, g.Submit(ctx, func(context.Context) (any, error) {
					rec.record(label)
					return label, nil
				}))
			}

			for i, p := range pendings {
				val, err := p.Wait(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(val).To(Equal(fmt.Sprintf("op-%d", i)))
			}

			starts, labels := rec.snapshot()
			Expect(labels).To(Equal([]string{"op-0", "op-1", "op-2", "op-3"}))
			for i := 1; i < len(starts); i++ {
				gap := starts[i].Sub(starts[i-1])
				Expect(gap).To(BeNumerically(">=", minInterval-time.Millisecond),
					"dispatch %d started %v after dispatch %d", i, gap, i-1)
			}
		})
	})

	Describe("rate-limited failures", func() {
		It("retries the same operation with non-decreasing backoff until it succeeds", func() {
			g := gateway.New(gateway.Config{
				Name:        "test",
				BaseBackoff: 20 * time.Millisecond,
				MaxBackoff:  200 * time.Millisecond,
			})
			run(g)

			rec := &dispatchRecorder{}
			calls := 0
			val, err := g.Do(ctx, func(context.Context) (any, error) {
				rec.record("attempt")
				calls++
				if calls <= 2 {
					return nil, fmt.Errorf("provider says slow down: %w", gateway.ErrRateLimited)
				}
				return "done", nil
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("done"))
			Expect(calls).To(Equal(3))

			starts, _ := rec.snapshot()
			Expect(starts).To(HaveLen(3))
			first := starts[1].Sub(starts[0])
			second := starts[2].Sub(starts[1])
			Expect(first).To(BeNumerically(">=", 19*time.Millisecond))
			Expect(second).To(BeNumerically(">=", first-time.Millisecond))
		})

		It("does not advance the queue past a rate-limited operation", func() {
			g := gateway.New(gateway.Config{
				Name:        "test",
				BaseBackoff: 10 * time.Millisecond,
				MaxBackoff:  10 * time.Millisecond,
			})
			run(g)

			rec := &dispatchRecorder{}
			firstCalls := 0
			first := g.Submit(ctx, func(context.Context) (any, error) {
				rec.record("first")
				firstCalls++
				if firstCalls < 3 {
					return nil, gateway.ErrRateLimited
				}
				return nil, nil
			})
			second := g.Submit(ctx, func(context.Context) (any, error) {
				rec.record("second")
				return nil, nil
			})

			_, err := first.Wait(ctx)
			Expect(err).NotTo(HaveOccurred())
			_, err = second.Wait(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, labels := rec.snapshot()
			Expect(labels).To(Equal([]string{"first", "first", "first", "second"}))
		})
	})

	Describe("quota exhaustion", func() {
		It("fails the operation immediately and flips the degraded flag", func() {
			g := gateway.New(gateway.Config{Name: "test", MaxRetries: 5})
			run(g)

			Expect(g.Degraded()).To(BeFalse())

			calls := 0
			_, err := g.Do(ctx, func(context.Context) (any, error) {
				calls++
				return nil, fmt.Errorf("billing hard stop: %w", gateway.ErrQuotaExhausted)
			})

			Expect(err).To(MatchError(gateway.ErrQuotaExhausted))
			Expect(calls).To(Equal(1))
			Expect(g.Degraded()).To(BeTrue())
		})
	})

	Describe("transient failures", func() {
		It("retries with a fixed delay up to MaxRetries, then surfaces the error", func() {
			g := gateway.New(gateway.Config{
				Name:       "test",
				RetryDelay: 5 * time.Millisecond,
				MaxRetries: 2,
			})
			run(g)

			calls := 0
			boom := errors.New("connection reset")
			_, err := g.Do(ctx, func(context.Context) (any, error) {
				calls++
				return nil, boom
			})

			Expect(err).To(MatchError(boom))
			Expect(calls).To(Equal(3)) // initial attempt + 2 retries
		})

		It("treats a per-call timeout as a transient failure", func() {
			g := gateway.New(gateway.Config{
				Name:        "test",
				CallTimeout: 15 * time.Millisecond,
				RetryDelay:  5 * time.Millisecond,
				MaxRetries:  1,
			})
			run(g)

			calls := 0
			_, err := g.Do(ctx, func(opCtx context.Context) (any, error) {
				calls++
				<-opCtx.Done()
				return nil, opCtx.Err()
			})

			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(calls).To(Equal(2))
		})
	})

	Describe("shutdown", func() {
		It("fails queued operations with the context error instead of hanging", func() {
			g := gateway.New(gateway.Config{
				Name:        "test",
				MinInterval: time.Hour, // second op can never be dispatched
			})
			run(g)

			first := g.Submit(ctx, func(context.Context) (any, error) {
				return nil, nil
			})
			_, err := first.Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())

			second := g.Submit(ctx, func(context.Context) (any, error) {
				return nil, nil
			})
			cancel()

			_, err = second.Wait(context.Background())
			Expect(err).To(MatchError(context.Canceled))
		})

		It("lets a caller stop waiting without giving up the queue slot", func() {
			g := gateway.New(gateway.Config{Name: "test"})
			run(g)

			release := make(chan struct{})
			done := make(chan struct{})
			p := g.Submit(ctx, func(context.Context) (any, error) {
				<-release
				close(done)
				return nil, nil
			})

			waitCtx, waitCancel := context.WithCancel(context.Background())
			waitCancel()
			_, err := p.Wait(waitCtx)
			Expect(err).To(MatchError(context.Canceled))

			close(release)
			Eventually(done).Should(BeClosed())
		})
	})
})
