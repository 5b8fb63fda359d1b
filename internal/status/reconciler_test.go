package status_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"warden.app/bot/internal/gateway"
	"warden.app/bot/internal/restriction"
	"warden.app/bot/internal/status"
)

var _ = Describe("Reconciler", func() {
	var (
		ctx     context.Context
		cancel  context.CancelFunc
		surface *fakeSurface
		source  *restriction.Memory
		state   *status.MemoryStore
		cfg     status.Config
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		surface = newFakeSurface()
		source = restriction.NewMemory()
		state = status.NewMemoryStore()
		cfg = status.Config{
			ChannelID:       "status-channel",
			Tick:            10 * time.Millisecond,
			RefreshInterval: time.Millisecond,
			EditInterval:    time.Millisecond,
			EditCooldown:    20 * time.Millisecond,
		}
	})

	AfterEach(func() {
		cancel()
	})

	start := func(src restriction.Source) {
		r := status.NewReconciler(cfg, src, surface, state)
		go func() {
			defer GinkgoRecover()
			_ = r.Run(ctx)
		}()
	}

	It("creates a surface on first tick and persists its identifier", func() {
		start(source)

		Eventually(func() int {
			sends, _ := surface.counts()
			return sends
		}).Should(Equal(1))

		Expect(surface.content("m1")).To(ContainSubstring("None right now"))
		Eventually(func() string {
			id, _ := state.SurfaceID(context.Background())
			return id
		}).Should(Equal("m1"))
	})

	It("issues no edits while the rendered text is unchanged", func() {
		start(source)

		Eventually(func() int {
			sends, _ := surface.counts()
			return sends
		}).Should(Equal(1))

		Consistently(func() int {
			_, edits := surface.counts()
			return edits
		}, 150*time.Millisecond).Should(BeZero())
	})

	It("updates the surface when restrictions change", func() {
		start(source)

		Eventually(func() int {
			sends, _ := surface.counts()
			return sends
		}).Should(Equal(1))

		_, err := source.Restrict(ctx, "42", "alice", time.Hour)
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() string {
			return surface.content("m1")
		}).Should(ContainSubstring("alice"))
	})

	It("recreates the surface when it was deleted out-of-band and re-persists the id", func() {
		start(source)

		Eventually(func() int {
			sends, _ := surface.counts()
			return sends
		}).Should(Equal(1))

		surface.delete("m1")
		_, err := source.Restrict(ctx, "42", "alice", time.Hour)
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int {
			sends, _ := surface.counts()
			return sends
		}).Should(Equal(2))
		Eventually(func() string {
			id, _ := state.SurfaceID(context.Background())
			return id
		}).Should(Equal("m2"))
		Eventually(func() string {
			return surface.content("m2")
		}).Should(ContainSubstring("alice"))
	})

	It("resumes a persisted surface instead of creating a duplicate", func() {
		id, err := surface.Send(context.Background(), "status-channel", "stale")
		Expect(err).NotTo(HaveOccurred())
		Expect(state.SetSurfaceID(context.Background(), id)).To(Succeed())

		start(source)

		Eventually(func() string {
			return surface.content(id)
		}).Should(ContainSubstring("None right now"))

		sends, _ := surface.counts()
		Expect(sends).To(Equal(1)) // only the seed message
	})

	It("creates fresh when the persisted identifier no longer resolves", func() {
		Expect(state.SetSurfaceID(context.Background(), "m99")).To(Succeed())

		start(source)

		Eventually(func() int {
			sends, _ := surface.counts()
			return sends
		}).Should(Equal(1))
		Eventually(func() string {
			id, _ := state.SurfaceID(context.Background())
			return id
		}).Should(Equal("m1"))
	})

	It("keeps the last snapshot when refresh fails", func() {
		src := &funcSource{}
		src.set(func(ctx context.Context) ([]restriction.Record, error) {
			return []restriction.Record{{
				AccountID: "42",
				Label:     "alice",
				ExpiresAt: time.Now().Add(time.Hour),
			}}, nil
		})
		start(src)

		Eventually(func() string {
			return surface.content("m1")
		}).Should(ContainSubstring("alice"))

		src.set(func(ctx context.Context) ([]restriction.Record, error) {
			return nil, errors.New("member list unavailable")
		})

		Consistently(func() string {
			return surface.content("m1")
		}, 150*time.Millisecond).Should(ContainSubstring("alice"))
	})

	It("rides out a rate-limited edit without abandoning the surface", func() {
		start(source)

		Eventually(func() int {
			sends, _ := surface.counts()
			return sends
		}).Should(Equal(1))

		surface.failNextEdit(gateway.ErrRateLimited)
		_, err := source.Restrict(ctx, "42", "alice", time.Hour)
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() string {
			return surface.content("m1")
		}, time.Second).Should(ContainSubstring("alice"))

		sends, _ := surface.counts()
		Expect(sends).To(Equal(1))
	})
})
