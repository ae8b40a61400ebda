package sim_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/quadsim/internal/scenario"
	"github.com/san-kum/quadsim/internal/sim"
)

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		driver *sim.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		s, err := sim.New(scenario.Column(), defaultConfig(100))
		Expect(err).NotTo(HaveOccurred())
		driver = sim.NewDriver(s)
	})

	It("publishes a snapshot after each step", func() {
		ch, unsubscribe := driver.Subscribe(4)
		defer unsubscribe()

		Expect(driver.Step(ctx)).To(Succeed())
		Expect(driver.Step(ctx)).To(Succeed())

		var snap sim.Snapshot
		Eventually(ch).Should(Receive(&snap))
		Expect(snap.Step).To(Equal(1))
		Eventually(ch).Should(Receive(&snap))
		Expect(snap.Step).To(Equal(2))
	})

	It("closes the channel on unsubscribe", func() {
		ch, unsubscribe := driver.Subscribe(1)
		unsubscribe()
		unsubscribe()
		Eventually(ch).Should(BeClosed())
		Expect(driver.Step(ctx)).To(Succeed())
	})

	It("does not step while paused", func() {
		driver.SetPaused(true)
		Expect(driver.Paused()).To(BeTrue())
		Expect(driver.Step(ctx)).To(Succeed())
		Expect(driver.Snapshot(false).Step).To(BeZero())

		driver.SetPaused(false)
		Expect(driver.Step(ctx)).To(Succeed())
		Expect(driver.Snapshot(false).Step).To(Equal(1))
	})

	It("blocks an unthrottled run while paused", func() {
		driver.SetPaused(true)
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- driver.Run(runCtx, 0) }()

		Consistently(func() int {
			return driver.Snapshot(false).Step
		}, 100*time.Millisecond).Should(BeZero())
		Expect(done).NotTo(Receive())

		driver.SetPaused(false)
		Eventually(func() int {
			return driver.Snapshot(false).Step
		}).Should(BeNumerically(">", 0))

		driver.SetPaused(true)
		cancel()
		Eventually(done, time.Second).Should(Receive(BeNil()))
	})

	It("resets to the initial bodies", func() {
		initial := driver.Snapshot(false)
		for i := 0; i < 3; i++ {
			Expect(driver.Step(ctx)).To(Succeed())
		}
		driver.Add(newBody(1, 50, 50, 0, 0))

		Expect(driver.Reset()).To(Succeed())
		snap := driver.Snapshot(false)
		Expect(snap.Step).To(BeZero())
		Expect(snap.Bodies).To(Equal(initial.Bodies))
	})

	It("accepts bodies while running", func() {
		runCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- driver.Run(runCtx, 200) }()

		driver.Add(newBody(1, 70, 70, 0.1, 0))
		Eventually(func() int {
			return driver.Snapshot(false).Stats.Bodies
		}).Should(Equal(4))

		Eventually(done, time.Second).Should(Receive(BeNil()))
		Expect(driver.Snapshot(false).Step).To(BeNumerically(">", 0))
	})

	It("exposes the live simulator under the lock", func() {
		var n int
		driver.With(func(s *sim.Simulator) { n = len(s.Bodies()) })
		Expect(n).To(Equal(3))
	})
})
