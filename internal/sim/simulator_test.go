package sim_test

import (
	"context"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/quadsim/internal/body"
	"github.com/san-kum/quadsim/internal/quadtree"
	"github.com/san-kum/quadsim/internal/scenario"
	"github.com/san-kum/quadsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

func newBody(m, x, y, vx, vy float64) *body.Body {
	b, err := body.New(m, r2.Vec{X: x, Y: y}, r2.Vec{X: vx, Y: vy})
	Expect(err).NotTo(HaveOccurred())
	return b
}

func randomBodies(n int, size float64, seed int64) []*body.Body {
	rng := rand.New(rand.NewSource(seed))
	out := make([]*body.Body, n)
	for i := range out {
		out[i] = newBody(1+rng.Float64()*3, rng.Float64()*size, rng.Float64()*size, 0, 0)
	}
	return out
}

func defaultConfig(size float64) sim.Config {
	return sim.Config{DomainSize: size, Params: quadtree.DefaultParams(), Workers: 1}
}

type stepCounter struct{ n int }

func (c *stepCounter) Name() string              { return "steps" }
func (c *stepCounter) Observe(info *sim.StepInfo) { c.n++ }
func (c *stepCounter) Value() float64            { return float64(c.n) }
func (c *stepCounter) Reset()                    { c.n = 0 }

var _ = Describe("Simulator", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	DescribeTable("rejects invalid configs",
		func(mutate func(*sim.Config)) {
			cfg := defaultConfig(100)
			mutate(&cfg)
			_, err := sim.New(nil, cfg)
			Expect(err).To(MatchError(sim.ErrInvalidConfig))
		},
		Entry("zero domain", func(c *sim.Config) { c.DomainSize = 0 }),
		Entry("negative workers", func(c *sim.Config) { c.Workers = -1 }),
		Entry("negative sample interval", func(c *sim.Config) { c.SampleEvery = -2 }),
		Entry("bad params", func(c *sim.Config) { c.Params.G = 0 }),
	)

	It("rejects nil bodies", func() {
		_, err := sim.New([]*body.Body{nil}, defaultConfig(100))
		Expect(err).To(MatchError(sim.ErrInvalidConfig))
	})

	Describe("the three-body column", func() {
		var (
			s      *sim.Simulator
			bodies []*body.Body
		)

		BeforeEach(func() {
			bodies = scenario.Column()
			var err error
			s, err = sim.New(bodies, defaultConfig(100))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Step(ctx)).To(Succeed())
		})

		It("leaves the middle body at rest", func() {
			Expect(bodies[1].Velocity()).To(Equal(r2.Vec{}))
			Expect(bodies[1].Position()).To(Equal(r2.Vec{X: 10, Y: 20}))
		})

		It("pulls the outer bodies toward the center", func() {
			g := quadtree.DefaultG
			// F = 0.3125*G on mass 5.
			dv := 0.3125 * g / 5
			Expect(bodies[0].Velocity().X).To(BeZero())
			Expect(bodies[0].Velocity().Y).To(BeNumerically("~", dv, 1e-15))
			Expect(bodies[2].Velocity().Y).To(BeNumerically("~", -dv, 1e-15))
			Expect(bodies[0].Position().Y).To(BeNumerically("~", 10+dv, 1e-12))
		})

		It("counts the step and rebuilds the tree", func() {
			Expect(s.StepCount()).To(Equal(1))
			Expect(s.Tree().Mass()).To(BeNumerically("==", 15))
		})
	})

	It("does not depend on body order", func() {
		forward := randomBodies(40, 200, 3)
		reversed := make([]*body.Body, len(forward))
		for i, b := range body.CloneAll(forward) {
			reversed[len(forward)-1-i] = b
		}

		a, err := sim.New(forward, defaultConfig(200))
		Expect(err).NotTo(HaveOccurred())
		b, err := sim.New(reversed, defaultConfig(200))
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 5; i++ {
			Expect(a.Step(ctx)).To(Succeed())
			Expect(b.Step(ctx)).To(Succeed())
		}
		for i, fb := range forward {
			rb := reversed[len(forward)-1-i]
			Expect(fb.Position().X).To(BeNumerically("~", rb.Position().X, 1e-9))
			Expect(fb.Position().Y).To(BeNumerically("~", rb.Position().Y, 1e-9))
		}
	})

	It("gives identical results with parallel workers", func() {
		seq := randomBodies(500, 400, 9)
		par := body.CloneAll(seq)

		cfg := defaultConfig(400)
		a, _ := sim.New(seq, cfg)
		cfg.Workers = 4
		b, _ := sim.New(par, cfg)

		for i := 0; i < 3; i++ {
			Expect(a.Step(ctx)).To(Succeed())
			Expect(b.Step(ctx)).To(Succeed())
		}
		for i := range seq {
			Expect(par[i].Position()).To(Equal(seq[i].Position()))
		}
	})

	It("leaves bodies untouched when cancelled", func() {
		bodies := randomBodies(10, 100, 4)
		before := body.CloneAll(bodies)
		s, _ := sim.New(bodies, defaultConfig(100))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		Expect(s.Step(cancelled)).To(MatchError(context.Canceled))
		Expect(s.StepCount()).To(BeZero())
		for i := range bodies {
			Expect(bodies[i].Position()).To(Equal(before[i].Position()))
		}
	})

	It("incorporates added bodies at the next rebuild", func() {
		s, _ := sim.New(scenario.Column(), defaultConfig(100))
		s.Add(newBody(1, 60, 60, 0.1, 0))
		Expect(s.Tree().Stats().Bodies).To(Equal(3))

		Expect(s.Step(ctx)).To(Succeed())
		Expect(s.Bodies()).To(HaveLen(4))
		Expect(s.Tree().Stats().Bodies).To(Equal(4))
		Expect(s.Tree().Mass()).To(BeNumerically("==", 16))
	})

	It("samples frames and reports metrics from Run", func() {
		cfg := defaultConfig(100)
		cfg.SampleEvery = 2
		s, _ := sim.New(scenario.Column(), cfg)
		s.AddMetric(&stepCounter{})

		var seen []int
		s.AddObserver(sim.ObserverFunc(func(info *sim.StepInfo) {
			seen = append(seen, info.Step)
			Expect(info.Tree).NotTo(BeNil())
			Expect(info.Bodies).To(HaveLen(3))
		}))

		res, err := s.Run(ctx, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Steps).To(Equal(5))
		Expect(res.Metrics).To(HaveKeyWithValue("steps", 5.0))
		Expect(seen).To(Equal([]int{1, 2, 3, 4, 5}))
		Expect(res.Frames).To(HaveLen(3))
		Expect(res.Frames[0].Step).To(Equal(0))
		Expect(res.Frames[2].Step).To(Equal(4))
	})

	It("snapshots bodies and optionally tree nodes", func() {
		s, _ := sim.New(scenario.Column(), defaultConfig(100))

		snap := s.Snapshot(false)
		Expect(snap.Bodies).To(HaveLen(3))
		Expect(snap.Nodes).To(BeEmpty())
		// ceil(sqrt(5) * 10)
		Expect(snap.Bodies[0].Size).To(Equal(23.0))

		snap = s.Snapshot(true)
		Expect(snap.Nodes).To(HaveLen(snap.Stats.Nodes))
		Expect(snap.Root).To(Equal(quadtree.Bounds{Size: 100}))
	})
})
