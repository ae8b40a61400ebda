package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/san-kum/quadsim/internal/body"
	"github.com/san-kum/quadsim/internal/logger"
	"github.com/san-kum/quadsim/internal/quadtree"
	"github.com/san-kum/quadsim/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"
)

// Simulator advances a body set one unit timestep at a time. Every step
// runs in three phases: the net force on each body is computed against the
// current tree, all bodies are updated, and the tree is rebuilt from the new
// positions. No body moves until every force has been computed.
//
// A Simulator is not safe for concurrent use; see Driver.
type Simulator struct {
	cfg       Config
	bodies    []*body.Body
	tree      *quadtree.Tree
	forces    []r2.Vec
	step      int
	metrics   []Metric
	observers []Observer
	log       *slog.Logger
}

func New(bodies []*body.Body, cfg Config) (*Simulator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	for i, b := range bodies {
		if b == nil {
			return nil, fmt.Errorf("%w: body %d is nil", ErrInvalidConfig, i)
		}
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	s := &Simulator{
		cfg:    cfg,
		bodies: append([]*body.Body(nil), bodies...),
		log:    logger.WithComponent("sim"),
	}
	s.tree = quadtree.Build(s.bodies, cfg.DomainSize, cfg.Params)
	return s, nil
}

func validateConfig(cfg Config) error {
	if math.IsNaN(cfg.DomainSize) || math.IsInf(cfg.DomainSize, 0) || cfg.DomainSize <= 0 {
		return fmt.Errorf("%w: domain size must be positive, got %v", ErrInvalidConfig, cfg.DomainSize)
	}
	if err := cfg.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, cfg.Workers)
	}
	if cfg.SampleEvery < 0 {
		return fmt.Errorf("%w: sample interval must be >= 0, got %d", ErrInvalidConfig, cfg.SampleEvery)
	}
	return nil
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) SetLogger(l *slog.Logger) { s.log = l }

// Add appends a body. It receives forces from the next step on and
// attracts others once the following rebuild includes it.
func (s *Simulator) Add(b *body.Body) {
	s.bodies = append(s.bodies, b)
}

// Bodies returns the live body slice. Callers must not modify it.
func (s *Simulator) Bodies() []*body.Body { return s.bodies }
func (s *Simulator) Tree() *quadtree.Tree { return s.tree }
func (s *Simulator) StepCount() int       { return s.step }
func (s *Simulator) Config() Config       { return s.cfg }

// Step advances the simulation by one timestep. If ctx is cancelled during
// the force phase, no body is modified and the step is not counted.
func (s *Simulator) Step(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "sim.Step",
		trace.WithAttributes(
			attribute.Int("step", s.step+1),
			attribute.Int("bodies", len(s.bodies)),
		))
	defer span.End()

	info := StepInfo{Step: s.step + 1}

	start := time.Now()
	if err := s.computeForces(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	info.Force = time.Since(start)
	info.Clamped = s.tree.Stats().Clamped

	start = time.Now()
	for i, b := range s.bodies {
		b.Update(s.forces[i])
	}
	info.Apply = time.Since(start)

	start = time.Now()
	_, buildSpan := tracing.StartSpan(ctx, "quadtree.Build")
	s.tree = quadtree.Build(s.bodies, s.cfg.DomainSize, s.cfg.Params)
	buildSpan.End()
	info.Build = time.Since(start)

	s.step++
	info.Bodies = s.bodies
	info.Tree = s.tree

	if st := s.tree.Stats(); st.Excluded > 0 {
		s.log.Warn("bodies excluded from tree", "step", s.step, "excluded", st.Excluded)
	}
	s.log.Debug("step complete",
		"step", s.step,
		"force", info.Force,
		"build", info.Build,
		"nodes", s.tree.Stats().Nodes,
	)

	for _, m := range s.metrics {
		m.Observe(&info)
	}
	for _, o := range s.observers {
		o.OnStep(&info)
	}
	return nil
}

// computeForces fills s.forces against the current tree. Bodies are split
// into contiguous chunks, one per worker.
func (s *Simulator) computeForces(ctx context.Context) error {
	n := len(s.bodies)
	if cap(s.forces) < n {
		s.forces = make([]r2.Vec, n)
	}
	s.forces = s.forces[:n]

	tree := s.tree
	workers := s.cfg.Workers
	if workers <= 1 || n < 2*workers {
		for i, b := range s.bodies {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			s.forces[i] = tree.NetForce(b)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				s.forces[i] = tree.NetForce(s.bodies[i])
			}
			return nil
		})
	}
	return g.Wait()
}

// Run resets metrics and advances steps times, sampling frames every
// cfg.SampleEvery steps (including the initial state).
func (s *Simulator) Run(ctx context.Context, steps int) (*Result, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: steps must be >= 0, got %d", ErrInvalidConfig, steps)
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	result := &Result{Metrics: make(map[string]float64)}
	sample := s.cfg.SampleEvery
	if sample > 0 {
		result.Frames = make([]Snapshot, 0, steps/sample+1)
		result.Frames = append(result.Frames, s.Snapshot(false))
	}

	s.log.Info("run started", "bodies", len(s.bodies), "steps", steps, "workers", s.cfg.Workers)
	start := time.Now()
	var runErr error
	for i := 0; i < steps; i++ {
		if err := s.Step(ctx); err != nil {
			runErr = err
			break
		}
		result.Steps++
		if sample > 0 && s.step%sample == 0 {
			result.Frames = append(result.Frames, s.Snapshot(false))
		}
	}
	result.Duration = time.Since(start)

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	s.log.Info("run finished", "steps", result.Steps, "duration", result.Duration)
	return result, runErr
}

// Snapshot copies the current state. withNodes includes every tree node's
// bounds for overlays.
func (s *Simulator) Snapshot(withNodes bool) Snapshot {
	snap := Snapshot{
		Step:       s.step,
		DomainSize: s.cfg.DomainSize,
		Bodies:     make([]BodyState, len(s.bodies)),
		Root:       s.tree.Bounds(),
		Stats:      s.tree.Stats(),
	}
	for i, b := range s.bodies {
		p, v := b.Position(), b.Velocity()
		snap.Bodies[i] = BodyState{
			Mass: b.Mass(),
			X:    p.X,
			Y:    p.Y,
			VX:   v.X,
			VY:   v.Y,
			Size: b.DisplaySize(),
		}
	}
	if withNodes {
		snap.Nodes = s.tree.AllBounds()
	}
	return snap
}
