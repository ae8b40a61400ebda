package sim

import (
	"context"
	"sync"

	"github.com/san-kum/quadsim/internal/body"
	"golang.org/x/time/rate"
)

// Driver runs a Simulator at a fixed cadence and lets other goroutines add
// bodies and read snapshots between steps.
type Driver struct {
	mu      sync.Mutex
	sim     *Simulator
	initial []*body.Body
	paused  bool
	resume  chan struct{} // closed when the driver is unpaused

	subMu sync.Mutex
	subs  map[chan Snapshot]bool
}

func NewDriver(s *Simulator) *Driver {
	return &Driver{
		sim:     s,
		initial: body.CloneAll(s.Bodies()),
		subs:    make(map[chan Snapshot]bool),
	}
}

// Step advances one step unless the driver is paused and publishes the new
// snapshot to subscribers.
func (d *Driver) Step(ctx context.Context) error {
	d.mu.Lock()
	if d.paused {
		d.mu.Unlock()
		return nil
	}
	err := d.sim.Step(ctx)
	var snap Snapshot
	if err == nil && d.hasSubscribers() {
		snap = d.sim.Snapshot(false)
	}
	d.mu.Unlock()

	if err != nil {
		return err
	}
	if snap.Bodies != nil {
		d.publish(snap)
	}
	return nil
}

// Run steps at tps steps per second until ctx is done. A tps of zero or
// less runs unthrottled.
func (d *Driver) Run(ctx context.Context, tps float64) error {
	limit := rate.Inf
	if tps > 0 {
		limit = rate.Limit(tps)
	}
	limiter := rate.NewLimiter(limit, 1)
	for {
		if resume := d.pausedUntil(); resume != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-resume:
			}
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			// Wait fails early when the next slot lies past the deadline.
			<-ctx.Done()
			return nil
		}
		if err := d.Step(ctx); err != nil {
			return ignoreCancel(ctx, err)
		}
	}
}

// ignoreCancel treats errors caused by ctx ending as a clean stop.
func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Add queues a body into the live simulation.
func (d *Driver) Add(b *body.Body) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sim.Add(b)
}

func (d *Driver) Snapshot(withNodes bool) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sim.Snapshot(withNodes)
}

// With runs fn while holding the driver lock, for callers that need the
// live tree (for example used-node overlays).
func (d *Driver) With(fn func(s *Simulator)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.sim)
}

func (d *Driver) SetPaused(p bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case p && !d.paused:
		d.resume = make(chan struct{})
	case !p && d.paused:
		close(d.resume)
	}
	d.paused = p
}

// pausedUntil returns a channel closed on resume, or nil when running.
func (d *Driver) pausedUntil() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.paused {
		return nil
	}
	return d.resume
}

func (d *Driver) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Reset restores the bodies the driver started with. Metrics and
// observers carry over.
func (d *Driver) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := New(body.CloneAll(d.initial), d.sim.cfg)
	if err != nil {
		return err
	}
	next.metrics = d.sim.metrics
	next.observers = d.sim.observers
	next.log = d.sim.log
	for _, m := range next.metrics {
		m.Reset()
	}
	d.sim = next
	return nil
}

// Subscribe returns a channel of snapshots published after each step.
// Slow subscribers miss snapshots rather than stall the driver. Call the
// returned function to unsubscribe.
func (d *Driver) Subscribe(buffer int) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, buffer)
	d.subMu.Lock()
	d.subs[ch] = true
	d.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.subMu.Lock()
			delete(d.subs, ch)
			d.subMu.Unlock()
			close(ch)
		})
	}
}

func (d *Driver) hasSubscribers() bool {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	return len(d.subs) > 0
}

func (d *Driver) publish(snap Snapshot) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for ch := range d.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
