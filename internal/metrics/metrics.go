package metrics

import (
	"math"

	"github.com/san-kum/quadsim/internal/body"
	"github.com/san-kum/quadsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

// Default returns the standard metric set for a domain of the given size.
func Default(domainSize float64) []sim.Metric {
	return []sim.Metric{
		NewKineticEnergy(),
		NewMomentumDrift(),
		NewCenterOfMassDrift(),
		NewEscaped(domainSize),
		NewClampRate(),
	}
}

// KineticEnergy reports the total kinetic energy at the latest step.
type KineticEnergy struct {
	name  string
	value float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(info *sim.StepInfo) {
	k.value = Kinetic(info.Bodies)
}

func (k *KineticEnergy) Value() float64 { return k.value }
func (k *KineticEnergy) Reset()         { k.value = 0 }

// Kinetic is the sum of m|v|²/2.
func Kinetic(bodies []*body.Body) float64 {
	total := 0.0
	for _, b := range bodies {
		total += 0.5 * b.Mass() * r2.Norm2(b.Velocity())
	}
	return total
}

// Momentum is the sum of m·v.
func Momentum(bodies []*body.Body) r2.Vec {
	var p r2.Vec
	for _, b := range bodies {
		p = r2.Add(p, r2.Scale(b.Mass(), b.Velocity()))
	}
	return p
}

// CenterOfMass is the mass-weighted mean position.
func CenterOfMass(bodies []*body.Body) r2.Vec {
	var c r2.Vec
	m := body.TotalMass(bodies)
	if m == 0 {
		return c
	}
	for _, b := range bodies {
		c = r2.Add(c, r2.Scale(b.Mass(), b.Position()))
	}
	return r2.Scale(1/m, c)
}

// MomentumDrift tracks the largest change in total momentum since the first
// observation. The clamp and the tree approximation both break Newton's
// third law slightly, so this is not zero in general.
type MomentumDrift struct {
	name     string
	initial  r2.Vec
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(info *sim.StepInfo) {
	p := Momentum(info.Bodies)
	if m.samples == 0 {
		m.initial = p
	}
	m.samples++
	m.maxDrift = math.Max(m.maxDrift, r2.Norm(r2.Sub(p, m.initial)))
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = r2.Vec{}
	m.maxDrift = 0
	m.samples = 0
}

// CenterOfMassDrift tracks how far the system's center of mass has moved
// from its first observed position.
type CenterOfMassDrift struct {
	name     string
	initial  r2.Vec
	maxDrift float64
	samples  int
}

func NewCenterOfMassDrift() *CenterOfMassDrift {
	return &CenterOfMassDrift{name: "com_drift"}
}

func (c *CenterOfMassDrift) Name() string { return c.name }

func (c *CenterOfMassDrift) Observe(info *sim.StepInfo) {
	com := CenterOfMass(info.Bodies)
	if c.samples == 0 {
		c.initial = com
	}
	c.samples++
	c.maxDrift = math.Max(c.maxDrift, r2.Norm(r2.Sub(com, c.initial)))
}

func (c *CenterOfMassDrift) Value() float64 { return c.maxDrift }

func (c *CenterOfMassDrift) Reset() {
	c.initial = r2.Vec{}
	c.maxDrift = 0
	c.samples = 0
}

// Escaped counts bodies outside the simulation domain at the latest step.
type Escaped struct {
	name  string
	size  float64
	count int
}

func NewEscaped(domainSize float64) *Escaped {
	return &Escaped{name: "escaped", size: domainSize}
}

func (e *Escaped) Name() string { return e.name }

func (e *Escaped) Observe(info *sim.StepInfo) {
	e.count = 0
	for _, b := range info.Bodies {
		p := b.Position()
		if !(p.X >= 0 && p.X <= e.size && p.Y >= 0 && p.Y <= e.size) {
			e.count++
		}
	}
}

func (e *Escaped) Value() float64 { return float64(e.count) }
func (e *Escaped) Reset()         { e.count = 0 }

// ClampRate is the mean number of near-field clamps per step.
type ClampRate struct {
	name    string
	total   int64
	samples int
}

func NewClampRate() *ClampRate {
	return &ClampRate{name: "clamps_per_step"}
}

func (c *ClampRate) Name() string { return c.name }

func (c *ClampRate) Observe(info *sim.StepInfo) {
	c.total += info.Clamped
	c.samples++
}

func (c *ClampRate) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.total) / float64(c.samples)
}

func (c *ClampRate) Reset() {
	c.total = 0
	c.samples = 0
}
