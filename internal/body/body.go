// Package body defines the point masses moved by the simulator.
//
// A [Body] is validated once at construction and afterwards only changes
// through [Body.Update], which integrates a net force with a fixed unit
// timestep:
//
//	velocity += force / mass
//	position += velocity
package body

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Body is a point mass with a position and a velocity.
type Body struct {
	mass     float64
	position r2.Vec
	velocity r2.Vec
}

// New validates and returns a body. Mass must be positive and finite and
// both position components must be finite and non-negative; the simulation
// domain is a square anchored at the origin.
func New(mass float64, position, velocity r2.Vec) (*Body, error) {
	if math.IsNaN(mass) || math.IsInf(mass, 0) || mass <= 0 {
		return nil, &ParameterError{Field: "mass", Value: mass, Reason: "must be positive and finite"}
	}
	if err := checkCoord("position.x", position.X, true); err != nil {
		return nil, err
	}
	if err := checkCoord("position.y", position.Y, true); err != nil {
		return nil, err
	}
	if err := checkCoord("velocity.x", velocity.X, false); err != nil {
		return nil, err
	}
	if err := checkCoord("velocity.y", velocity.Y, false); err != nil {
		return nil, err
	}
	return &Body{mass: mass, position: position, velocity: velocity}, nil
}

// FromComponents builds a body from slice coordinates, as produced by
// scenario parsers. Position and velocity must have exactly two components.
func FromComponents(mass float64, position, velocity []float64) (*Body, error) {
	if len(position) != 2 {
		return nil, &ParameterError{Field: "position", Value: position, Reason: "must have 2 components"}
	}
	if len(velocity) != 2 {
		return nil, &ParameterError{Field: "velocity", Value: velocity, Reason: "must have 2 components"}
	}
	return New(mass, r2.Vec{X: position[0], Y: position[1]}, r2.Vec{X: velocity[0], Y: velocity[1]})
}

func checkCoord(field string, v float64, nonNegative bool) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ParameterError{Field: field, Value: v, Reason: "must be finite"}
	}
	if nonNegative && v < 0 {
		return &ParameterError{Field: field, Value: v, Reason: "must be non-negative"}
	}
	return nil
}

// Update applies a net force for one unit timestep.
func (b *Body) Update(force r2.Vec) {
	if !(b.mass > 0) {
		panic(ErrArithmeticDegenerate)
	}
	b.velocity = r2.Add(b.velocity, r2.Scale(1/b.mass, force))
	b.position = r2.Add(b.position, b.velocity)
}

// Radius is the separation floor used by the tree's near-field clamp.
func (b *Body) Radius() float64 {
	return math.Ceil(math.Sqrt(2 * b.mass))
}

// DisplaySize is the on-screen diameter renderers use for this body.
func (b *Body) DisplaySize() float64 {
	return math.Ceil(math.Sqrt(b.mass) * 10)
}

func (b *Body) Mass() float64    { return b.mass }
func (b *Body) Position() r2.Vec { return b.position }
func (b *Body) Velocity() r2.Vec { return b.velocity }

// Clone returns an independent copy, used by drivers to reset a run.
func (b *Body) Clone() *Body {
	c := *b
	return &c
}

func (b *Body) String() string {
	return fmt.Sprintf("{%g, [%g, %g], [%g, %g]}",
		b.mass, b.position.X, b.position.Y, b.velocity.X, b.velocity.Y)
}

// TotalMass sums the masses of bodies.
func TotalMass(bodies []*Body) float64 {
	total := 0.0
	for _, b := range bodies {
		total += b.mass
	}
	return total
}

// CloneAll deep-copies a body slice.
func CloneAll(bodies []*Body) []*Body {
	out := make([]*Body, len(bodies))
	for i, b := range bodies {
		out[i] = b.Clone()
	}
	return out
}
