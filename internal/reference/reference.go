// Package reference computes exact and third-party gravitational forces used
// to check the quadtree's approximation.
package reference

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/quadsim/internal/body"
	"github.com/san-kum/quadsim/internal/quadtree"
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"
)

// Direct returns the O(n²) pairwise force on every body, skipping
// coincident pairs and applying the same near-field clamp as the tree.
func Direct(bodies []*body.Body, p quadtree.Params) []r2.Vec {
	out := make([]r2.Vec, len(bodies))
	for i, target := range bodies {
		var sum r2.Vec
		for _, b := range bodies {
			v := r2.Sub(b.Position(), target.Position())
			sum = r2.Add(sum, clamped(target.Mass(), b.Mass(), v))
		}
		out[i] = r2.Scale(p.G, sum)
	}
	return out
}

// particle adapts a body to gonum's Particle2.
type particle struct{ b *body.Body }

func (p particle) Coord2() r2.Vec { return p.b.Position() }
func (p particle) Mass() float64  { return p.b.Mass() }

// Gonum computes forces with gonum's Barnes-Hut plane using theta as the
// opening ratio and the same clamp as the tree.
func Gonum(bodies []*body.Body, theta, g float64) ([]r2.Vec, error) {
	particles := make([]barneshut.Particle2, len(bodies))
	for i, b := range bodies {
		particles[i] = particle{b}
	}
	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		return nil, fmt.Errorf("reference: build plane: %w", err)
	}
	out := make([]r2.Vec, len(bodies))
	for i, p := range particles {
		out[i] = r2.Scale(g, plane.ForceOn(p, theta, clampedGravity))
	}
	return out, nil
}

func clampedGravity(_, _ barneshut.Particle2, m1, m2 float64, v r2.Vec) r2.Vec {
	return clamped(m1, m2, v)
}

// clamped is m1*m2/d³ * v with d floored at the radius of m1.
func clamped(m1, m2 float64, v r2.Vec) r2.Vec {
	d := r2.Norm(v)
	if d == 0 {
		return r2.Vec{}
	}
	if r := math.Ceil(math.Sqrt(2 * m1)); d < r {
		d = r
		v = r2.Vec{X: sign(v.X), Y: sign(v.Y)}
	}
	return r2.Scale(m1*m2/(d*d*d), v)
}

func sign(v float64) float64 {
	if v == 0 {
		return 0
	}
	return math.Copysign(1, v)
}

// RelativeError is ‖approx − exact‖ / ‖exact‖ taken over all bodies at once.
// It returns 0 when both are zero and +Inf when only exact is.
func RelativeError(approx, exact []r2.Vec) float64 {
	if len(approx) != len(exact) {
		return math.NaN()
	}
	var num, den float64
	for i := range exact {
		num += r2.Norm2(r2.Sub(approx[i], exact[i]))
		den += r2.Norm2(exact[i])
	}
	switch {
	case den == 0 && num == 0:
		return 0
	case den == 0:
		return math.Inf(1)
	}
	return math.Sqrt(num / den)
}

// Accuracy is one row of a threshold sweep.
type Accuracy struct {
	ThresholdRatio float64       `json:"threshold_ratio"`
	RelativeError  float64       `json:"relative_error"`
	Nodes          int           `json:"nodes"`
	TreeTime       time.Duration `json:"tree_time"`
	DirectTime     time.Duration `json:"direct_time"`
}

// Sweep measures tree accuracy and cost against the direct sum for each
// threshold ratio.
func Sweep(bodies []*body.Body, domainSize float64, base quadtree.Params, ratios []float64) []Accuracy {
	start := time.Now()
	exact := Direct(bodies, base)
	directTime := time.Since(start)

	out := make([]Accuracy, 0, len(ratios))
	for _, ratio := range ratios {
		p := base
		p.ThresholdRatio = ratio

		start := time.Now()
		tree := quadtree.Build(bodies, domainSize, p)
		approx := tree.Forces(bodies)
		elapsed := time.Since(start)

		out = append(out, Accuracy{
			ThresholdRatio: ratio,
			RelativeError:  RelativeError(approx, exact),
			Nodes:          tree.Stats().Nodes,
			TreeTime:       elapsed,
			DirectTime:     directTime,
		})
	}
	return out
}
