package quadtree

import (
	"github.com/san-kum/quadsim/internal/body"
	"gonum.org/v1/gonum/spatial/r2"
)

// NetForce returns the approximate gravitational force on target from every
// body in the tree. Target need not be in the tree; when it is, its own
// contribution drops out because its distance to itself is zero.
//
// Safe for concurrent use.
func (t *Tree) NetForce(target *body.Body) r2.Vec {
	return t.forceOn(t.root, target, nil)
}

// UsedNodes returns the squares of every node a NetForce query on target
// treats as a single aggregate, in traversal order.
func (t *Tree) UsedNodes(target *body.Body) []Bounds {
	var used []Bounds
	t.forceOn(t.root, target, func(n *Node) {
		used = append(used, n.Bounds)
	})
	return used
}

// Forces computes NetForce for each body, in order.
func (t *Tree) Forces(bodies []*body.Body) []r2.Vec {
	out := make([]r2.Vec, len(bodies))
	for i, b := range bodies {
		out[i] = t.NetForce(b)
	}
	return out
}

func (t *Tree) forceOn(n *Node, target *body.Body, used func(*Node)) r2.Vec {
	if n == nil || len(n.Bodies) == 0 {
		return r2.Vec{}
	}

	dir := r2.Sub(n.CenterOfMass, target.Position())
	dist := r2.Norm(dir)
	if dist == 0 {
		return r2.Vec{}
	}

	// Near field: floor the separation at the target's radius and keep only
	// the sign of each axis. Overlay queries are not counted.
	if r := target.Radius(); dist < r {
		dist = r
		dir = r2.Vec{X: signum(dir.X), Y: signum(dir.Y)}
		if used == nil {
			t.clamped.Add(1)
		}
	}

	p := t.params
	if n.IsLeaf() || n.Bounds.Size/dist < p.ThresholdRatio || n.Singular || n.Bounds.Size < p.MinSize {
		if used != nil {
			used(n)
		}
		mag := p.G * n.Mass * target.Mass() / (dist * dist * dist)
		return r2.Scale(mag, dir)
	}

	var sum r2.Vec
	for _, c := range n.Children {
		sum = r2.Add(sum, t.forceOn(c, target, used))
	}
	return sum
}

func signum(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
