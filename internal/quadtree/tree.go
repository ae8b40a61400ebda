package quadtree

import (
	"sync/atomic"

	"github.com/san-kum/quadsim/internal/body"
	"gonum.org/v1/gonum/spatial/r2"
)

// Node is one square of the partition. Children is nil for leaves and holds
// exactly four nodes otherwise, indexed by the quadrant constants.
type Node struct {
	Bounds       Bounds
	Children     []*Node
	Mass         float64
	CenterOfMass r2.Vec
	Bodies       []*body.Body
	Singular     bool
	Depth        int
}

func (n *Node) IsLeaf() bool { return n.Children == nil }

// Stats summarises the shape of a tree and how queries used it.
type Stats struct {
	Bodies         int   `json:"bodies"`
	Excluded       int   `json:"excluded"`
	Nodes          int   `json:"nodes"`
	Leaves         int   `json:"leaves"`
	SingularLeaves int   `json:"singular_leaves"`
	MaxDepth       int   `json:"max_depth"`
	Clamped        int64 `json:"clamped"`
}

// Tree is a Barnes-Hut quadtree over one snapshot of body positions. It is
// built once per step, read by any number of concurrent NetForce calls, and
// then discarded.
type Tree struct {
	root    *Node
	params  Params
	stats   Stats
	clamped atomic.Int64
}

// Build partitions bodies starting from the square of side domainSize at
// the origin. Bodies that have drifted outside the domain grow the root
// square; bodies with non-finite positions are left out and counted in
// Stats.Excluded.
func Build(bodies []*body.Body, domainSize float64, p Params) *Tree {
	if !finite(domainSize) || domainSize < 0 {
		domainSize = 0
	}

	kept := make([]*body.Body, 0, len(bodies))
	points := make([]r2.Vec, 0, len(bodies))
	for _, b := range bodies {
		pos := b.Position()
		if !finite(pos.X) || !finite(pos.Y) {
			continue
		}
		kept = append(kept, b)
		points = append(points, pos)
	}

	t := &Tree{params: p}
	t.stats.Bodies = len(kept)
	t.stats.Excluded = len(bodies) - len(kept)
	t.root = t.build(enclose(domainSize, points), kept, 0)
	return t
}

func (t *Tree) build(bounds Bounds, bodies []*body.Body, depth int) *Node {
	n := &Node{Bounds: bounds, Bodies: bodies, Depth: depth}
	t.stats.Nodes++
	if depth > t.stats.MaxDepth {
		t.stats.MaxDepth = depth
	}

	switch len(bodies) {
	case 0:
		// Sentinel only; queries return before reading it.
		n.CenterOfMass = bounds.Center()
	case 1:
		n.Mass = bodies[0].Mass()
		n.CenterOfMass = bodies[0].Position()
		n.Singular = true
	default:
		n.Mass, n.CenterOfMass = aggregate(bodies)
		n.Singular = coincident(bodies)
		if !n.Singular && splittable(bounds, t.params.MinSize) {
			n.Children = t.split(bounds, bodies, depth)
		}
	}

	if n.IsLeaf() {
		t.stats.Leaves++
		if n.Singular && len(bodies) > 1 {
			t.stats.SingularLeaves++
		}
	}
	return n
}

func (t *Tree) split(bounds Bounds, bodies []*body.Body, depth int) []*Node {
	var parts [4][]*body.Body
	for _, b := range bodies {
		q := bounds.QuadrantOf(b.Position())
		parts[q] = append(parts[q], b)
	}
	children := make([]*Node, 4)
	for q := range children {
		children[q] = t.build(bounds.Quadrant(q), parts[q], depth+1)
	}
	return children
}

// splittable reports whether bounds can be halved into four strictly
// smaller squares. Squares that overflow or fall below float64 resolution
// stay leaves.
func splittable(b Bounds, minSize float64) bool {
	if !finite(b.Size) || b.Size < minSize {
		return false
	}
	mid := b.Center()
	return mid.X > b.Left && mid.X < b.Right() && mid.Y > b.Top && mid.Y < b.Bottom()
}

// aggregate returns the total mass and mass-weighted mean position.
func aggregate(bodies []*body.Body) (float64, r2.Vec) {
	var mass float64
	var weighted r2.Vec
	for _, b := range bodies {
		m := b.Mass()
		mass += m
		weighted = r2.Add(weighted, r2.Scale(m, b.Position()))
	}
	return mass, r2.Vec{X: weighted.X / mass, Y: weighted.Y / mass}
}

// coincident reports whether all bodies share a bit-identical position.
func coincident(bodies []*body.Body) bool {
	first := bodies[0].Position()
	for _, b := range bodies[1:] {
		if b.Position() != first {
			return false
		}
	}
	return true
}

func (t *Tree) Root() *Node    { return t.root }
func (t *Tree) Params() Params { return t.params }
func (t *Tree) Bounds() Bounds { return t.root.Bounds }
func (t *Tree) Mass() float64  { return t.root.Mass }

func (t *Tree) Stats() Stats {
	s := t.stats
	s.Clamped = t.clamped.Load()
	return s
}

// Walk visits nodes in pre-order. Returning false from fn skips the node's
// children.
func (t *Tree) Walk(fn func(*Node) bool) {
	walk(t.root, fn)
}

func walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, fn)
	}
}

// AllBounds lists every node's square, for debug overlays.
func (t *Tree) AllBounds() []Bounds {
	out := make([]Bounds, 0, t.stats.Nodes)
	t.Walk(func(n *Node) bool {
		out = append(out, n.Bounds)
		return true
	})
	return out
}
