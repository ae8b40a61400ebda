package quadtree

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Quadrant indices, clockwise from top right. Screen coordinates: y grows
// downward, so "top" is the smaller y.
const (
	TopRight = iota
	BottomRight
	BottomLeft
	TopLeft
)

// Bounds is an axis-aligned square.
type Bounds struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
	Size float64 `json:"size"`
}

func (b Bounds) Right() float64  { return b.Left + b.Size }
func (b Bounds) Bottom() float64 { return b.Top + b.Size }

func (b Bounds) Center() r2.Vec {
	return r2.Vec{X: b.Left + b.Size/2, Y: b.Top + b.Size/2}
}

// Contains reports whether p lies in the half-open square
// [Left, Right) x [Top, Bottom).
func (b Bounds) Contains(p r2.Vec) bool {
	return p.X >= b.Left && p.X < b.Right() && p.Y >= b.Top && p.Y < b.Bottom()
}

// Quadrant returns the bounds of quadrant q.
func (b Bounds) Quadrant(q int) Bounds {
	half := b.Size / 2
	switch q {
	case TopRight:
		return Bounds{Left: b.Left + half, Top: b.Top, Size: half}
	case BottomRight:
		return Bounds{Left: b.Left + half, Top: b.Top + half, Size: half}
	case BottomLeft:
		return Bounds{Left: b.Left, Top: b.Top + half, Size: half}
	case TopLeft:
		return Bounds{Left: b.Left, Top: b.Top, Size: half}
	}
	panic(fmt.Sprintf("quadtree: invalid quadrant %d", q))
}

// QuadrantOf picks the quadrant for p. Points on a split line go right or
// down, so every point maps to exactly one quadrant.
func (b Bounds) QuadrantOf(p r2.Vec) int {
	mid := b.Center()
	right := !(p.X < mid.X)
	bottom := !(p.Y < mid.Y)
	switch {
	case right && !bottom:
		return TopRight
	case right && bottom:
		return BottomRight
	case !right && bottom:
		return BottomLeft
	default:
		return TopLeft
	}
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.Top, b.Right(), b.Bottom(), b.Left)
}

// enclose returns the square of side size anchored at the origin, grown
// to cover any point outside it. Points exactly on the far edges count as
// inside; the partition rule sends them to the last row or column.
func enclose(size float64, points []r2.Vec) Bounds {
	minX, minY := 0.0, 0.0
	maxX, maxY := size, size
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	side := math.Max(maxX-minX, maxY-minY)
	return Bounds{Left: minX, Top: minY, Size: side}
}
