package export

import (
	"strings"
	"testing"

	"github.com/san-kum/quadsim/internal/quadtree"
	"github.com/san-kum/quadsim/internal/sim"
)

func columnSnapshot() sim.Snapshot {
	return sim.Snapshot{
		DomainSize: 100,
		Root:       quadtree.Bounds{Size: 100},
		Bodies: []sim.BodyState{
			{Mass: 5, X: 10, Y: 10, Size: 23},
			{Mass: 5, X: 10, Y: 20, Size: 23},
			{Mass: 5, X: 10, Y: 30, Size: 23},
		},
	}
}

func TestSnapshotToSVG(t *testing.T) {
	svg := SnapshotToSVG(columnSnapshot(), 2, nil)

	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("not an SVG document")
	}
	if got := strings.Count(svg, "<circle"); got != 3 {
		t.Errorf("expected 3 circles, got %d", got)
	}
	if !strings.Contains(svg, `width="200"`) {
		t.Error("expected scaled width 200")
	}
	if !strings.Contains(svg, `cx="20.00" cy="40.00"`) {
		t.Error("expected middle body at (20, 40)")
	}
}

func TestSnapshotToSVG_Overlays(t *testing.T) {
	snap := columnSnapshot()
	snap.Nodes = []quadtree.Bounds{{Size: 100}, {Left: 50, Size: 50}}
	used := []quadtree.Bounds{{Left: 50, Top: 50, Size: 50}}

	svg := SnapshotToSVG(snap, 1, used)
	// Background plus two nodes plus one used node.
	if got := strings.Count(svg, "<rect"); got != 4 {
		t.Errorf("expected 4 rects, got %d", got)
	}
	if !strings.Contains(svg, usedStroke) {
		t.Error("used overlay missing")
	}
}

func TestTrailsToSVG(t *testing.T) {
	a := columnSnapshot()
	b := columnSnapshot()
	b.Bodies[0].Y = 12

	svg := TrailsToSVG([]sim.Snapshot{a, b}, 300, "#00ff00")
	if got := strings.Count(svg, "<path"); got != 3 {
		t.Errorf("expected 3 paths, got %d", got)
	}
	if TrailsToSVG([]sim.Snapshot{a}, 300, "#fff") != "" {
		t.Error("expected empty output for a single frame")
	}
}
