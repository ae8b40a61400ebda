package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/quadsim/internal/quadtree"
	"github.com/san-kum/quadsim/internal/sim"
)

const (
	background = "#0a0a0a"
	bodyFill   = "#e8e8e8"
	nodeStroke = "#2f6f3f"
	usedStroke = "#d08020"
)

// SnapshotToSVG draws bodies as discs of their display size over the
// snapshot's root square. Tree nodes are outlined when the snapshot carries
// them, and used, if non-empty, is highlighted on top.
func SnapshotToSVG(snap sim.Snapshot, scale float64, used []quadtree.Bounds) string {
	if scale <= 0 {
		scale = 1
	}
	view := viewport(snap)
	side := view.Size * scale

	var sb strings.Builder
	writeHeader(&sb, side, side)

	if len(snap.Nodes) > 0 {
		sb.WriteString(fmt.Sprintf(`<g fill="none" stroke="%s" stroke-width="0.5">`+"\n", nodeStroke))
		for _, n := range snap.Nodes {
			writeRect(&sb, view, n, scale)
		}
		sb.WriteString("</g>\n")
	}

	if len(used) > 0 {
		sb.WriteString(fmt.Sprintf(`<g fill="none" stroke="%s" stroke-width="1">`+"\n", usedStroke))
		for _, n := range used {
			writeRect(&sb, view, n, scale)
		}
		sb.WriteString("</g>\n")
	}

	sb.WriteString(fmt.Sprintf(`<g fill="%s">`+"\n", bodyFill))
	for _, b := range snap.Bodies {
		if math.IsNaN(b.X) || math.IsInf(b.X, 0) || math.IsNaN(b.Y) || math.IsInf(b.Y, 0) {
			continue
		}
		r := math.Max(b.Size/2*scale, 0.5)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.2f" cy="%.2f" r="%.2f"/>`+"\n",
			(b.X-view.Left)*scale, (b.Y-view.Top)*scale, r))
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// viewport is the root square, or the domain when the snapshot predates
// tree data.
func viewport(snap sim.Snapshot) quadtree.Bounds {
	if snap.Root.Size > 0 {
		return snap.Root
	}
	if snap.DomainSize > 0 {
		return quadtree.Bounds{Size: snap.DomainSize}
	}
	return quadtree.Bounds{Size: 1}
}

func writeHeader(sb *strings.Builder, width, height float64) {
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))
}

func writeRect(sb *strings.Builder, view, b quadtree.Bounds, scale float64) {
	sb.WriteString(fmt.Sprintf(`<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f"/>`+"\n",
		(b.Left-view.Left)*scale, (b.Top-view.Top)*scale, b.Size*scale, b.Size*scale))
}

// TrailsToSVG draws each body's path across frames as a polyline. Bodies
// are matched by index, so frames must come from one run. Screen
// coordinates are kept: y grows downward.
func TrailsToSVG(frames []sim.Snapshot, width int, strokeColor string) string {
	if len(frames) < 2 || width <= 0 {
		return ""
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, f := range frames {
		for _, b := range f.Bodies {
			minX, maxX = math.Min(minX, b.X), math.Max(maxX, b.X)
			minY, maxY = math.Min(minY, b.Y), math.Max(maxY, b.Y)
		}
	}
	span := math.Max(maxX-minX, maxY-minY)
	if !(span > 0) || math.IsInf(span, 0) {
		span = 1
	}
	pad := span * 0.05
	minX -= pad
	minY -= pad
	span += 2 * pad
	scale := float64(width) / span

	var sb strings.Builder
	writeHeader(&sb, float64(width), float64(width))
	sb.WriteString(fmt.Sprintf(`<g fill="none" stroke="%s" stroke-width="1">`+"\n", strokeColor))

	n := len(frames[0].Bodies)
	for i := 0; i < n; i++ {
		sb.WriteString(`<path d="`)
		first := true
		for _, f := range frames {
			if i >= len(f.Bodies) {
				continue
			}
			b := f.Bodies[i]
			x, y := (b.X-minX)*scale, (b.Y-minY)*scale
			if first {
				sb.WriteString(fmt.Sprintf("M%.1f,%.1f", x, y))
				first = false
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString(`"/>` + "\n")
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
