package viz

import (
	"strings"
	"testing"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(4, 2)
	if c.DotsWide() != 8 || c.DotsHigh() != 8 {
		t.Fatalf("dots = %dx%d", c.DotsWide(), c.DotsHigh())
	}

	c.Set(0, 0)
	c.Set(1, 3)
	if c.Grid[0][0] != blank|0x1|0x80 {
		t.Errorf("cell = %U", c.Grid[0][0])
	}
	if !c.isSet(1, 3) || c.isSet(1, 2) {
		t.Error("isSet disagrees with Set")
	}

	// off canvas
	c.Set(-1, 0)
	c.Set(8, 0)
	c.Set(0, 8)
	if c.isSet(8, 0) {
		t.Error("dot outside canvas reported set")
	}

	c.Clear()
	if c.isSet(0, 0) {
		t.Error("Clear left dots set")
	}
}

func TestCanvasDrawRect(t *testing.T) {
	c := NewCanvas(5, 2)
	c.DrawRect(1, 1, 6, 6)

	for _, p := range [][2]int{{1, 1}, {6, 1}, {6, 6}, {1, 6}, {3, 1}, {1, 4}} {
		if !c.isSet(p[0], p[1]) {
			t.Errorf("edge dot %v not set", p)
		}
	}
	if c.isSet(3, 3) {
		t.Error("rect interior should be empty")
	}
}

func TestCanvasFillDisc(t *testing.T) {
	c := NewCanvas(5, 3)
	c.FillDisc(4, 4, 2)

	if !c.isSet(4, 4) || !c.isSet(6, 4) || !c.isSet(4, 2) {
		t.Error("disc missing dots")
	}
	if c.isSet(6, 6) {
		t.Error("corner outside radius set")
	}

	c.Clear()
	c.FillDisc(3, 3, 0)
	if !c.isSet(3, 3) {
		t.Error("zero radius should set the centre")
	}
}

func TestCanvasString(t *testing.T) {
	c := NewCanvas(3, 2)
	lines := strings.Split(strings.TrimSuffix(c.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(lines))
	}
	if lines[0] != strings.Repeat(string(rune(blank)), 3) {
		t.Errorf("blank row = %q", lines[0])
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 4); got != "────" {
		t.Errorf("empty sparkline = %q", got)
	}
	got := Sparkline([]float64{1, 2, 3, 4, 5, 6}, 4)
	if !strings.Contains(got, "█") || !strings.Contains(got, "▁") {
		t.Errorf("sparkline should span low to high: %q", got)
	}
}

func TestThemes(t *testing.T) {
	defer SetTheme(CurrentTheme.Name)

	SetTheme("retro")
	if CurrentTheme.Name != "retro" {
		t.Fatalf("theme = %s", CurrentTheme.Name)
	}
	nextTheme()
	if CurrentTheme.Name != "minimal" {
		t.Errorf("next theme = %s", CurrentTheme.Name)
	}
	if GetTheme("nope").Name != ThemeCyberpunk.Name {
		t.Error("unknown theme should fall back to cyberpunk")
	}
}
