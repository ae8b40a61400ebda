package viz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/quadsim/internal/body"
	"github.com/san-kum/quadsim/internal/logger"
	"github.com/san-kum/quadsim/internal/metrics"
	"github.com/san-kum/quadsim/internal/quadtree"
	"github.com/san-kum/quadsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	historyCapacity = 600
	maxDiscDots     = 6
	cursorSteps     = 40
)

type TickMsg time.Time

// Options sizes the live view.
type Options struct {
	Width, Height int // canvas size in terminal cells
	FPS           int
	StepsPerFrame int
}

func DefaultOptions() Options {
	return Options{Width: 80, Height: 24, FPS: 30, StepsPerFrame: 1}
}

// Model is the bubbletea model for the live view. It steps the driver on
// every tick and redraws from a snapshot.
type Model struct {
	ctx    context.Context
	driver *sim.Driver
	opts   Options
	log    *slog.Logger

	bodies  *Canvas
	overlay *Canvas

	snap   sim.Snapshot
	used   []quadtree.Bounds
	cursor r2.Vec

	showTree bool
	showUsed bool
	showHelp bool

	energy []float64
	nodes  []float64
	err    error
}

func NewModel(ctx context.Context, d *sim.Driver, opts Options) Model {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.FPS <= 0 {
		opts.FPS = def.FPS
	}
	if opts.StepsPerFrame <= 0 {
		opts.StepsPerFrame = def.StepsPerFrame
	}

	m := Model{
		ctx:     ctx,
		driver:  d,
		opts:    opts,
		log:     logger.WithComponent("viz"),
		bodies:  NewCanvas(opts.Width, opts.Height),
		overlay: NewCanvas(opts.Width, opts.Height),
		energy:  make([]float64, 0, historyCapacity),
		nodes:   make([]float64, 0, historyCapacity),
	}
	m.refresh()
	size := m.snap.DomainSize
	m.cursor = r2.Vec{X: size / 2, Y: size / 2}
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FPS), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TickMsg:
		for i := 0; i < m.opts.StepsPerFrame; i++ {
			if err := m.driver.Step(m.ctx); err != nil {
				if m.ctx.Err() != nil {
					return m, tea.Quit
				}
				m.err = err
				m.log.Error("step failed", "error", err)
				break
			}
		}
		m.refresh()
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	move := m.snap.DomainSize / cursorSteps
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.driver.SetPaused(!m.driver.Paused())
	case "r":
		if err := m.driver.Reset(); err != nil {
			m.err = err
		}
		m.energy = m.energy[:0]
		m.nodes = m.nodes[:0]
	case "o":
		m.showTree = !m.showTree
	case "u":
		m.showUsed = !m.showUsed
	case "a":
		m.addBody()
	case "t":
		nextTheme()
	case "?":
		m.showHelp = !m.showHelp
	case "up", "k":
		m.cursor.Y -= move
	case "down", "j":
		m.cursor.Y += move
	case "left", "h":
		m.cursor.X -= move
	case "right", "l":
		m.cursor.X += move
	}
	m.refresh()
	return m, nil
}

// addBody drops a unit mass at the cursor, drifting right.
func (m *Model) addBody() {
	b, err := body.New(1, m.cursor, r2.Vec{X: 0.1})
	if err != nil {
		m.err = err
		return
	}
	m.driver.Add(b)
	metrics.BodiesAdded.WithLabelValues("tui").Inc()
	m.log.Debug("body added", "x", m.cursor.X, "y", m.cursor.Y)
}

// refresh pulls a new snapshot and the probe's used nodes, then redraws.
func (m *Model) refresh() {
	m.snap = m.driver.Snapshot(m.showTree)

	var ke float64
	m.driver.With(func(s *sim.Simulator) {
		ke = metrics.Kinetic(s.Bodies())
		m.used = nil
		if m.showUsed {
			probe, err := body.New(1, m.cursor, r2.Vec{})
			if err == nil {
				m.used = s.Tree().UsedNodes(probe)
			}
		}
	})
	m.energy = pushCapped(m.energy, ke)
	m.nodes = pushCapped(m.nodes, float64(m.snap.Stats.Nodes))
	m.draw()
}

func pushCapped(xs []float64, v float64) []float64 {
	if len(xs) >= historyCapacity {
		copy(xs, xs[1:])
		xs = xs[:len(xs)-1]
	}
	return append(xs, v)
}

// project maps world coordinates to canvas dots. The domain square fills
// the canvas; anything outside it is clipped.
func (m *Model) project(p r2.Vec) (int, int) {
	size := m.snap.DomainSize
	if size <= 0 {
		return -1, -1
	}
	x := p.X / size * float64(m.bodies.DotsWide())
	y := p.Y / size * float64(m.bodies.DotsHigh())
	return int(x), int(y)
}

func (m *Model) drawBounds(b quadtree.Bounds) {
	x0, y0 := m.project(r2.Vec{X: b.Left, Y: b.Top})
	x1, y1 := m.project(r2.Vec{X: b.Right(), Y: b.Bottom()})
	m.overlay.DrawRect(x0, y0, x1, y1)
}

func (m *Model) draw() {
	m.bodies.Clear()
	m.overlay.Clear()

	if m.showTree {
		for _, b := range m.snap.Nodes {
			m.drawBounds(b)
		}
	}
	if m.showUsed {
		for _, b := range m.used {
			m.drawBounds(b)
		}
	}

	scale := 0.0
	if m.snap.DomainSize > 0 {
		scale = float64(m.bodies.DotsWide()) / m.snap.DomainSize
	}
	for _, b := range m.snap.Bodies {
		x, y := m.project(r2.Vec{X: b.X, Y: b.Y})
		r := min(int(b.Size/2*scale), maxDiscDots)
		m.bodies.FillDisc(x, y, r)
	}

	cx, cy := m.project(m.cursor)
	m.overlay.DrawLine(cx-2, cy, cx+2, cy)
	m.overlay.DrawLine(cx, cy-2, cx, cy+2)
}

// render merges the two canvases cell by cell. Cells holding a body take
// the body colour; overlay-only cells take the overlay colour.
func (m Model) render() string {
	bodyColor := bodyStyle()
	overlayColor := lipgloss.NewStyle().Foreground(CurrentTheme.Overlay)

	var b strings.Builder
	for row := range m.bodies.Grid {
		for col, r := range m.bodies.Grid[row] {
			o := m.overlay.Grid[row][col]
			switch {
			case r != blank:
				b.WriteString(bodyColor.Render(string(r | o)))
			case o != blank:
				b.WriteString(overlayColor.Render(string(o)))
			default:
				b.WriteRune(r)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle().Render("QUADSIM") + "\n")

	if m.driver.Paused() {
		s.WriteString(statusPaused.Render("PAUSED") + "\n\n")
	} else {
		s.WriteString(statusRunning.Render("RUNNING") + "\n\n")
	}

	if len(m.energy) > 1 {
		chart := asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Kinetic energy"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	st := m.snap.Stats
	row := func(label, value string) {
		s.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Step", fmt.Sprintf("%d", m.snap.Step))
	row("Bodies", fmt.Sprintf("%d", len(m.snap.Bodies)))
	row("Excluded", fmt.Sprintf("%d", st.Excluded))
	row("Nodes", fmt.Sprintf("%d", st.Nodes))
	row("Depth", fmt.Sprintf("%d", st.MaxDepth))
	row("Cursor", fmt.Sprintf("%.0f, %.0f", m.cursor.X, m.cursor.Y))
	if m.showUsed {
		row("Used", fmt.Sprintf("%d nodes", len(m.used)))
	}
	s.WriteString("\n" + labelStyle.Render("Nodes") + Sparkline(m.nodes, 24) + "\n")

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}

	s.WriteString(helpStyle.Render("SP:Pause R:Reset Q:Quit\nO:Tree U:Used A:Add ?:Help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, canvasStyle.Render(m.render()), statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + main
	}
	return main
}

const helpText = `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Reset to initial bodies  ║
║  O        - Toggle tree overlay      ║
║  U        - Nodes used by cursor     ║
║  A        - Add a body at cursor     ║
║  Arrows   - Move cursor              ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// Run opens the live view in the alternate screen until the user quits or
// ctx ends.
func Run(ctx context.Context, d *sim.Driver, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, d, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
