package sim

import (
	"errors"
	"time"

	"github.com/san-kum/quadsim/internal/body"
	"github.com/san-kum/quadsim/internal/quadtree"
)

var ErrInvalidConfig = errors.New("sim: invalid config")

// StepInfo describes a completed step. Bodies and Tree are live views owned
// by the simulator and are only valid for the duration of the callback.
type StepInfo struct {
	Step   int
	Bodies []*body.Body
	Tree   *quadtree.Tree

	// Clamped counts near-field clamps during this step's force phase.
	Clamped int64

	Force time.Duration
	Apply time.Duration
	Build time.Duration
}

type Metric interface {
	Name() string
	Observe(info *StepInfo)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(info *StepInfo)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(info *StepInfo)

func (f ObserverFunc) OnStep(info *StepInfo) { f(info) }

type Config struct {
	DomainSize float64
	Params     quadtree.Params
	// Workers bounds the goroutines used for the force phase. Zero means
	// GOMAXPROCS; one runs the phase on the calling goroutine.
	Workers int
	// SampleEvery records a frame in Run's result every N steps. Zero
	// disables frames.
	SampleEvery int
}

// BodyState is a copy of one body for renderers and storage.
type BodyState struct {
	Mass float64 `json:"mass"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VX   float64 `json:"vx"`
	VY   float64 `json:"vy"`
	Size float64 `json:"size"`
}

// Snapshot is an immutable copy of the simulation at one step.
type Snapshot struct {
	Step       int               `json:"step"`
	DomainSize float64           `json:"domain_size"`
	Bodies     []BodyState       `json:"bodies"`
	Root       quadtree.Bounds   `json:"root"`
	Stats      quadtree.Stats    `json:"stats"`
	Nodes      []quadtree.Bounds `json:"nodes,omitempty"`
}

type Result struct {
	Steps    int
	Duration time.Duration
	Metrics  map[string]float64
	Frames   []Snapshot
}
