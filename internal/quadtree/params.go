package quadtree

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultThresholdRatio = 1.2
	DefaultMinSize        = 3.0
	DefaultG              = 0.05
)

// ErrInvalidParams indicates a Params value the tree cannot work with.
var ErrInvalidParams = errors.New("quadtree: invalid params")

// Params holds the accuracy and physics constants shared by construction and
// force queries.
type Params struct {
	// ThresholdRatio is the opening criterion: a node whose side length
	// divided by its distance to the target is below this ratio is treated
	// as a single body. Zero opens every node down to the leaves.
	ThresholdRatio float64 `yaml:"threshold_ratio" json:"threshold_ratio"`

	// MinSize is the side length below which nodes are never subdivided.
	MinSize float64 `yaml:"min_size" json:"min_size"`

	// G is the gravitational constant.
	G float64 `yaml:"g" json:"g"`
}

func DefaultParams() Params {
	return Params{
		ThresholdRatio: DefaultThresholdRatio,
		MinSize:        DefaultMinSize,
		G:              DefaultG,
	}
}

// Exact returns p with the opening criterion disabled, so force queries
// descend to the leaves.
func (p Params) Exact() Params {
	p.ThresholdRatio = 0
	return p
}

func (p Params) Validate() error {
	if !finite(p.ThresholdRatio) || p.ThresholdRatio < 0 {
		return fmt.Errorf("%w: threshold ratio must be >= 0, got %v", ErrInvalidParams, p.ThresholdRatio)
	}
	if !finite(p.MinSize) || p.MinSize <= 0 {
		return fmt.Errorf("%w: min size must be positive, got %v", ErrInvalidParams, p.MinSize)
	}
	if !finite(p.G) || p.G <= 0 {
		return fmt.Errorf("%w: G must be positive, got %v", ErrInvalidParams, p.G)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
