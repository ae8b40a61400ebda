package scenario

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/san-kum/quadsim/internal/body"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	CentralMass     = 1000.0
	SpeedMultiplier = 0.0007
)

var ErrUnknownGenerator = errors.New("scenario: unknown generator")

// Options parameterise a generator run.
type Options struct {
	N    int
	Size float64
	Seed int64
	// G is used by generators that set up bound orbits.
	G float64
}

type generator func(rng *rand.Rand, o Options) ([]*body.Body, error)

var generators = map[string]generator{
	"random":      Random,
	"accretion":   Accretion,
	"circulation": Circulation,
	"column":      func(*rand.Rand, Options) ([]*body.Body, error) { return Column(), nil },
	"binary":      func(_ *rand.Rand, o Options) ([]*body.Body, error) { return Binary(o.Size, o.G) },
}

// Generators lists registered generator names in sorted order.
func Generators() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate runs the named generator with a deterministic seed.
func Generate(name string, o Options) ([]*body.Body, error) {
	gen, ok := generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGenerator, name)
	}
	if o.N < 0 {
		return nil, fmt.Errorf("scenario: negative body count %d", o.N)
	}
	if !(o.Size > 0) || math.IsInf(o.Size, 0) {
		return nil, fmt.Errorf("scenario: domain size must be positive, got %v", o.Size)
	}
	return gen(rand.New(rand.NewSource(o.Seed)), o)
}

// Random scatters unit masses at rest on integer coordinates.
func Random(rng *rand.Rand, o Options) ([]*body.Body, error) {
	span := int(o.Size)
	if span < 1 {
		return nil, fmt.Errorf("scenario: domain too small for random placement: %v", o.Size)
	}
	out := make([]*body.Body, 0, o.N)
	for i := 0; i < o.N; i++ {
		pos := r2.Vec{X: float64(rng.Intn(span)), Y: float64(rng.Intn(span))}
		b, err := body.New(1, pos, r2.Vec{})
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Accretion places a heavy body at the center surrounded by a disk of unit
// masses drifting tangentially.
func Accretion(rng *rand.Rand, o Options) ([]*body.Body, error) {
	center := r2.Vec{X: o.Size / 2, Y: o.Size / 2}
	maxR := int(o.Size/2 - 10)
	if maxR < 1 {
		return nil, fmt.Errorf("scenario: domain too small for a disk: %v", o.Size)
	}
	out := make([]*body.Body, 0, o.N)
	if o.N == 0 {
		return out, nil
	}
	hole, err := body.New(CentralMass, center, r2.Vec{})
	if err != nil {
		return nil, err
	}
	out = append(out, hole)
	for i := 1; i < o.N; i++ {
		r := float64(rng.Intn(maxR) + 1)
		theta := rng.Float64() * 2 * math.Pi
		b, err := onRing(center, r, theta, SpeedMultiplier)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Circulation fills an annulus with unit masses whose tangential speed
// grows as r^1.5.
func Circulation(rng *rand.Rand, o Options) ([]*body.Body, error) {
	center := r2.Vec{X: o.Size / 2, Y: o.Size / 2}
	maxR := int(o.Size/2 - 10)
	minR := 200
	if maxR <= minR {
		minR = maxR / 2
	}
	if maxR-minR < 1 {
		return nil, fmt.Errorf("scenario: domain too small for an annulus: %v", o.Size)
	}
	out := make([]*body.Body, 0, o.N)
	for i := 0; i < o.N; i++ {
		r := float64(rng.Intn(maxR-minR) + minR)
		theta := rng.Float64() * 2 * math.Pi
		b, err := onRing(center, r, theta, SpeedMultiplier*math.Pow(r, 1.5))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func onRing(center r2.Vec, r, theta, speed float64) (*body.Body, error) {
	sin, cos := math.Sincos(theta)
	pos := r2.Vec{X: center.X + r*cos, Y: center.Y + r*sin}
	vel := r2.Vec{X: speed * sin, Y: -speed * cos}
	return body.New(1, pos, vel)
}

// Column is three equal masses on a vertical line, at rest.
func Column() []*body.Body {
	out := make([]*body.Body, 3)
	for i := range out {
		b, err := body.New(5, r2.Vec{X: 10, Y: float64(10 * (i + 1))}, r2.Vec{})
		if err != nil {
			panic(err)
		}
		out[i] = b
	}
	return out
}

// Binary sets two equal masses on a circular orbit about the domain center.
func Binary(size, g float64) ([]*body.Body, error) {
	if !(g > 0) {
		return nil, fmt.Errorf("scenario: binary needs positive G, got %v", g)
	}
	const m = 100.0
	d := size / 8
	// Each body circles at radius d under G*m*m/(2d)^2.
	v := math.Sqrt(g * m / (4 * d))
	c := size / 2
	a, err := body.New(m, r2.Vec{X: c - d, Y: c}, r2.Vec{Y: -v})
	if err != nil {
		return nil, err
	}
	b, err := body.New(m, r2.Vec{X: c + d, Y: c}, r2.Vec{Y: v})
	if err != nil {
		return nil, err
	}
	return []*body.Body{a, b}, nil
}
