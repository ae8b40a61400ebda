package scenario

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/quadsim/internal/body"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestRead(t *testing.T) {
	in := `3
5,10,10,0,0
# comment
5, 10, 20, 0.5, -1

{5, [10, 30], [0, 0]}
`
	bodies, err := Read(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(bodies) != 3 {
		t.Fatalf("got %d bodies, want 3", len(bodies))
	}
	if bodies[1].Velocity() != (r2.Vec{X: 0.5, Y: -1}) {
		t.Errorf("velocity = %v", bodies[1].Velocity())
	}
	if bodies[2].Position() != (r2.Vec{X: 10, Y: 30}) {
		t.Errorf("position = %v", bodies[2].Position())
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		line     int
		sentinel error
	}{
		{"bad count", "three\n", 1, ErrMalformed},
		{"negative count", "-1\n", 1, ErrMalformed},
		{"too few fields", "1\n1,2,3\n", 2, ErrMalformed},
		{"not a number", "1\n1,2,x,0,0\n", 2, ErrMalformed},
		{"negative mass", "1\n-1,2,3,0,0\n", 2, body.ErrInvalidParameter},
		{"negative position", "2\n1,2,3,0,0\n1,-2,3,0,0\n", 3, body.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.in))
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("err = %v, want %v", err, tt.sentinel)
			}
			var le *LineError
			if !errors.As(err, &le) || le.Line != tt.line {
				t.Errorf("expected line %d, got %v", tt.line, err)
			}
		})
	}
}

func TestRead_CountMismatch(t *testing.T) {
	_, err := Read(strings.NewReader("2\n1,1,1,0,0\n"))
	if !errors.Is(err, ErrCountMismatch) {
		t.Errorf("err = %v, want ErrCountMismatch", err)
	}
	for _, header := range []string{"9223372036854775807", "1099511627776"} {
		_, err = Read(strings.NewReader(header + "\n5,1,1,0,0\n"))
		if !errors.Is(err, ErrCountMismatch) {
			t.Errorf("count %s: err = %v, want ErrCountMismatch", header, err)
		}
	}
	_, err = Read(strings.NewReader(""))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("empty input err = %v, want ErrMalformed", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	want := Column()
	want = append(want, mustNew(t, 0.125, r2.Vec{X: 1e-3, Y: 699.5}, r2.Vec{X: -0.1, Y: 0.0007}))

	var buf bytes.Buffer
	if err := Write(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	assertSame(t, got, want)
}

func TestYAMLRoundTrip(t *testing.T) {
	want := Column()
	var buf bytes.Buffer
	if err := WriteYAML(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadYAML(&buf)
	if err != nil {
		t.Fatal(err)
	}
	assertSame(t, got, want)
}

func TestReadYAML_DefaultsVelocity(t *testing.T) {
	in := "bodies:\n  - mass: 2\n    pos: [3, 4]\n"
	got, err := ReadYAML(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Velocity() != (r2.Vec{}) {
		t.Errorf("got %v", got)
	}

	_, err = ReadYAML(strings.NewReader("bodies:\n  - mass: 2\n    pos: [3]\n"))
	if !errors.Is(err, body.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestFileFormats(t *testing.T) {
	dir := t.TempDir()
	bodies := Column()
	for _, name := range []string{"s.txt", "s.yaml"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, bodies); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		assertSame(t, got, bodies)
	}
}

func TestGenerate(t *testing.T) {
	for _, name := range Generators() {
		t.Run(name, func(t *testing.T) {
			o := Options{N: 50, Size: 700, Seed: 7, G: 0.05}
			a, err := Generate(name, o)
			if err != nil {
				t.Fatal(err)
			}
			b, _ := Generate(name, o)
			assertSame(t, a, b)
			for _, x := range a {
				p := x.Position()
				if p.X < 0 || p.Y < 0 || p.X > o.Size || p.Y > o.Size {
					t.Errorf("body %v outside domain", x)
				}
			}
		})
	}
}

func TestGenerate_Shapes(t *testing.T) {
	o := Options{N: 100, Size: 700, Seed: 1, G: 0.05}

	acc, _ := Generate("accretion", o)
	if len(acc) != 100 || acc[0].Mass() != CentralMass {
		t.Errorf("accretion: %d bodies, first mass %v", len(acc), acc[0].Mass())
	}

	circ, _ := Generate("circulation", o)
	for _, b := range circ {
		r := r2.Norm(r2.Sub(b.Position(), r2.Vec{X: 350, Y: 350}))
		if r < 199.999 || r > 340.001 {
			t.Fatalf("circulation radius %v outside annulus", r)
		}
	}

	bin, _ := Generate("binary", o)
	if len(bin) != 2 {
		t.Fatalf("binary: %d bodies", len(bin))
	}
	if sum := r2.Add(bin[0].Velocity(), bin[1].Velocity()); sum != (r2.Vec{}) {
		t.Errorf("binary momentum = %v, want zero", sum)
	}
	if len(Column()) != 3 {
		t.Error("column should have 3 bodies")
	}
}

func TestGenerate_Errors(t *testing.T) {
	if _, err := Generate("spiral", Options{N: 1, Size: 100}); !errors.Is(err, ErrUnknownGenerator) {
		t.Errorf("err = %v, want ErrUnknownGenerator", err)
	}
	if _, err := Generate("random", Options{N: 1, Size: math.NaN()}); err == nil {
		t.Error("expected error for NaN size")
	}
	if _, err := Generate("circulation", Options{N: 1, Size: 20}); err == nil {
		t.Error("expected error for tiny annulus")
	}
}

func mustNew(t *testing.T, m float64, p, v r2.Vec) *body.Body {
	t.Helper()
	b, err := body.New(m, p, v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func assertSame(t *testing.T, got, want []*body.Body) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d bodies, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i].String() {
			t.Errorf("body %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
