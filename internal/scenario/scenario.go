// Package scenario reads, writes and generates initial body sets.
//
// The text format is a body count on the first line followed by one body
// per line:
//
//	3
//	5,10,10,0,0
//	5,10,20,0,0
//	5,10,30,0,0
//
// Fields are mass, x, y, vx, vy. Lines in the brace form produced by
// body.String ("{5, [10, 10], [0, 0]}") are accepted too. Blank lines and
// lines starting with '#' are ignored.
package scenario

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/san-kum/quadsim/internal/body"
	"gopkg.in/yaml.v3"
)

var (
	ErrMalformed     = errors.New("scenario: malformed input")
	ErrCountMismatch = errors.New("scenario: body count mismatch")
)

// LineError locates a failure in a text scenario.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("scenario: line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

const maxLine = 1 << 20

// maxPrealloc caps the capacity taken from an untrusted header count.
const maxPrealloc = 1 << 16

// Read parses a text scenario.
func Read(r io.Reader) ([]*body.Body, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		bodies []*body.Body
		want   = -1
		line   int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if want < 0 {
			n, err := strconv.Atoi(text)
			if err != nil || n < 0 {
				return nil, &LineError{Line: line, Err: fmt.Errorf("%w: body count %q", ErrMalformed, text)}
			}
			want = n
			bodies = make([]*body.Body, 0, min(n, maxPrealloc))
			continue
		}
		b, err := parseLine(text)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		bodies = append(bodies, b)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scenario: read: %w", err)
	}
	if want < 0 {
		return nil, fmt.Errorf("%w: missing body count", ErrMalformed)
	}
	if len(bodies) != want {
		return nil, fmt.Errorf("%w: header says %d, found %d", ErrCountMismatch, want, len(bodies))
	}
	return bodies, nil
}

var bracketStripper = strings.NewReplacer("{", "", "}", "", "[", "", "]", "")

func parseLine(text string) (*body.Body, error) {
	fields := strings.Split(bracketStripper.Replace(text), ",")
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: want 5 fields, got %d", ErrMalformed, len(fields))
	}
	var v [5]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, i+1, err)
		}
		v[i] = x
	}
	return body.FromComponents(v[0], v[1:3], v[3:5])
}

// Write emits bodies in the text format.
func Write(w io.Writer, bodies []*body.Body) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, len(bodies))
	for _, b := range bodies {
		p, v := b.Position(), b.Velocity()
		fmt.Fprintf(bw, "%s,%s,%s,%s,%s\n", ff(b.Mass()), ff(p.X), ff(p.Y), ff(v.X), ff(v.Y))
	}
	return bw.Flush()
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// File is the YAML scenario layout.
type File struct {
	Bodies []Entry `yaml:"bodies"`
}

type Entry struct {
	Mass float64   `yaml:"mass"`
	Pos  []float64 `yaml:"pos,flow"`
	Vel  []float64 `yaml:"vel,flow"`
}

func ReadYAML(r io.Reader) ([]*body.Body, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	bodies := make([]*body.Body, 0, len(f.Bodies))
	for i, e := range f.Bodies {
		vel := e.Vel
		if vel == nil {
			vel = []float64{0, 0}
		}
		b, err := body.FromComponents(e.Mass, e.Pos, vel)
		if err != nil {
			return nil, fmt.Errorf("scenario: body %d: %w", i, err)
		}
		bodies = append(bodies, b)
	}
	return bodies, nil
}

func WriteYAML(w io.Writer, bodies []*body.Body) error {
	f := File{Bodies: make([]Entry, len(bodies))}
	for i, b := range bodies {
		p, v := b.Position(), b.Velocity()
		f.Bodies[i] = Entry{Mass: b.Mass(), Pos: []float64{p.X, p.Y}, Vel: []float64{v.X, v.Y}}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return enc.Close()
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ReadFile loads a scenario, choosing the format by extension.
func ReadFile(path string) ([]*body.Body, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if isYAML(path) {
		return ReadYAML(f)
	}
	return Read(f)
}

func WriteFile(path string, bodies []*body.Body) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if isYAML(path) {
		err = WriteYAML(f, bodies)
	} else {
		err = Write(f, bodies)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
