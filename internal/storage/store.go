package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/quadsim/internal/quadtree"
	"github.com/san-kum/quadsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

var frameHeader = []string{"step", "body", "mass", "x", "y", "vx", "vy"}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Scenario    string             `json:"scenario"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Bodies      int                `json:"bodies"`
	DomainSize  float64            `json:"domain_size"`
	Steps       int                `json:"steps"`
	Workers     int                `json:"workers"`
	SampleEvery int                `json:"sample_every"`
	Params      quadtree.Params    `json:"params"`
	ElapsedMS   float64            `json:"elapsed_ms"`
	Frames      int                `json:"frames"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes a run directory holding metadata.json and frames.csv and
// returns the run ID. Steps, ElapsedMS, Frames and Metrics are taken from
// result.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Scenario, now.UnixNano())
	meta.Timestamp = now
	meta.Steps = result.Steps
	meta.ElapsedMS = float64(result.Duration) / float64(time.Millisecond)
	meta.Frames = len(result.Frames)
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeFrames(filepath.Join(runDir, framesFile), result.Frames); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFrames(path string, frames []sim.Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(frameHeader); err != nil {
		return err
	}
	for _, frame := range frames {
		step := strconv.Itoa(frame.Step)
		for i, b := range frame.Bodies {
			row := []string{
				step,
				strconv.Itoa(i),
				formatFloat(b.Mass),
				formatFloat(b.X),
				formatFloat(b.Y),
				formatFloat(b.VX),
				formatFloat(b.VY),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadFrames reads frames.csv back into snapshots, in file order. Display
// sizes and tree data are not stored.
func (s *Store) LoadFrames(runID string) ([]sim.Snapshot, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(frameHeader)
	r.ReuseRecord = true

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return []sim.Snapshot{}, nil
		}
		return nil, err
	}

	frames := make([]sim.Snapshot, 0)
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		step, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("storage: %s line %d: %w", framesFile, line, err)
		}
		var v [5]float64
		for i := range v {
			if v[i], err = strconv.ParseFloat(rec[i+2], 64); err != nil {
				return nil, fmt.Errorf("storage: %s line %d: %w", framesFile, line, err)
			}
		}

		if len(frames) == 0 || frames[len(frames)-1].Step != step {
			frames = append(frames, sim.Snapshot{Step: step})
		}
		last := &frames[len(frames)-1]
		last.Bodies = append(last.Bodies, sim.BodyState{Mass: v[0], X: v[1], Y: v[2], VX: v[3], VY: v[4]})
	}
	return frames, nil
}

type ExportData struct {
	Run    RunMetadata    `json:"run"`
	Frames []sim.Snapshot `json:"frames"`
}

// ExportJSON writes a run's metadata and frames as one JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	frames, err := s.LoadFrames(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: *meta, Frames: frames})
}

// Series extracts one value per frame, for plotting.
func Series(frames []sim.Snapshot, fn func(sim.Snapshot) float64) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = fn(f)
	}
	return out
}
