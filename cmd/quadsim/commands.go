package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/quadsim/internal/body"
	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/export"
	"github.com/san-kum/quadsim/internal/logger"
	"github.com/san-kum/quadsim/internal/metrics"
	"github.com/san-kum/quadsim/internal/quadtree"
	"github.com/san-kum/quadsim/internal/reference"
	"github.com/san-kum/quadsim/internal/scenario"
	"github.com/san-kum/quadsim/internal/server"
	"github.com/san-kum/quadsim/internal/sim"
	"github.com/san-kum/quadsim/internal/storage"
	"github.com/san-kum/quadsim/internal/viz"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"
)

// resolveConfig layers the preset and any explicitly set flags over the
// root configuration.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := *baseCfg
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg.Generator = p.Generator
		cfg.Bodies = p.Bodies
		cfg.DomainSize = p.DomainSize
		cfg.Steps = p.Steps
		cfg.SampleEvery = p.SampleEvery
	}

	flags := cmd.Flags()
	if flags.Changed("generator") {
		cfg.Generator = generator
	}
	if flags.Changed("scenario") {
		cfg.Scenario = scenarioFile
	}
	if flags.Changed("bodies") {
		cfg.Bodies = numBodies
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("domain") {
		cfg.DomainSize = domainSize
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("sample-every") {
		cfg.SampleEvery = sampleEvery
	}
	if flags.Changed("ratio") {
		cfg.Tree.ThresholdRatio = ratio
	}
	if flags.Changed("min-size") {
		cfg.Tree.MinSize = minSize
	}
	if flags.Changed("g") {
		cfg.Tree.G = gravity
	}
	if flags.Changed("tps") {
		cfg.TPS = tps
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scenarioName(cfg *config.Config) string {
	if cfg.Scenario != "" {
		return strings.TrimSuffix(filepath.Base(cfg.Scenario), filepath.Ext(cfg.Scenario))
	}
	return cfg.Generator
}

func loadBodies(cfg *config.Config) ([]*body.Body, error) {
	if cfg.Scenario != "" {
		return scenario.ReadFile(cfg.Scenario)
	}
	return scenario.Generate(cfg.Generator, scenario.Options{
		N:    cfg.Bodies,
		Size: cfg.DomainSize,
		Seed: cfg.Seed,
		G:    cfg.Tree.G,
	})
}

// newSimulator builds the simulator with the default diagnostics and the
// Prometheus recorder attached.
func newSimulator(cfg *config.Config) (*sim.Simulator, error) {
	bodies, err := loadBodies(cfg)
	if err != nil {
		return nil, err
	}
	s, err := sim.New(bodies, sim.Config{
		DomainSize:  cfg.DomainSize,
		Params:      cfg.TreeParams(),
		Workers:     cfg.Workers,
		SampleEvery: cfg.SampleEvery,
	})
	if err != nil {
		return nil, err
	}
	for _, m := range metrics.Default(cfg.DomainSize) {
		s.AddMetric(m)
	}
	s.AddObserver(metrics.Recorder{})
	s.SetLogger(logger.WithComponent("sim").With("scenario", scenarioName(cfg)))
	return s, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	s, err := newSimulator(cfg)
	if err != nil {
		return err
	}

	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return err
	}

	name := scenarioName(cfg)
	fmt.Printf("running %s with %d bodies for %d steps...\n", name, len(s.Bodies()), cfg.Steps)

	result, runErr := s.Run(cmd.Context(), cfg.Steps)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		logger.Get().Warn("run interrupted, saving partial result", "steps", result.Steps, "error", runErr)
	}

	runID, err := st.Save(storage.RunMetadata{
		Scenario:    name,
		Seed:        cfg.Seed,
		Bodies:      len(s.Bodies()),
		DomainSize:  cfg.DomainSize,
		Workers:     cfg.Workers,
		SampleEvery: cfg.SampleEvery,
		Params:      cfg.TreeParams(),
	}, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", result.Duration)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d  frames: %d\n", result.Steps, len(result.Frames))
	fmt.Println("\nmetrics:")
	for _, m := range sortedKeys(result.Metrics) {
		fmt.Printf("  %s: %.6g\n", m, result.Metrics[m])
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// Logging to stderr would tear the alternate screen.
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "live.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger.InitWriter(logFile, cfg.LogLevel, cfg.LogFormat)

	s, err := newSimulator(cfg)
	if err != nil {
		return err
	}

	return viz.Run(cmd.Context(), sim.NewDriver(s), viz.Options{
		FPS:           frameRate,
		StepsPerFrame: stepsPerFrame,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	s, err := newSimulator(cfg)
	if err != nil {
		return err
	}

	srv := server.New(sim.NewDriver(s), server.Options{
		Addr:        addr,
		TPS:         cfg.TPS,
		StreamEvery: streamEvery,
	})
	return srv.Run(cmd.Context())
}

func generateScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	bodies, err := loadBodies(cfg)
	if err != nil {
		return err
	}
	if outFile == "" {
		return scenario.Write(os.Stdout, bodies)
	}
	if err := scenario.WriteFile(outFile, bodies); err != nil {
		return err
	}
	fmt.Printf("wrote %d bodies to %s (seed %d)\n", len(bodies), outFile, cfg.Seed)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(baseCfg.DataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tBODIES\tSTEPS\tRATIO\tELAPSED")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%g\t%.0fms\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Bodies,
			run.Steps,
			run.Params.ThresholdRatio,
			run.ElapsedMS,
		)
	}

	return w.Flush()
}

func kineticEnergy(f sim.Snapshot) float64 {
	var e float64
	for _, b := range f.Bodies {
		e += 0.5 * b.Mass * (b.VX*b.VX + b.VY*b.VY)
	}
	return e
}

func momentum(f sim.Snapshot) float64 {
	var p r2.Vec
	for _, b := range f.Bodies {
		p = r2.Add(p, r2.Vec{X: b.Mass * b.VX, Y: b.Mass * b.VY})
	}
	return r2.Norm(p)
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(baseCfg.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(frames) < 2 {
		return fmt.Errorf("run %s has %d frames; rerun with --sample-every", runID, len(frames))
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("frames: %d\n\n", len(frames))

	plots := []struct {
		caption string
		fn      func(sim.Snapshot) float64
	}{
		{"kinetic energy", kineticEnergy},
		{"|total momentum|", momentum},
	}
	for _, p := range plots {
		graph := asciigraph.Plot(storage.Series(frames, p.fn),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(baseCfg.DataDir)
	return st.ExportJSON(os.Stdout, args[0])
}

// restoreBodies rebuilds bodies from a stored frame, skipping any that no
// longer validate (for example after drifting to negative coordinates).
func restoreBodies(f sim.Snapshot) []*body.Body {
	out := make([]*body.Body, 0, len(f.Bodies))
	for _, b := range f.Bodies {
		nb, err := body.New(b.Mass, r2.Vec{X: b.X, Y: b.Y}, r2.Vec{X: b.VX, Y: b.VY})
		if err != nil {
			continue
		}
		out = append(out, nb)
	}
	return out
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(baseCfg.DataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("run %s has no frames", runID)
	}
	for i := range frames {
		frames[i].DomainSize = meta.DomainSize
		frames[i].Root = quadtree.Bounds{Size: meta.DomainSize}
	}

	var svg string
	if trails {
		svg = export.TrailsToSVG(frames, int(meta.DomainSize*scale), "#00ccff")
	} else {
		idx := frameIdx
		if idx < 0 {
			idx += len(frames)
		}
		if idx < 0 || idx >= len(frames) {
			return fmt.Errorf("frame %d out of range (%d frames)", frameIdx, len(frames))
		}
		snap := frames[idx]

		bodies := restoreBodies(snap)
		tree := quadtree.Build(bodies, meta.DomainSize, meta.Params)
		snap.Root = tree.Bounds()
		for i := range snap.Bodies {
			snap.Bodies[i].Size = displaySize(snap.Bodies[i].Mass)
		}
		if showTree {
			snap.Nodes = tree.AllBounds()
		}

		var used []quadtree.Bounds
		if len(probe) == 2 {
			p, err := body.New(1, r2.Vec{X: probe[0], Y: probe[1]}, r2.Vec{})
			if err != nil {
				return fmt.Errorf("probe: %w", err)
			}
			used = tree.UsedNodes(p)
		}
		svg = export.SnapshotToSVG(snap, scale, used)
	}

	var w io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err = io.WriteString(w, svg)
	return err
}

func displaySize(mass float64) float64 {
	b, err := body.New(mass, r2.Vec{}, r2.Vec{})
	if err != nil {
		return 0
	}
	return b.DisplaySize()
}

func benchTree(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	bodies, err := loadBodies(cfg)
	if err != nil {
		return err
	}
	params := cfg.TreeParams()

	fmt.Printf("%s: %d bodies, domain %g, seed %d\n\n", scenarioName(cfg), len(bodies), cfg.DomainSize, cfg.Seed)

	exact := reference.Direct(bodies, params)
	rows := reference.Sweep(bodies, cfg.DomainSize, params, ratios)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RATIO\tNODES\tTREE\tDIRECT\tERROR\tGONUM ERROR")
	for _, r := range rows {
		gonumErr := "-"
		if forces, err := reference.Gonum(bodies, r.ThresholdRatio, params.G); err == nil {
			gonumErr = fmt.Sprintf("%.3e", reference.RelativeError(forces, exact))
		}
		fmt.Fprintf(w, "%g\t%d\t%v\t%v\t%.3e\t%s\n",
			r.ThresholdRatio,
			r.Nodes,
			r.TreeTime.Round(time.Microsecond),
			r.DirectTime.Round(time.Microsecond),
			r.RelativeError,
			gonumErr,
		)
	}
	return w.Flush()
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tGENERATOR\tBODIES\tDOMAIN\tSTEPS")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%s\t%d\t%g\t%d\n", name, p.Generator, p.Bodies, p.DomainSize, p.Steps)
	}
	return w.Flush()
}
