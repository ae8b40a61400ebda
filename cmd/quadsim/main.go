package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/san-kum/quadsim/internal/config"
	"github.com/san-kum/quadsim/internal/logger"
	"github.com/san-kum/quadsim/internal/tracing"
	"github.com/spf13/cobra"
)

var (
	// Root
	dataDir    string
	logLevel   string
	logFormat  string
	configFile string

	// Simulation
	preset       string
	generator    string
	scenarioFile string
	numBodies    int
	seed         int64
	domainSize   float64
	steps        int
	workers      int
	sampleEvery  int
	ratio        float64
	minSize      float64
	gravity      float64

	// Live and serve
	tps           float64
	frameRate     int
	stepsPerFrame int
	addr          string
	streamEvery   int

	// Output
	outFile  string
	frameIdx int
	scale    float64
	showTree bool
	trails   bool
	probe    []float64
	ratios   []float64

	// Resolved in PersistentPreRunE from --config, the environment and the
	// root flags.
	baseCfg *config.Config
)

func main() {
	shutdown := func(context.Context) error { return nil }

	rootCmd := &cobra.Command{
		Use:           "quadsim",
		Short:         "barnes-hut n-body gravity simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg := config.DefaultConfig()
			if configFile != "" {
				loaded, err := config.Load(configFile)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				cfg = loaded
			}
			cfg.ApplyEnv()

			flags := cmd.Flags()
			if flags.Changed("data") {
				cfg.DataDir = dataDir
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			baseCfg = cfg

			logger.Init(cfg.LogLevel, cfg.LogFormat)

			fn, err := tracing.Init("quadsim")
			if err != nil {
				logger.Get().Warn("tracing disabled", "error", err)
				return nil
			}
			shutdown = fn
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", config.DefaultLogFormat, "log format (text, json)")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store sampled frames",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a simulation with live terminal visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	liveCmd.Flags().IntVar(&stepsPerFrame, "steps-per-frame", 1, "simulation steps per frame")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run a simulation behind an HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addSimFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().Float64Var(&tps, "tps", config.DefaultTPS, "steps per second (0 = unthrottled)")
	serveCmd.Flags().IntVar(&streamEvery, "stream-every", 1, "send every n-th step to stream clients")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "write a generated scenario file",
		Args:  cobra.NoArgs,
		RunE:  generateScenario,
	}
	addSimFlags(generateCmd)
	generateCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (.txt or .yaml; default stdout)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and frames as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a stored frame as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().IntVar(&frameIdx, "frame", -1, "frame index (negative counts from the end)")
	exportSVGCmd.Flags().Float64Var(&scale, "scale", 1, "pixels per domain unit")
	exportSVGCmd.Flags().BoolVar(&showTree, "tree", false, "overlay the quadtree partition")
	exportSVGCmd.Flags().Float64SliceVar(&probe, "probe", nil, "x,y of a probe whose aggregated nodes are highlighted")
	exportSVGCmd.Flags().BoolVar(&trails, "trails", false, "draw body trails over all frames instead")
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "compare tree forces against the direct sum",
		Args:  cobra.NoArgs,
		RunE:  benchTree,
	}
	addSimFlags(benchCmd)
	benchCmd.Flags().Float64SliceVar(&ratios, "ratios", []float64{0, 0.25, 0.5, 1, 2}, "threshold ratios to sweep")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, liveCmd, serveCmd, generateCmd, listCmd, plotCmd, exportCmd, exportSVGCmd, benchCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = shutdown(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&generator, "generator", config.DefaultGenerator, "body generator")
	f.StringVar(&scenarioFile, "scenario", "", "scenario file (.txt or .yaml); overrides --generator")
	f.IntVarP(&numBodies, "bodies", "n", config.DefaultBodies, "number of bodies")
	f.Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	f.Float64Var(&domainSize, "domain", config.DefaultDomainSize, "domain side length")
	f.IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	f.IntVar(&workers, "workers", 0, "force workers (0 = GOMAXPROCS)")
	f.IntVar(&sampleEvery, "sample-every", 0, "store a frame every n steps")
	f.Float64Var(&ratio, "ratio", config.DefaultConfig().Tree.ThresholdRatio, "size/distance threshold ratio")
	f.Float64Var(&minSize, "min-size", config.DefaultConfig().Tree.MinSize, "smallest node side")
	f.Float64Var(&gravity, "g", config.DefaultConfig().Tree.G, "gravitational constant")
}
