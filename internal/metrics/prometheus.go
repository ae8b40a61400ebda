package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/san-kum/quadsim/internal/sim"
)

var (
	StepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quadsim_steps_total",
			Help: "Total number of simulation steps completed",
		},
	)

	StepPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quadsim_step_duration_seconds",
			Help:    "Duration of each step phase in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"phase"}, // phase: force, apply, build
	)

	BodiesGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quadsim_bodies",
			Help: "Number of bodies in the latest tree",
		},
	)

	ExcludedGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quadsim_excluded_bodies",
			Help: "Bodies left out of the latest tree for non-finite positions",
		},
	)

	TreeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quadsim_tree_nodes",
			Help: "Number of nodes in the latest tree",
		},
	)

	TreeDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quadsim_tree_depth",
			Help: "Maximum depth of the latest tree",
		},
	)

	ClampedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quadsim_clamped_total",
			Help: "Total number of near-field distance clamps",
		},
	)

	// Server metrics
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quadsim_stream_clients",
			Help: "Number of connected websocket stream clients",
		},
	)

	BodiesAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quadsim_bodies_added_total",
			Help: "Bodies added to a running simulation",
		},
		[]string{"source"}, // source: http, tui
	)
)

// Recorder exports every step to the Prometheus collectors.
type Recorder struct{}

func (Recorder) OnStep(info *sim.StepInfo) {
	StepsTotal.Inc()
	StepPhaseDuration.WithLabelValues("force").Observe(info.Force.Seconds())
	StepPhaseDuration.WithLabelValues("apply").Observe(info.Apply.Seconds())
	StepPhaseDuration.WithLabelValues("build").Observe(info.Build.Seconds())
	ClampedTotal.Add(float64(info.Clamped))

	if info.Tree == nil {
		return
	}
	st := info.Tree.Stats()
	BodiesGauge.Set(float64(st.Bodies))
	ExcludedGauge.Set(float64(st.Excluded))
	TreeNodes.Set(float64(st.Nodes))
	TreeDepth.Set(float64(st.MaxDepth))
}
