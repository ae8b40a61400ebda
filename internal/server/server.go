// Package server exposes a running simulation over HTTP: JSON snapshots, a
// websocket stream of frames, body injection and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/quadsim/internal/body"
	"github.com/san-kum/quadsim/internal/logger"
	"github.com/san-kum/quadsim/internal/metrics"
	"github.com/san-kum/quadsim/internal/sim"
	"github.com/san-kum/quadsim/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 1 << 16
)

type Options struct {
	Addr string
	// TPS is the step rate of the driver; zero or less runs unthrottled.
	TPS float64
	// StreamEvery sends every n-th step to websocket clients.
	StreamEvery int
}

type Server struct {
	driver *sim.Driver
	hub    *Hub
	opts   Options
	log    *slog.Logger
	router *mux.Router
}

func New(d *sim.Driver, opts Options) *Server {
	log := logger.WithComponent("server")
	s := &Server{
		driver: d,
		hub:    NewHub(d, opts.StreamEvery, log),
		opts:   opts,
		log:    log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverer)

	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/snapshot", s.handleSnapshot).Methods("GET")
	r.HandleFunc("/bodies", s.handleAddBody).Methods("POST")
	r.HandleFunc("/pause", s.handlePause(true)).Methods("POST")
	r.HandleFunc("/resume", s.handlePause(false)).Methods("POST")
	r.HandleFunc("/reset", s.handleReset).Methods("POST")
	r.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		s.hub.serve(r.Context(), w, r)
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Hub is exposed so callers that mount Handler themselves can run it.
func (s *Server) Hub() *Hub { return s.hub }

// Run serves HTTP, steps the driver and feeds the stream until ctx is done
// or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return s.driver.Run(ctx, s.opts.TPS)
	})
	g.Go(func() error {
		s.log.Info("listening", "addr", s.opts.Addr, "tps", s.opts.TPS)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.ErrorContext(r.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var step, n int
	s.driver.With(func(sm *sim.Simulator) {
		step = sm.StepCount()
		n = len(sm.Bodies())
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"step":   step,
		"bodies": n,
		"paused": s.driver.Paused(),
	})
}

// GET /snapshot[?tree=1]
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	withNodes := r.URL.Query().Get("tree") == "1"
	writeJSON(w, http.StatusOK, s.driver.Snapshot(withNodes))
}

// BodyRequest is the JSON accepted by POST /bodies.
type BodyRequest struct {
	Mass float64 `json:"mass"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	VX   float64 `json:"vx"`
	VY   float64 `json:"vy"`
}

// POST /bodies
func (s *Server) handleAddBody(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.StartSpan(r.Context(), "server.AddBody", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	var req BodyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	b, err := body.New(req.Mass, r2.Vec{X: req.X, Y: req.Y}, r2.Vec{X: req.VX, Y: req.VY})
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	span.SetAttributes(attribute.Float64("mass", req.Mass))

	s.driver.Add(b)
	metrics.BodiesAdded.WithLabelValues("http").Inc()
	s.log.Debug("body added", "mass", req.Mass, "x", req.X, "y", req.Y)

	writeJSON(w, http.StatusCreated, map[string]any{"added": b.String()})
}

func (s *Server) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.driver.SetPaused(paused)
		s.log.Info("pause toggled", "paused", paused)
		writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.driver.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("simulation reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
