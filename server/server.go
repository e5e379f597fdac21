// Package server exposes conversion jobs over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"epub2pdf/config"
	"epub2pdf/convert"
	"epub2pdf/jobs"
	"epub2pdf/metrics"
	"epub2pdf/state"
)

type Server struct {
	cfg      *config.Config
	tracker  *jobs.Tracker
	pipeline *convert.Pipeline
	rec      *metrics.Recorder
	router   chi.Router
	log      *zap.Logger

	// running conversions
	wg sync.WaitGroup
}

type Option func(*Server)

// WithTracker replaces job registry, used by tests.
func WithTracker(tr *jobs.Tracker) Option {
	return func(s *Server) {
		s.tracker = tr
	}
}

func New(env *state.LocalEnv, opts ...Option) *Server {
	s := &Server{
		cfg:      env.Cfg,
		pipeline: convert.NewPipeline(env),
		rec:      env.Metrics,
		router:   chi.NewRouter(),
		log:      env.Log.Named("server"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.tracker == nil {
		s.tracker = jobs.NewTracker(env.Metrics, env.Log)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.With(s.limiter()).Post("/convert", s.handleConvert)
	s.router.Get("/status/{id}", s.handleStatus)
	s.router.Get("/download/{id}", s.handleDownload)
	s.router.Post("/cleanup", s.handleCleanup)

	s.router.Method(http.MethodGet, "/metrics", s.rec.Handler())
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "jobs": s.tracker.Len()})
	})
}

// limiter restricts submissions per client address.
func (s *Server) limiter() func(http.Handler) http.Handler {
	sc := &s.cfg.Server
	if sc.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(sc.RequestLimit, sc.RequestWindow,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.Debug("Request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// submit starts conversion in background. Conversion outlives the request
// which submitted it.
func (s *Server) submit(ctx context.Context, id string, req convert.Request) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pipeline.RunJob(context.WithoutCancel(ctx), s.tracker, id, req, s.cfg.Jobs.WorkDir)
	}()
}

// Wait blocks until running conversions finish or ctx ends.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep removes expired jobs.
func (s *Server) Sweep() int {
	n := s.tracker.Sweep(s.cfg.Jobs.Retention)
	if n > 0 {
		s.log.Info("Expired conversions removed", zap.Int("count", n))
	}
	return n
}

// StartSweeper periodically removes expired jobs until ctx ends.
func (s *Server) StartSweeper(ctx context.Context) {
	interval := s.cfg.Jobs.SweepInterval
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}
