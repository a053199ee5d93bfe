package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/cadence/internal/engine"
	"github.com/seantiz/cadence/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Server is the HTTP control surface of a timeline engine.
type Server struct {
	router *chi.Mux
	store  store.Store
	engine *engine.Engine
	logger *slog.Logger
	addr   string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, s store.Store, eng *engine.Engine, logger *slog.Logger) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		store:  s,
		engine: eng,
		logger: logger,
		addr:   addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/state", s.handleGetState)

		r.Route("/transport", func(r chi.Router) {
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Post("/stop", s.handleStop)
			r.Post("/seek", s.handleSeek)
			r.Put("/fps", s.handleSetFPS)
			r.Put("/loop", s.handleSetLoop)
			r.Put("/frames", s.handleSetTotalFrames)
		})

		r.Route("/scripts", func(r chi.Router) {
			r.Get("/", s.handleListScripts)
			r.Put("/{frame}", s.handleBindScript)
			r.Delete("/{frame}", s.handleUnbindScript)
		})

		r.Route("/clips", func(r chi.Router) {
			r.Get("/", s.handleListClips)
			r.Get("/{clip}", s.handleGetClip)
			r.Put("/{clip}", s.handlePutClip)
			r.Delete("/{clip}", s.handleDeleteClip)
			r.Put("/{clip}/tracks/{property}/keyframes/{frame}", s.handlePutKeyframe)
			r.Delete("/{clip}/tracks/{property}/keyframes/{frame}", s.handleDeleteKeyframe)
			r.Put("/{clip}/colors/{property}/keyframes/{frame}", s.handlePutColorKeyframe)
			r.Delete("/{clip}/colors/{property}/keyframes/{frame}", s.handleDeleteColorKeyframe)
		})

		r.Get("/globals", s.handleGetGlobals)
		r.Get("/snapshots/latest", s.handleLatestSnapshot)
		r.Get("/snapshots/stream", s.handleStreamSnapshots)
		r.Get("/snapshots/ws", s.handleSnapshotsWebsocket)
		r.Get("/console/stream", s.handleStreamConsole)

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/console", s.handleGetSessionConsole)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", context.Cause(ctx))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
