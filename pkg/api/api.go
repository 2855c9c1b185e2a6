package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/ethpandaops/testoor/pkg/indexstore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Server serves the run history index and the log artifacts over HTTP.
// It is read-only: nothing it exposes can mutate run state.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.ServerConfig
	index      indexstore.Store
	resultsDir string
	httpServer *http.Server
}

// NewServer creates a results server backed by the given index store.
// The resultsDir is served under /logs/ so CI consumers can fetch the
// raw per-test log artifacts.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.ServerConfig,
	index indexstore.Store,
	resultsDir string,
) Server {
	return &server{
		log:        log.WithField("component", "api"),
		cfg:        cfg,
		index:      index,
		resultsDir: resultsDir,
	}
}

// Start starts the HTTP server. It returns once the listener is up;
// serving continues until Stop or context cancellation.
func (s *server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		<-ctx.Done()

		if err := s.Stop(); err != nil {
			s.log.WithError(err).Warn("Failed to stop server")
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("starting http server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	s.log.WithField("listen", s.cfg.Listen).Info("Results server started")

	return nil
}

// Stop shuts the HTTP server down gracefully.
func (s *server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// routes builds the router.
func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		}))
	}

	if s.cfg.RateLimit.Enabled {
		r.Use(rateLimitMiddleware(s.log, s.cfg.RateLimit.RequestsPerMinute))
	}

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
	})

	if s.resultsDir != "" {
		fileServer := http.StripPrefix("/logs/", http.FileServer(http.Dir(s.resultsDir)))
		r.Get("/logs/*", fileServer.ServeHTTP)
	}

	return r
}
