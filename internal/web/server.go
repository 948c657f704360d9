// Package web hosts the public site: landing page, static assets, the stats
// API, and the health and metrics endpoints.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/NYTimes/gziphandler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"goji.io"
	"goji.io/pat"

	"guild_stats_site/internal/domain"
	"guild_stats_site/internal/logging"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
	listenPrefix      = ":"

	defaultSiteDir = "site"
)

// SnapshotSource is the read side the handlers depend on.
type SnapshotSource interface {
	LatestSnapshot(ctx context.Context, guildID string) (domain.Snapshot, error)
	Ping(ctx context.Context) error
}

// Server owns the HTTP server, router, and per-server metrics registry.
type Server struct {
	server         *http.Server
	logger         *logrus.Entry
	source         SnapshotSource
	defaultGuildID string
	siteDir        string
	queryTimeout   time.Duration
	registry       *prometheus.Registry
	metrics        *metrics
}

// Option configures a Server.
type Option func(*Server)

// WithSiteDir sets the directory holding index.html and assets/.
func WithSiteDir(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.siteDir = dir
		}
	}
}

// WithQueryTimeout bounds pool wait plus query time per stats request.
// Zero disables the bound.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.queryTimeout = timeout }
}

// NewServer constructs the site server listening on the provided port.
func NewServer(port int, source SnapshotSource, defaultGuildID string, logger *logrus.Entry, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:         logger,
		source:         source,
		defaultGuildID: defaultGuildID,
		siteDir:        defaultSiteDir,
		registry:       prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.metrics = newMetrics(srv.registry)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", listenPrefix, port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	return srv
}

func (s *Server) routes() http.Handler {
	mux := goji.NewMux()
	mux.Use(requestIDMiddleware)
	mux.Use(accessLogMiddleware(s.logger))

	mux.Handle(pat.Get("/"), s.instrument("index", http.HandlerFunc(s.handleIndex)))
	mux.Handle(pat.Get("/assets/*"), s.instrument("assets", s.assetsHandler()))
	mux.Handle(pat.Get("/api/stats"), s.instrument("stats", http.HandlerFunc(s.handleStats)))
	mux.Handle(pat.Get("/healthz"), s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle(pat.Get("/metrics"), promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return gziphandler.GzipHandler(mux)
}

// Handler exposes the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Serve accepts connections on ln and blocks until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.WithFields(logging.Fields{
		"event": "http_listen",
		"addr":  ln.Addr().String(),
	}).Info("site/api listening")

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http serve")
	}

	s.logger.WithField("event", "http_stopped").Info("http server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}
