// Package startup sequences process boot: configuration, logging, the
// database liveness probe, and only then the HTTP listener.
package startup

import (
	"context"
	"net"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"

	"guild_stats_site/internal/config"
	"guild_stats_site/internal/logging"
	"guild_stats_site/internal/store"
	"guild_stats_site/internal/web"
)

const (
	databaseProbeTimeout = 10 * time.Second
	httpShutdownTimeout  = 10 * time.Second
	sourceCloseTimeout   = 5 * time.Second
)

// Stage names the boot step a Result refers to.
type Stage string

const (
	StageConfig   Stage = "config"
	StageLogging  Stage = "logging"
	StageDatabase Stage = "database"
	StageListen   Stage = "listen"
	StageServe    Stage = "serve"
)

// Result reports how Run ended. A zero Err means a clean shutdown.
type Result struct {
	Stage Stage
	Err   error
}

// OK reports whether Run ended without error.
func (r Result) OK() bool {
	return r.Err == nil
}

// ExitCode maps the result onto the process exit status.
func (r Result) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

func (r Result) Error() string {
	if r.OK() {
		return ""
	}
	return string(r.Stage) + ": " + r.Err.Error()
}

// Options holds the side-effecting steps of Run. Nil fields fall back to the
// production implementations.
type Options struct {
	LoadConfig  func() (config.Config, error)
	SetupLogger func(config.Config) (*logrus.Entry, error)
	OpenSource  func(context.Context, config.Config) (store.Source, error)
	Listen      func(network, address string) (net.Listener, error)
}

func (o Options) withDefaults() Options {
	if o.LoadConfig == nil {
		o.LoadConfig = config.Load
	}
	if o.SetupLogger == nil {
		o.SetupLogger = logging.Setup
	}
	if o.OpenSource == nil {
		o.OpenSource = store.Open
	}
	if o.Listen == nil {
		o.Listen = net.Listen
	}
	return o
}

// Run boots the site and serves until ctx is canceled. The listener is never
// bound unless the database probe succeeded.
func Run(ctx context.Context, opts Options) Result {
	opts = opts.withDefaults()

	cfg, err := opts.LoadConfig()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"event": "config_error", "error": err})
		return Result{Stage: StageConfig, Err: err}
	}

	logger, err := opts.SetupLogger(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"event": "logger_error", "error": err})
		return Result{Stage: StageLogging, Err: err}
	}

	logger.WithFields(logging.Fields{
		"event":         "startup",
		"stats_backend": cfg.StatsBackend,
		"guild_id":      cfg.GuildID,
	}).Info("configuration loaded")

	source, err := opts.OpenSource(ctx, cfg)
	if err != nil {
		logger.WithError(err).WithField("event", "database_open_error").Error("could not open snapshot source")
		return Result{Stage: StageDatabase, Err: err}
	}

	probeCtx, cancelProbe := context.WithTimeout(ctx, databaseProbeTimeout)
	err = source.Ping(probeCtx)
	cancelProbe()
	if err != nil {
		logger.WithError(err).WithField("event", "database_probe_error").Error("database is unreachable")
		closeSource(logger, source)
		return Result{Stage: StageDatabase, Err: err}
	}

	logger.WithField("event", "database_connect").Info("database connected")

	server := web.NewServer(cfg.Port, source, cfg.GuildID, logger,
		web.WithSiteDir(cfg.SiteDir),
		web.WithQueryTimeout(cfg.QueryTimeout),
	)

	ln, err := opts.Listen("tcp", ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		logger.WithError(err).WithField("event", "http_listen_error").Error("could not bind listener")
		closeSource(logger, source)
		return Result{Stage: StageListen, Err: errors.Wrap(err, "listen")}
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	var result Result
	select {
	case <-ctx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping http server")
	case err := <-serveErr:
		if err == nil {
			err = errors.New("http server stopped unexpectedly")
		}
		logger.WithError(err).WithField("event", "http_stopped_early").Error("http server stopped before shutdown signal")
		result = Result{Stage: StageServe, Err: err}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), httpShutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).WithField("event", "http_shutdown_error").Warn("http server did not shut down cleanly")
	}
	cancelShutdown()

	closeSource(logger, source)

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
	return result
}

func closeSource(logger *logrus.Entry, source store.Source) {
	ctx, cancel := context.WithTimeout(context.Background(), sourceCloseTimeout)
	defer cancel()

	if err := source.Close(ctx); err != nil {
		logger.WithError(err).WithField("event", "database_close_error").Error("database close error")
		return
	}

	logger.WithField("event", "database_close").Info("database connections released")
}
