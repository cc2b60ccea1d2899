// Package server wires the home server together: configuration, the
// relational store, the blob backend, services, the authorization gate,
// the telemetry channel and the HTTP listener, with graceful shutdown on
// SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/homeserver/internal/clock"
	"github.com/dmitrijs2005/homeserver/internal/cryptox"
	"github.com/dmitrijs2005/homeserver/internal/dbx"
	"github.com/dmitrijs2005/homeserver/internal/logging"
	"github.com/dmitrijs2005/homeserver/internal/server/auth"
	"github.com/dmitrijs2005/homeserver/internal/server/blobstore"
	"github.com/dmitrijs2005/homeserver/internal/server/config"
	"github.com/dmitrijs2005/homeserver/internal/server/gate"
	"github.com/dmitrijs2005/homeserver/internal/server/httpapi"
	"github.com/dmitrijs2005/homeserver/internal/server/probe"
	"github.com/dmitrijs2005/homeserver/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/homeserver/internal/server/services"
	"github.com/dmitrijs2005/homeserver/internal/server/telemetry"
)

type App struct {
	config            *config.Config
	logger            logging.Logger
	db                *sql.DB
	userService       *services.UserService
	contentService    *services.ContentService
	monitoringService *services.MonitoringService
	gate              *gate.Gate
	telemetry         *telemetry.Channel
}

// NewApp builds every component. startedAt is the process start time
// reported as uptime by the telemetry documents.
func NewApp(ctx context.Context, c *config.Config, startedAt time.Time) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	pool := dbx.DefaultPoolConfig()
	if c.DBMaxOpenConns > 0 {
		pool.MaxOpenConns = c.DBMaxOpenConns
		pool.MaxIdleConns = c.DBMaxOpenConns
	}
	db, err := dbx.OpenPostgres(ctx, c.DatabaseDSN, pool)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, db, repomanager.NewPostgresRepositoryManager(), logger, startedAt)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger, startedAt time.Time) (*App, error) {
	if c.RunMigrations {
		if err := rm.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migrations error: %w", err)
		}
		logger.Info(ctx, "Migrations applied")
	}

	store, probeRoot, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}
	if err := store.Check(ctx); err != nil {
		return nil, fmt.Errorf("blob store check error: %w", err)
	}

	if c.SecretKey == config.DefaultSecretKey {
		logger.Warn(ctx, "token signing key is the built-in default; set HOMESERVER_SECRET_KEY or -s")
	}
	tokens, err := auth.NewTokenService([]byte(c.SecretKey), c.AccessTokenValidityDuration, clock.Real())
	if err != nil {
		return nil, fmt.Errorf("token service init error: %w", err)
	}

	us := services.NewUserService(db, rm, cryptox.NewPasswordHasher(cryptox.DefaultArgon2Params), tokens, logger)
	cs := services.NewContentService(db, rm, store, clock.Real(), logger)
	ms := services.NewMonitoringService(probe.New(probeRoot, probe.DefaultSampleGap), cs, clock.Real(), startedAt)
	g := gate.New(tokens, us, logger)

	return &App{
		config:            c,
		logger:            logger,
		db:                db,
		userService:       us,
		contentService:    cs,
		monitoringService: ms,
		gate:              g,
		telemetry:         telemetry.NewChannel(g, ms, c.TelemetryInterval, logger),
	}, nil
}

// newBlobStore returns the configured backend and the local path whose
// filesystem the probe reports on.
func newBlobStore(ctx context.Context, c *config.Config) (blobstore.Store, string, error) {
	switch c.StorageBackend {
	case config.BackendFS, "":
		fs, err := blobstore.NewFSStore(c.StoragePath)
		if err != nil {
			return nil, "", err
		}
		return fs, fs.Root(), nil
	case config.BackendS3:
		s3, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
			Prefix:       c.S3Prefix,
		})
		if err != nil {
			return nil, "", err
		}
		return s3, string(os.PathSeparator), nil
	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) sweep(ctx context.Context) {
	if !app.config.SweepOnStart {
		return
	}
	n, err := app.contentService.Sweep(ctx, app.config.SweepGrace)
	if err != nil {
		app.logger.Error(ctx, "orphan sweep failed", "error", err)
		return
	}
	app.logger.Info(ctx, "orphan sweep finished", "removed", n)
}

func (app *App) handler() *httpapi.API {
	return httpapi.New(httpapi.Options{
		CORSOrigins:    app.config.CORSOrigins,
		MaxUploadBytes: app.config.MaxUploadBytes,
	}, app.userService, app.contentService, app.monitoringService, app.gate, app.telemetry, app.logger)
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.handler().Router(), app.logger, app.telemetry.Shutdown)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until a signal arrives or ctx ends.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	app.sweep(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
