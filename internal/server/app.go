// Package server wires the textshr server together: configuration,
// storage backends, services, background sweeper and the HTTP endpoint,
// under signal-driven graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/textshr/internal/logging"
	"github.com/dmitrijs2005/textshr/internal/server/config"
	"github.com/dmitrijs2005/textshr/internal/server/httpapi"
	"github.com/dmitrijs2005/textshr/internal/server/keygen"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/textshr/internal/server/services"
	"github.com/dmitrijs2005/textshr/internal/server/sweeper"
)

// shutdownTimeout bounds the graceful drain on SIGTERM.
const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	storage  *services.StorageService
	sessions *services.SessionService
	sweeper  *sweeper.Sweeper
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)

	repos, err := newRepositoryManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		repos.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	s3client, err := blobs.NewS3Client(ctx, cfg.S3BaseEndpoint, cfg.S3Region, cfg.S3RootUser, cfg.S3RootPassword)
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("blob store init: %w", err)
	}
	blobStore := blobs.NewS3Repository(s3client, cfg.S3Bucket)

	storage := services.NewStorageService(repos.Records(), blobStore, keygen.New(), logger, cfg)
	sessions := services.NewSessionService(repos.Sessions(), logger, []byte(cfg.SecretKey), cfg.SessionTTL)
	sw := sweeper.New(repos.Records(), blobStore, repos.Sessions(), logger, cfg.SweepInterval)

	return &App{
		config:   cfg,
		logger:   logger,
		repos:    repos,
		storage:  storage,
		sessions: sessions,
		sweeper:  sw,
	}, nil
}

// newRepositoryManager picks the backend: an explicit bolt path selects
// the embedded store, otherwise Postgres.
func newRepositoryManager(ctx context.Context, cfg *config.Config) (repomanager.RepositoryManager, error) {
	if cfg.BoltPath != "" {
		return repomanager.NewBoltRepositoryManager(cfg.BoltPath)
	}
	return repomanager.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
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

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	handler := httpapi.Chain(
		httpapi.NewHandler(app.storage, app.sessions, app.logger),
		httpapi.Recover(app.logger),
		httpapi.RequestLog(app.logger),
		httpapi.Session(app.sessions, app.logger),
	)
	srv := httpapi.NewServer(app.config.EndpointAddr, handler)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server failed", "error", err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, release := context.WithTimeout(context.Background(), shutdownTimeout)
	defer release()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown failed", "error", err.Error())
	}

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(context.Background(), "closing storage failed", "error", err.Error())
	}

	app.logger.Info(context.Background(), "app stopped")
}
