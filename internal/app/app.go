// Package app is the application layer between the CLI and the media core.
// It constructs all dependencies from config and manages their lifecycle on
// Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/semaphore"

	"mediad/internal/api"
	"mediad/internal/catalog"
	"mediad/internal/channels"
	"mediad/internal/config"
	"mediad/internal/database"
	"mediad/internal/download"
	"mediad/internal/storage"
)

const httpShutdownTimeout = 10 * time.Second

// MediaApp wires the catalog store, channel layer, download orchestrator and
// HTTP surface together. The caller must call Close when done.
type MediaApp struct {
	cfg          *config.Config
	stores       *database.Stores
	reviews      *database.ReviewStore
	media        storage.Storage
	registry     *channels.Registry
	manager      *channels.Manager
	materializer *channels.Materializer
	orchestrator *download.Orchestrator
	server       *api.Server
	logger       catalog.Logger
	logFile      *os.File
}

// NewMediaApp creates a fully wired MediaApp from the given config.
// operation identifies the CLI command being run (e.g. "Serve", "Refresh").
func NewMediaApp(ctx context.Context, cfg *config.Config, operation string) (*MediaApp, error) {
	slogger, logFile, err := newLogger(cfg.LogDir, operation)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}
	clock := catalog.RealClock{}

	types := catalog.NewDefaultRegistry()
	stores, err := database.NewStoresFromConfig(ctx, cfg.Database, types, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating stores: %w", err)
	}

	reviews, err := database.NewReviewStore(cfg.DataDir)
	if err != nil {
		stores.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating review store: %w", err)
	}

	media, err := storage.NewStorageFromConfig(ctx, cfg.Storage)
	if err != nil {
		stores.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating media storage: %w", err)
	}

	registry := channels.NewRegistry(stores.Items, cfg.CacheDir, clock, logger)

	// One fetch permit shared by every channel: remote listing fetches are
	// globally serialized.
	fetchPermit := semaphore.NewWeighted(1)
	cache := channels.NewListingCache(cfg.CacheDir, channels.DefaultCacheTTL, fetchPermit, clock, logger)
	materializer := channels.NewMaterializer(stores.Items, channels.NopRefresher{}, clock, logger)
	manager := channels.NewManager(registry, cache, materializer, logger)

	ledger := download.NewSourceLedger(filepath.Join(cfg.DataDir, "channels", "failures.txt"), logger)
	orchestrator := download.NewOrchestrator(stores.Items, registry, media, ledger, clock, logger, download.OrchestratorOptions{})

	server := api.NewServer(registry, manager, orchestrator, stores.Items, stores.Items, reviews, logger)

	return &MediaApp{
		cfg:          cfg,
		stores:       stores,
		reviews:      reviews,
		media:        media,
		registry:     registry,
		manager:      manager,
		materializer: materializer,
		orchestrator: orchestrator,
		server:       server,
		logger:       logger,
		logFile:      logFile,
	}, nil
}

// RegisterProvider adds a static channel provider.
func (a *MediaApp) RegisterProvider(p channels.Provider) {
	a.registry.RegisterProvider(p)
}

// RegisterFactory adds a channel factory.
func (a *MediaApp) RegisterFactory(f channels.Factory) {
	a.registry.RegisterFactory(f)
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down
// gracefully.
func (a *MediaApp) Serve(ctx context.Context) error {
	if err := a.media.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("media storage not usable: %w", err)
	}

	engine := api.SetupRouter(a.server, a.cfg.Server.Mode)
	srv := &http.Server{
		Addr:    a.cfg.Server.Address,
		Handler: engine,
	}

	errs := make(chan error, 1)
	go func() {
		a.logger.Info("serving", "address", a.cfg.Server.Address)
		errs <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// RefreshChannels re-registers every known channel in the catalog.
func (a *MediaApp) RefreshChannels(ctx context.Context, progress func(float64)) error {
	return a.registry.RefreshAllChannels(ctx, progress)
}

// ListChannels returns the currently known channel providers.
func (a *MediaApp) ListChannels() []channels.Provider {
	return a.registry.ListChannels()
}

// Manager exposes cross-channel media queries.
func (a *MediaApp) Manager() *channels.Manager { return a.manager }

// Orchestrator exposes content downloading.
func (a *MediaApp) Orchestrator() *download.Orchestrator { return a.orchestrator }

// BackupDatabase writes a consistent snapshot of the item database to
// destPath.
func (a *MediaApp) BackupDatabase(destPath string) error {
	return a.stores.Items.BackupTo(destPath)
}

// Close releases all resources in reverse dependency order.
func (a *MediaApp) Close() error {
	var errs []error
	a.orchestrator.Close()
	a.materializer.Close()
	if err := a.stores.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
