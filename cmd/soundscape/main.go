package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/soundscape/internal/api"
	"github.com/satindergrewal/soundscape/internal/audio"
	"github.com/satindergrewal/soundscape/internal/catalog"
	"github.com/satindergrewal/soundscape/internal/config"
	"github.com/satindergrewal/soundscape/internal/engine"
	"github.com/satindergrewal/soundscape/internal/events"
	"github.com/satindergrewal/soundscape/internal/logging"
	"github.com/satindergrewal/soundscape/internal/media"
	"github.com/satindergrewal/soundscape/internal/preset"
	"github.com/satindergrewal/soundscape/internal/store"
	"github.com/satindergrewal/soundscape/internal/stream"
)

var (
	logger zerolog.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "soundscape",
	Short: "Layered ambient soundscape mixer",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger = logging.Setup(cfg.Environment)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mixer, its HTTP API and the listener streams",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// library is the persistent side of the mixer: records, blobs and the
// merged sound catalog.
type library struct {
	store   *store.DBStore
	catalog *catalog.Catalog
	close   func()
}

func openLibrary(ctx context.Context) (*library, error) {
	db, err := store.Connect(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if err := store.Close(db); err != nil {
			logger.Error().Err(err).Msg("close database")
		}
	}

	blobs, err := media.NewStorage(ctx, cfg, logger)
	if err != nil {
		closeDB()
		return nil, err
	}
	if err := blobs.CheckAccess(ctx); err != nil {
		closeDB()
		return nil, fmt.Errorf("media storage: %w", err)
	}

	st, err := store.New(db, blobs, logger)
	if err != nil {
		closeDB()
		return nil, err
	}
	if err := st.MigrateLegacy(ctx); err != nil {
		closeDB()
		return nil, fmt.Errorf("migrate legacy records: %w", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		closeDB()
		return nil, err
	}
	if err := cat.Sync(ctx, st); err != nil {
		closeDB()
		return nil, err
	}
	return &library{store: st, catalog: cat, close: closeDB}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info().Int("port", cfg.Port).Msg("soundscape starting up")

	lib, err := openLibrary(ctx)
	if err != nil {
		return err
	}
	defer lib.close()
	logger.Info().Int("sounds", lib.catalog.Len()).Msg("sound catalog loaded")

	bus := events.NewBus()
	graph := audio.NewGraph(logger)
	eng := engine.New(graph, lib.catalog, media.NewFetcher(cfg.SoundsDir, lib.store, logger), bus, cfg.MasterVolume, logger)
	presets := preset.NewCoordinator(lib.store, eng, lib.catalog, bus, logger)

	if cfg.AutoBootstrap {
		name, err := presets.Bootstrap(ctx)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("startup mix not loaded")
		case name != "":
			logger.Info().Str("preset", name).Msg("startup mix loaded")
		}
	}

	// Rendered mix: graph -> pipeline -> broadcaster -> listeners
	pipeline := audio.NewPipeline(graph, logger)
	go pipeline.Run(ctx)

	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, pipeline.Frames())

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, cfg.STUNURL, cfg.OpusBitrate, logger)
	defer webrtcHandler.Close()

	handler := api.New(api.Deps{
		Engine:         eng,
		Catalog:        lib.catalog,
		Store:          lib.store,
		Presets:        presets,
		Bus:            bus,
		Stream:         stream.NewHTTPHandler(broadcaster, cfg.StreamBitrate, logger),
		Offer:          webrtcHandler,
		Metrics:        cfg.MetricsEnabled,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, logger).Handler()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info().Msg("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := eng.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("engine shutdown")
	}

	frames, uptime := pipeline.Status()
	logger.Info().Uint64("frames", frames).Dur("uptime", uptime).Msg("soundscape stopped")
	return nil
}
