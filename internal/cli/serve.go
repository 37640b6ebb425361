package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/engine"
	"github.com/lazypower/lifeaxes/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	win, err := defaultWindow()
	if err != nil {
		return err
	}

	var (
		provider catalog.Provider = catalog.Static{C: catalog.Default()}
		reloader server.Reloader
	)
	if cfg.Catalog.Path != "" {
		w, err := catalog.NewWatcher(cfg.Catalog.Path, logger)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if cfg.Catalog.Watch {
			if err := w.Start(); err != nil {
				logger.Warn("catalog watch disabled", zap.Error(err))
			}
			defer w.Stop()
		}
		provider, reloader = w, w
	}

	eng, err := configureEngine(engine.New(db, provider, logger))
	if err != nil {
		return err
	}
	eng.StartRefreshTimer(cfg.Pipeline.RefreshInterval, win)
	defer eng.Stop()

	srv := server.New(db, eng, server.Options{
		Version:       VersionString(),
		DefaultWindow: win,
		Log:           logger.Named("http"),
		Reloader:      reloader,
	})
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lifeaxes serving",
			zap.String("addr", addr),
			zap.String("db", db.Path),
			zap.String("window", win.String()),
			zap.Duration("refresh", cfg.Pipeline.RefreshInterval))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
