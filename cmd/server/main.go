package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/splitledger/splitledger/internal/api"
	"github.com/splitledger/splitledger/internal/config"
	"github.com/splitledger/splitledger/internal/service"
	"github.com/splitledger/splitledger/internal/storage/sqlite"
	"github.com/splitledger/splitledger/pkg/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	rates, err := cfg.RateProvider()
	if err != nil {
		slog.Error("Failed to parse rate table", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.SQLiteDBPath)

	svc := service.NewLedgerService(store, rates)
	router := api.NewRouter(svc, cfg.DefaultCurrency)

	// h2c allows HTTP/2 without TLS for clients that want it.
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h2c.NewHandler(router, &http2.Server{}),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server starting", "address", srv.Addr, "default_currency", cfg.DefaultCurrency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
