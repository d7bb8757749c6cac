package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/durgaprasad-mokara/bank-lending-project/pkg/config"
	"github.com/durgaprasad-mokara/bank-lending-project/pkg/metrics"
	"github.com/durgaprasad-mokara/bank-lending-project/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func init() {
	// The web client reads amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

func openStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store.Storage, error) {
	opts := []store.Option{
		store.WithLogger(logger),
		store.WithSeedCustomers(cfg.SeedCustomers),
	}
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return store.NewPostgresStore(ctx, cfg.DatabaseURL, opts...)
	case config.DriverMemory:
		return store.NewMemoryStore(opts...), nil
	default:
		return store.NewSQLiteStore(cfg.DBPath, opts...)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	storage, err := openStorage(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize %s store: %v", cfg.DBDriver, err)
	}
	defer storage.Close()

	server := NewServer(storage, logger, metrics.NewCollector())
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Routes(),
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Bank lending API server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Graceful shutdown failed")
	}
	logger.Info("Server stopped")
}
