package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/osemenov/walletd/internal/handlers"
	"github.com/osemenov/walletd/internal/logger"
	"github.com/osemenov/walletd/internal/metrics"
	"github.com/osemenov/walletd/internal/repository"
	"github.com/osemenov/walletd/internal/repository/postgres"
	"github.com/osemenov/walletd/internal/service/limits"
	"github.com/osemenov/walletd/internal/service/wallet"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Parse limit policy settings
	dailyLimit, err := decimal.NewFromString(c.DailyLimit)
	if err != nil {
		return nil, fmt.Errorf("bad daily limit %q: %w", c.DailyLimit, err)
	}
	limitZone, err := time.LoadLocation(c.LimitTimeZone)
	if err != nil {
		return nil, fmt.Errorf("bad limit timezone %q: %w", c.LimitTimeZone, err)
	}

	// Connect to the database and run migrations
	pool, err := repository.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories and services
	storage := postgres.NewStorage(pool)
	limitPolicy := limits.New(dailyLimit, limitZone)
	collector := metrics.NewCollector()
	walletService := wallet.NewService(storage, limitPolicy, collector)

	mux := handlers.NewRouter(
		walletService,
		collector.Handler(),
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
