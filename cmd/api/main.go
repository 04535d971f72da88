package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"whereabouts/internal/adapter/snapshot"
	"whereabouts/internal/adapter/storage/postgres"
	"whereabouts/internal/config"
	"whereabouts/internal/hub"
	"whereabouts/internal/server"
	"whereabouts/internal/service/archive"
	"whereabouts/internal/service/broadcast"
	chatService "whereabouts/internal/service/chat"
	markerService "whereabouts/internal/service/marker"
	presenceService "whereabouts/internal/service/presence"
	"whereabouts/internal/service/sweeper"
	tripService "whereabouts/internal/service/trip"
	"whereabouts/pkg/logging"
)

func main() {
	// A missing .env file is fine; the environment wins either way
	_ = godotenv.Load()

	logger := logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Optional persistence sink
	var archiver *archive.Archiver
	if cfg.Database.Enabled {
		db, err := initDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to initialize database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		archiver = archive.NewArchiver(postgres.NewStore(db), cfg.Archive.QueueSize, logger)
		archiver.Start(ctx)
	}

	// Optional event mirror
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = initNATS(cfg.NATS, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", slog.Any("error", err))
			os.Exit(1)
		}
		defer natsConn.Close()
	}

	// Core stores
	registry := presenceService.NewRegistry(logger)
	history := chatService.NewHistory(chatService.HistoryConfig{
		GroupCap:      cfg.History.GroupCap,
		RoomCap:       cfg.History.RoomCap,
		PrivateCap:    cfg.History.PrivateCap,
		MaxBodyLength: cfg.History.MaxBodyLength,
	})
	trips := tripService.NewDirectory(registry, logger)
	markers := markerService.NewDirectory(logger)
	dispatcher := broadcast.NewDispatcher(natsConn, cfg.NATS.SubjectPrefix, logger)

	// Restore message history from the previous run, if a snapshot exists
	if cfg.Snapshot.Path != "" {
		snap, found, err := snapshot.Load(cfg.Snapshot.Path)
		if err != nil {
			logger.Warn("failed to load history snapshot", slog.Any("error", err))
		} else if found {
			history.Restore(snap)
			logger.Info("history snapshot restored", slog.String("path", cfg.Snapshot.Path))
		}
	}

	core := hub.New(registry, history, trips, markers, dispatcher, archiver, logger)
	go core.Run()

	// Liveness sweeper evicts silent connections through the hub's own
	// disconnect path
	sweep := sweeper.New(registry, core.Disconnect, sweeper.Config{
		Interval: cfg.Sweeper.Interval,
		Timeout:  cfg.Sweeper.Timeout,
	}, logger)
	sweep.Start(ctx)

	httpServer := server.NewServer(cfg.Server, core, dispatcher, registry, trips, markers, logger)

	go func() {
		logger.Info("starting HTTP server",
			slog.String("host", cfg.Server.Host),
			slog.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", slog.Any("error", err))
	}

	sweep.Stop()
	core.Stop()
	archiver.Stop(cfg.Server.ShutdownTimeout)

	if cfg.Snapshot.Path != "" {
		if err := snapshot.Save(cfg.Snapshot.Path, history.Snapshot()); err != nil {
			logger.Warn("failed to save history snapshot", slog.Any("error", err))
		} else {
			logger.Info("history snapshot saved", slog.String("path", cfg.Snapshot.Path))
		}
	}

	logger.Info("shutdown complete")
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, logger *slog.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
