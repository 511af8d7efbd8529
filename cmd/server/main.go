package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/fincore/internal/backup"
	"github.com/JonMunkholm/fincore/internal/config"
	"github.com/JonMunkholm/fincore/internal/events"
	"github.com/JonMunkholm/fincore/internal/logging"
	"github.com/JonMunkholm/fincore/internal/snapshotstore"
	"github.com/JonMunkholm/fincore/internal/snapshotstore/local"
	"github.com/JonMunkholm/fincore/internal/snapshotstore/minio"
	"github.com/JonMunkholm/fincore/internal/storage"
	"github.com/JonMunkholm/fincore/internal/web"
)

func main() {
	// Overload lets a local .env win over the shell environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"backup_max_concurrent", cfg.Backup.MaxConcurrent,
		"max_import_size", cfg.Backup.MaxImportSize.String(),
		"snapshot_store", cfg.Snapshot.Store,
	)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := storage.RunMigrations(cfg.Database.URL); err != nil {
			return err
		}
		slog.Info("database migrations applied")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	registry := backup.DefaultRegistry()
	if cfg.Backup.RegistryFile != "" {
		if registry, err = backup.LoadRegistry(cfg.Backup.RegistryFile); err != nil {
			return err
		}
	}
	slog.Info("tables registered", "count", registry.Len(), "order", strings.Join(registry.Names(), ","))

	opts := []backup.Option{backup.WithAuditLog(backup.NewAuditLog(pool))}

	store, err := openSnapshotStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		opts = append(opts, backup.WithSnapshotStore(store))
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		publisher = p
		slog.Info("publishing backup events", "exchange", cfg.Events.Exchange)
	}
	defer publisher.Close()
	opts = append(opts, backup.WithPublisher(publisher))

	service := backup.NewService(registry, backup.NewPoolSource(pool), backup.ServiceConfig{
		MaxConcurrent:  cfg.Backup.MaxConcurrent,
		MaxWaitTime:    cfg.Backup.MaxWaitTime,
		ExportTimeout:  cfg.Backup.ExportTimeout,
		ImportTimeout:  cfg.Backup.ImportTimeout,
		SnapshotPrefix: cfg.Snapshot.Prefix,
	}, opts...)

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	if store != nil && cfg.Snapshot.Interval > 0 {
		go service.StartSnapshotScheduler(jobCtx, backup.SchedulerConfig{
			Interval: cfg.Snapshot.Interval,
			Retain:   cfg.Snapshot.Retain,
		})
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for backup operations to complete", "active", status.Active)
			if err := service.WaitForOperations(shutdownCtx); err != nil {
				slog.Warn("backup operations did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shutdownDone
	slog.Info("server stopped")
	return nil
}

// openSnapshotStore returns the configured store, or nil when snapshots are
// disabled.
func openSnapshotStore(ctx context.Context, cfg *config.Config) (snapshotstore.Store, error) {
	switch strings.ToLower(cfg.Snapshot.Store) {
	case "fs":
		store, err := local.New(cfg.Snapshot.Dir)
		if err != nil {
			return nil, err
		}
		slog.Info("snapshot store ready", "type", "fs", "dir", cfg.Snapshot.Dir)
		return store, nil
	case "minio":
		store, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Region:    cfg.MinIO.Region,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("snapshot store ready", "type", "minio", "bucket", cfg.MinIO.Bucket)
		return store, nil
	default:
		return nil, nil
	}
}
