package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"fitforge/workout-engine/internal/config"
	"fitforge/workout-engine/internal/logging"
	"fitforge/workout-engine/internal/repository"
	"fitforge/workout-engine/internal/repository/file"
	"fitforge/workout-engine/internal/repository/mongo"
	"fitforge/workout-engine/internal/service"
	"fitforge/workout-engine/internal/storage"
	"fitforge/workout-engine/internal/telemetry"
)

// app is everything a command needs, built once from the loaded config.
type app struct {
	cfg       config.Config
	store     service.RecordStore
	sessions  service.SessionService
	migration service.MigrationService
	events    repository.EventRepository
	registry  *prometheus.Registry
	closers   []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	// --- Logging ---
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.Log.File,
		LogToStdout:   cfg.Log.ToStdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.JSON,
	})

	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	metrics := telemetry.NewMetrics("workout", "engine", a.registry)

	// --- Repositories ---
	var repo repository.WorkoutDataRepository
	switch cfg.Storage.Driver {
	case config.StorageDriverMongo:
		client, err := mongo.ConnectDB(ctx, cfg.Database.URI)
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		a.closers = append(a.closers, func() error { return mongo.DisconnectDB(client) })

		db := client.Database(cfg.Database.Name)
		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(indexCtx, db); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		repo = mongo.NewMongoWorkoutDataRepository(db)
		a.events = mongo.NewMongoEventRepository(db, cfg.Events.Limit)
		logrus.WithField("database", cfg.Database.Name).Debug("using mongodb storage")
	default:
		repo = file.NewFileWorkoutDataRepository(cfg.Storage.DataDir)
		a.events = file.NewFileEventRepository(cfg.Storage.DataDir, cfg.Events.Limit)
		logrus.WithField("dir", cfg.Storage.DataDir).Debug("using file storage")
	}

	// --- Backups ---
	var backups storage.BackupStorage
	switch cfg.Backup.Driver {
	case config.BackupDriverS3:
		s3Backups, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize s3 backups: %w", err)
		}
		backups = s3Backups
	case config.BackupDriverLocal:
		backups = storage.NewLocalStorage(cfg.Backup.Dir)
	}

	// --- Services ---
	a.store = service.NewRecordStore(repo, backups, metrics)
	a.sessions = service.NewSessionService(a.store, a.events, metrics)
	a.migration = service.NewMigrationService(a.store, file.NewLegacySource(cfg.Legacy.Dir), a.events, metrics)
	return a, nil
}

// writeMetrics dumps the counters of this run in the text exposition format,
// for pickup by a node exporter textfile collector.
func (a *app) writeMetrics(path string) error {
	return prometheus.WriteToTextfile(path, a.registry)
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logrus.WithError(err).Warn("failed to close resource")
		}
	}
	a.closers = nil
}
