// Package cli wires the configured stores into the sync engine and exposes
// the backup, restore, estimate and status commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/alexkarev/homekeeper/internal/blobstore"
	"github.com/alexkarev/homekeeper/internal/common"
	"github.com/alexkarev/homekeeper/internal/config"
	"github.com/alexkarev/homekeeper/internal/cryptox"
	"github.com/alexkarev/homekeeper/internal/localstore"
	"github.com/alexkarev/homekeeper/internal/logging"
	"github.com/alexkarev/homekeeper/internal/remotestore"
	"github.com/alexkarev/homekeeper/internal/syncer"
)

// blobKeySalt pins the argon2 derivation so the same passphrase always
// yields the same blob key across devices. The salt is not a secret.
var blobKeySalt = []byte("homekeeper/blob-key/v1")

// AppVersion is stamped at build time via -ldflags.
var AppVersion = "dev"

type App struct {
	config *config.Config
	log    logging.Logger

	local  localstore.Store
	remote remotestore.Client
	blobs  blobstore.Store
	orch   *syncer.Orchestrator

	out     io.Writer
	closers []func() error
}

// NewApp builds the store stack described by cfg and the orchestrator on
// top of it. Callers own Close.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	a := &App{config: cfg, log: logger, out: os.Stdout}

	db, err := localstore.InitDatabase(ctx, cfg.LocalDatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	a.local = localstore.NewSQLiteStore(db)

	switch cfg.RemoteBackend {
	case config.BackendMemory:
		a.remote = remotestore.NewMemoryStore()
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		a.closers = append(a.closers, client.Close)
		a.remote = remotestore.NewRedisStore(client, cfg.Zone, logger)
	case config.BackendPostgres:
		store, err := remotestore.NewPostgresStore(ctx, cfg.DatabaseDSN, cfg.Zone, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres backend: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.remote = store
	default:
		return nil, fmt.Errorf("%w: unknown remote backend %q", common.ErrNotConfigured, cfg.RemoteBackend)
	}

	if cfg.S3Bucket != "" {
		store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			AccessKey:    cfg.S3AccessKeyID,
			SecretKey:    cfg.S3SecretAccessKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to blob storage: %w", err)
		}
		a.blobs = store
	} else {
		a.blobs = blobstore.NewMemoryStore()
	}

	if cfg.EncryptBlobs {
		passphrase, err := GetPassword(a.out)
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		a.blobs = blobstore.NewEncryptedStore(a.blobs, cryptox.DeriveKey(passphrase, blobKeySalt))
	}

	orch, err := syncer.New(syncer.Options{
		Remote:     a.remote,
		Local:      a.local,
		Blobs:      a.blobs,
		Logger:     logger,
		DeviceName: cfg.DeviceName,
		AppVersion: AppVersion,
		BatchSize:  cfg.BatchSize,
		BatchPause: cfg.BatchPause,
	})
	if err != nil {
		return nil, err
	}
	a.orch = orch

	return a, nil
}

// Close releases every resource the app opened, last opened first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn(context.Background(), "close failed", "error", err)
		}
	}
}
