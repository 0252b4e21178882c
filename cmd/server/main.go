// Package main provides the entry point for the file-upload service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/auth-platform/file-upload/internal/aihook"
	"github.com/auth-platform/file-upload/internal/api"
	"github.com/auth-platform/file-upload/internal/backpressure"
	"github.com/auth-platform/file-upload/internal/chunkindex"
	"github.com/auth-platform/file-upload/internal/chunkservice"
	"github.com/auth-platform/file-upload/internal/config"
	"github.com/auth-platform/file-upload/internal/health"
	"github.com/auth-platform/file-upload/internal/objectstore"
	"github.com/auth-platform/file-upload/internal/observability"
	"github.com/auth-platform/file-upload/internal/server"
	"github.com/auth-platform/file-upload/internal/sessioncache"
	"github.com/auth-platform/file-upload/internal/sessionstore"
	"github.com/auth-platform/file-upload/internal/uploadservice"
	"github.com/auth-platform/file-upload/internal/validator"
)

const (
	serviceName    = "file-upload"
	serviceVersion = "2.0.0"
)

// transitionerRef satisfies chunkservice.Transitioner by forwarding to an
// Upload Service bound after both services are constructed.
type transitionerRef struct {
	svc *uploadservice.Service
}

func (t *transitionerRef) RequestUploading(ctx context.Context, sessionID string) error {
	return t.svc.RequestUploading(ctx, sessionID)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := observability.NewLogger("info")
	log.WithComponent("main").Info("starting " + serviceName + " v" + serviceVersion)
	metrics := observability.NewMetrics("file_upload")

	db, err := sqlx.Connect("postgres", cfg.DatabaseDSN())
	if err != nil {
		log.Fatal("failed to connect to database", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	sessions := sessionstore.NewPostgresStore(db)

	cache := sessioncache.New(sessioncache.Config{
		Address:   cfg.Cache.Address,
		Namespace: cfg.Cache.Namespace,
		TTL:       5 * time.Minute,
	}, log)

	ctx := context.Background()
	var objects objectstore.Store
	var storagePing func(context.Context) error
	if cfg.Storage.Driver == "filesystem" {
		fsStore, ferr := objectstore.NewFilesystemStore(cfg.Storage.LocalDir)
		if ferr != nil {
			log.Fatal("failed to initialize object store", ferr)
		}
		objects, storagePing = fsStore, fsStore.Ping
	} else {
		s3Store, serr := objectstore.NewS3Store(ctx, objectstore.S3Config{
			Region:   cfg.Storage.Region,
			Bucket:   cfg.Storage.Bucket,
			Endpoint: cfg.Storage.Endpoint,
		}, metrics)
		if serr != nil {
			log.Fatal("failed to initialize object store", serr)
		}
		objects, storagePing = s3Store, s3Store.Ping
	}

	var index chunkindex.Index
	var remoteIndex *chunkindex.RemoteIndex
	if cfg.ChunkIndex.Backend == "remote" {
		remoteIndex = chunkindex.NewRemoteIndex(ctx, chunkindex.RemoteConfig{
			Address:       cfg.ChunkIndex.Address,
			DialTimeout:   cfg.ChunkIndex.DialTimeout,
			FailThreshold: cfg.ChunkIndex.FailThreshold,
			ResetTimeout:  cfg.ChunkIndex.ResetTimeout,
		}, log)
		index = remoteIndex
	} else {
		index = chunkindex.NewMemoryIndex()
	}

	storageGate := backpressure.New("object-store", cfg.Database.MaxOpenConns, metrics)
	gatedObjects := backpressure.NewGatedStore(objects, storageGate)

	validate := validator.New(validator.Config{
		AllowedTypes:      cfg.Upload.AllowedTypes,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		MaxFileSize:       cfg.Upload.MaxFileSize,
		DigestAlgorithm:   cfg.Upload.DigestAlgorithm,
	}, gatedObjects, log)

	hooks := aihook.New(aihook.Config{Workers: 4, QueueSize: 256, MaxRetries: 3}, metrics, log)
	defer hooks.Close()

	// Chunk Service needs a Transitioner back to the Upload Service for the
	// INIT->UPLOADING bump, but Upload Service needs the constructed Chunk
	// Service — transitionerRef breaks the cycle by deferring the bind.
	transitions := &transitionerRef{}
	chunks := chunkservice.New(sessions, index, gatedObjects, transitions, log)

	uploads := uploadservice.New(sessions, cache, chunks, validate, hooks, uploadservice.Config{
		ChunkSize:     cfg.Upload.ChunkSize,
		MaxFileSize:   cfg.Upload.MaxFileSize,
		SessionExpiry: cfg.Upload.SessionExpiry,
	}, log)
	transitions.svc = uploads

	go runExpirySweep(uploads, log)

	checker := health.NewHealthChecker(serviceVersion)
	checker.Register("database", health.DatabaseChecker(func(ctx context.Context) error {
		return db.PingContext(ctx)
	}))
	checker.Register("cache", health.CacheChecker(cache.Ping))
	checker.Register("storage", health.StorageChecker(storagePing))
	if remoteIndex != nil {
		checker.Register("chunk_index", health.CacheChecker(remoteIndex.Ping))
	}

	handlers := api.NewHandlers(uploads, chunks, metrics)
	tracer := observability.NewTracer()
	router := api.NewRouter(handlers, checker, tracer, log)

	shutdownCfg := server.DefaultShutdownConfig()
	shutdownCfg.Timeout = cfg.Server.ShutdownTimeout

	srv := server.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), router, shutdownCfg)
	srv.RegisterShutdownHandler(func(ctx context.Context) error {
		return db.Close()
	})
	srv.RegisterShutdownHandler(func(ctx context.Context) error {
		return hooks.Close()
	})
	if remoteIndex != nil {
		srv.RegisterShutdownHandler(func(ctx context.Context) error {
			return remoteIndex.Close()
		})
	}

	log.WithComponent("main").Info(fmt.Sprintf("listening on port %d", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", err)
	}
	log.WithComponent("main").Info("server stopped")
}

// runExpirySweep implements §4.5's sweep_expired on a fixed interval for
// the lifetime of the process.
func runExpirySweep(uploads *uploadservice.Service, log *observability.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		uploads.SweepExpired(context.Background(), time.Now())
	}
}
