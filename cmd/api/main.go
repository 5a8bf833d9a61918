package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"beacon/api/internal/app"
	"beacon/api/internal/auditlog"
	"beacon/api/internal/blob"
	"beacon/api/internal/broadcast"
	"beacon/api/internal/config"
	"beacon/api/internal/initiative"
	"beacon/api/internal/keyedlock"
	"beacon/api/internal/notify"
	"beacon/api/internal/report"
	"beacon/api/internal/search"
	"beacon/api/internal/snapshot"
	"beacon/api/internal/store"
	"beacon/api/internal/support"
	"beacon/api/internal/userstore"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	client, err := newBlobClient(ctx, cfg)
	if err != nil {
		log.Fatalf("storage unavailable: %v", err)
	}
	docs := blob.NewStore(client)

	// The tabular backend is opt-in; the document store is the default.
	var db *sql.DB
	var backend initiative.Backend = initiative.NewDocumentBackend(docs)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err = store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if _, err := store.Migrate(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		backend = initiative.NewTabularBackend(db)
		log.Printf("Using tabular initiative backend")
	} else {
		log.Printf("Using document initiative backend")
	}

	initiatives := initiative.NewStore(backend)
	locks := keyedlock.New()

	var broadcaster broadcast.Broadcaster
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisBroadcaster, err := broadcast.NewRedisBroadcaster(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisBroadcaster.Close()
		broadcaster = redisBroadcaster
		log.Printf("Broadcasting notifications over Redis")
	}

	scan := search.NewScan(initiatives)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, scan)

	service := app.NewService(app.Deps{
		Docs:          docs,
		Initiatives:   initiatives,
		Locks:         locks,
		Changelog:     auditlog.NewChangelog(docs),
		Logs:          auditlog.NewLog(docs),
		Snapshots:     snapshot.NewStore(docs),
		Notifications: notify.NewStore(docs, locks, broadcaster),
		Users:         userstore.NewStore(docs),
		Reports:       report.NewStore(docs),
		Support:       support.NewStore(docs),
		Search:        searchService,
		DB:            db,
	})
	service.Bootstrap(ctx)
	service.StartRetentionLoop(ctx, cfg.RetentionSweep)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, cfg.SyncToken)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Beacon API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func newBlobClient(ctx context.Context, cfg config.Config) (blob.Client, error) {
	switch cfg.BlobDriver {
	case "minio":
		return blob.NewMinioClient(ctx, blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	case "memory":
		return blob.NewMemClient(), nil
	default:
		return blob.NewFSClient(cfg.FSRoot)
	}
}
