package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"community/api/db/migrations"
	"community/api/internal/app"
	"community/api/internal/config"
	"community/api/internal/email"
	"community/api/internal/export"
	"community/api/internal/moderation"
	"community/api/internal/search"
	"community/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var (
		backend  app.DataStore
		fallback search.Searcher
	)
	switch cfg.Store {
	case config.StorePostgres:
		db, err := store.Open(ctx, cfg.DatabaseURL, cfg.MaxOpenConns)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()
		if err := store.ApplyMigrations(ctx, db, migrationFS(cfg.MigrationsDir)); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		backend, fallback = postgresBackend(db)
	case config.StoreMongo:
		mongoStore, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("mongo connection failed: %v", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoStore.Close(closeCtx)
		}()
		backend, fallback = mongoStore, search.NewScan(mongoStore)
	case config.StoreMemory:
		log.Printf("Using in-memory store; posts are lost on restart")
		memory := store.NewMemoryStore()
		backend, fallback = memory, search.NewScan(memory)
	default:
		log.Fatalf("unknown COMMUNITY_STORE %q", cfg.Store)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}

	deps := app.Dependencies{
		Search:     search.NewService(meiliClient, fallback),
		Export:     newExportService(ctx, cfg, backend),
		Moderation: newModerationService(cfg),
	}

	service := app.New(cfg, backend, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Community API listening on %s (store=%s)", cfg.Addr, cfg.Store)
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

func postgresBackend(db *sql.DB) (app.DataStore, search.Searcher) {
	return store.NewPostgresStore(db), search.NewPgFTS(db)
}

// migrationFS prefers an on-disk directory so schema changes can be tried
// without rebuilding.
func migrationFS(dir string) fs.FS {
	if strings.TrimSpace(dir) == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func newExportService(ctx context.Context, cfg config.Config, posts export.PostSource) *export.Service {
	archiveCfg := export.ArchiveConfig{
		Endpoint:  cfg.ExportS3Endpoint,
		AccessKey: cfg.ExportS3AccessKey,
		SecretKey: cfg.ExportS3SecretKey,
		Bucket:    cfg.ExportS3Bucket,
		UseSSL:    cfg.ExportS3UseSSL,
	}
	if !archiveCfg.IsConfigured() {
		return export.NewService(posts, nil)
	}
	archive, err := export.NewArchive(archiveCfg)
	if err != nil {
		log.Printf("WARNING: export archive disabled: %v", err)
		return export.NewService(posts, nil)
	}
	bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := archive.EnsureBucket(bucketCtx); err != nil {
		log.Printf("WARNING: export archive disabled: %v", err)
		return export.NewService(posts, nil)
	}
	log.Printf("Archiving exports to bucket %s", archiveCfg.Bucket)
	return export.NewService(posts, archive)
}

func newModerationService(cfg config.Config) *moderation.Service {
	var queue moderation.Queue
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisQueue, err := moderation.NewRedisQueue(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		log.Printf("Using Redis for the moderation queue")
		queue = redisQueue
	}

	var notifier moderation.Notifier
	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() && strings.TrimSpace(cfg.ModeratorEmail) != "" {
		notifier = mailer
	}
	return moderation.NewService(queue, notifier, cfg.ModeratorEmail)
}
