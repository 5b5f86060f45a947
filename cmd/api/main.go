package main

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"facilitysync/db"
	"facilitysync/internal/app"
	"facilitysync/internal/archive"
	"facilitysync/internal/config"
	"facilitysync/internal/identity"
	"facilitysync/internal/jobs"
	"facilitysync/internal/logger"
	"facilitysync/internal/metrics"
	"facilitysync/internal/pass"
	"facilitysync/internal/people"
	"facilitysync/internal/reconcile"
	"facilitysync/internal/registry"
	"facilitysync/internal/search"
	"facilitysync/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("facilitysync api stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	dataStore, database, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	reg, err := registry.Load(cfg.FacilityRegistry)
	if err != nil {
		return err
	}
	if err := reg.Seed(ctx, dataStore); err != nil {
		return err
	}
	log.Info("facility registry seeded", "facilities", strings.Join(reg.FacilityIDs(), ","))

	collector := metrics.New()
	passClient := pass.NewClient(pass.Config{
		BaseURL:   cfg.PassURL,
		APIKey:    cfg.PassAPIKey,
		Timeout:   cfg.PassTimeout,
		RateLimit: cfg.PassRateLimit,
		RateBurst: cfg.PassRateBurst,
	}, pass.WithObserver(collector))
	peopleClient := people.NewClient(cfg.PeopleURL, cfg.PassTimeout)
	resolver := identity.NewResolver(dataStore, peopleClient, log)

	var pgfts *search.PgFTS
	if database != nil {
		pgfts = search.NewPgFTS(database)
	}
	var meili *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		defer meili.Close()
	}
	searchService := search.NewService(meili, pgfts, log)
	go searchService.ReindexAllFromPG(context.WithoutCancel(ctx))

	engine := reconcile.New(passClient, dataStore, resolver, reconcile.Options{
		Indexer: searchService,
		Logger:  log,
	})

	jobStore, closeJobs, err := openJobStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeJobs()

	opts := jobs.Options{
		MaxConcurrent: int64(cfg.MaxConcurrentJobs),
		Recorder:      collector,
		Logger:        log,
	}
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		bucket, err := archive.NewMinioBucket(ctx, archive.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return err
		}
		opts.Archiver = archive.NewArchiver(bucket, "")
		log.Info("job reports archived to minio", "bucket", cfg.MinioBucket)
	}
	dispatcher := jobs.NewDispatcher(jobStore, engine.Workflows(), opts)

	service := app.New(cfg, dataStore, dispatcher, searchService, log)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service, collector.Handler(), log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("facilitysync api listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown error", "error", err)
	}
	// Running jobs finish before the stores close.
	dispatcher.Wait()
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, *sql.DB, error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), nil, nil
	}

	database, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions{})
	if err != nil {
		return nil, nil, err
	}
	var migrations fs.FS = db.Migrations()
	if cfg.MigrationsDir != "" {
		migrations = os.DirFS(cfg.MigrationsDir)
	}
	if err := store.ApplyMigrations(ctx, database, migrations); err != nil {
		_ = database.Close()
		return nil, nil, err
	}
	return store.NewPostgresStore(database), database, nil
}

func openJobStore(cfg config.Config, log *slog.Logger) (jobs.Store, func(), error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Info("using in-memory job status store")
		return jobs.NewMemoryStore(), func() {}, nil
	}
	redisStore, err := jobs.NewRedisStore(cfg.RedisURL, cfg.JobRetention)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using redis job status store")
	return redisStore, func() { _ = redisStore.Close() }, nil
}
