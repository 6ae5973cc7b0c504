package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"go.uber.org/zap"

	"catalog-admin/internal/archive"
	"catalog-admin/internal/audit"
	"catalog-admin/internal/authgate"
	"catalog-admin/internal/catalog"
	"catalog-admin/internal/core/auth"
	"catalog-admin/internal/core/cache"
	"catalog-admin/internal/core/config"
	"catalog-admin/internal/core/database"
	"catalog-admin/internal/core/logger"
	"catalog-admin/internal/core/server"
	"catalog-admin/internal/importer"
	"catalog-admin/internal/jobs"
	"catalog-admin/internal/repo"
	"catalog-admin/internal/transport/http/handler"
	"catalog-admin/internal/transport/http/router"
)

func main() {
	cfgPath := flag.String("config", "", "path to the YAML config (default $CONFIG_PATH)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, cleanup := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		JSON:        cfg.Log.JSON,
		AddCaller:   true,
		Development: cfg.App.Env == "dev",
		Rotate: logger.FileRotate{
			Filename:   cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Audit.LogRetentionDays,
			Compress:   cfg.Log.Compress,
		},
	})
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("catalog admin exited", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	rec := audit.New(audit.Options{Logger: log})
	storeOpts := catalog.Options{Recorder: rec, Logger: log}

	// database mirror
	var catalogRepo *repo.CatalogRepo
	dbOpts := database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}
	if dbOpts.Enabled() {
		db, err := database.NewGorm(dbOpts, log)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		catalogRepo = repo.NewCatalogRepo(db, log)
		if cfg.DB.AutoMigrate {
			if err := catalogRepo.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("automigrate done")
		}
		storeOpts.Persister = catalogRepo
	} else {
		log.Warn("no database configured, catalog is in-memory only")
	}

	store := catalog.New(storeOpts)
	if catalogRepo != nil {
		st, err := catalogRepo.LoadState(ctx)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		store.Load(st)
	}

	// redis: dashboard cache and shared session registry
	var (
		rc       *cache.Cache
		registry authgate.SessionRegistry
	)
	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := c.Ping(ctx); err != nil {
			log.Warn("redis unreachable, continuing without it", zap.Error(err))
			_ = c.Close()
		} else {
			defer c.Close()
			rc = c
			registry = authgate.NewRedisRegistry(c.RDB, cfg.Security.SessionTimeout())
			log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// object storage for import uploads
	impOpts := importer.Options{Logger: log}
	var lister handler.ArchiveLister
	if cfg.Storage.Endpoint != "" {
		arc, err := archive.NewObjectArchive(cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		if err := arc.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("object storage bucket: %w", err)
		}
		impOpts.Archiver = arc
		lister = arc
	}

	authSvc := authgate.NewService(store, authgate.Options{
		Config: authgate.Config{
			SessionTimeout:   cfg.Security.SessionTimeout(),
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			ResetTokenTTL:    cfg.Security.ResetTokenTTL,
		},
		JWT: &auth.JWTer{
			Secret: []byte(cfg.JWT.Secret),
			Issuer: cfg.JWT.Issuer,
			TTL:    cfg.Security.SessionTimeout(),
		},
		Registry:       registry,
		LogResetTokens: cfg.Security.LogResetTokens,
		Logger:         log,
	})
	created, err := authSvc.SeedSuperAdmin(ctx, authgate.SeedInput{
		Name:     cfg.Seed.Name,
		Email:    cfg.Seed.Email,
		Password: cfg.Seed.Password,
	})
	if err != nil {
		return fmt.Errorf("seed super admin: %w", err)
	}
	if created {
		log.Info("bootstrap super admin created", zap.String("email", cfg.Seed.Email))
	}

	imp := importer.New(store, importer.Limits{
		MaxFileSizeMB:  cfg.Catalog.MaxFileSizeMB,
		MaxCategories:  cfg.Catalog.MaxCategoriesPerImport,
		MaxApps:        cfg.Catalog.MaxAppsPerImport,
		MaxTitleLength: cfg.Catalog.MaxTitleLength,
		AutoActivate:   cfg.Catalog.AutoActivateImported,
	}, impOpts)

	sched := jobs.NewScheduler(authSvc, cfg.Security.SweepCron, log)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	engine := router.NewEngine(log, handler.Deps{
		Store:    store,
		Auth:     authSvc,
		Importer: imp,
		Cache:    rc,
		Archive:  lister,
		Log:      log,
	}, router.Options{
		RequestTimeout: cfg.App.HTTP.RequestTimeout,
		RateLimitRPS:   cfg.App.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.App.HTTP.RateLimitBurst,
		MaxConcurrent:  cfg.App.HTTP.MaxConcurrent,
		MaxBodyBytes:   int64(imp.Limits().MaxFileSizeMB+1) << 20,
		CORSOrigins:    cfg.App.HTTP.CORSOrigins,
	})

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(addr, engine,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := fmt.Sprintf("http://%s:%d", host4human, cfg.App.HTTP.Port)
	log.Info("catalog admin starting",
		zap.String("env", cfg.App.Env),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	if err := server.Run(ctx, srv, log, 10*time.Second); err != nil {
		return err
	}
	log.Info("catalog admin stopped gracefully")
	return nil
}
