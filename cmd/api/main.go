package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"specsharp/internal/auth"
	"specsharp/internal/calculation"
	"specsharp/internal/config"
	"specsharp/internal/db"
	"specsharp/internal/engine"
	"specsharp/internal/logging"
	"specsharp/internal/metrics"
	"specsharp/internal/quota"
	"specsharp/internal/router"
	"specsharp/internal/storage"
	"specsharp/internal/taxonomy"
)

func main() {
	configPath := flag.String("config", os.Getenv("SPECSHARP_CONFIG"), "path to the YAML config file")
	flag.Parse()

	// ───────────────────────── ENV ─────────────────────────
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	m := metrics.New()

	// ───────────────────────── TAXONOMY ─────────────────────────
	reg, err := taxonomy.Open(cfg.Taxonomy.Path)
	if err != nil {
		return err
	}
	holder := taxonomy.NewHolder(reg)
	logger.Info("taxonomy loaded",
		zap.String("path", cfg.Taxonomy.Path),
		zap.Int("version", reg.Version()),
		zap.Int("profiles", len(reg.Profiles())),
	)

	engines, err := engine.NewProvider(holder, cfg.Engine)
	if err != nil {
		return err
	}

	// ───────────────────────── DB ─────────────────────────
	var (
		pool     *pgxpool.Pool
		keyRepo  auth.KeyRepository
		quotaRep quota.Repository
		calcRepo calculation.Repository
	)
	switch {
	case cfg.Database.URL != "":
		pool, err = db.Connect(ctx, cfg.Database.URL, db.PoolConfig{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		}, logger.Named("db"))
		if err != nil {
			return err
		}
		defer pool.Close()
		keyRepo = auth.NewPostgresKeyRepository(pool)
		quotaRep = quota.NewPostgresRepository(pool, cfg.Quota.DefaultIncluded)
		calcRepo = calculation.NewPostgresRepository(pool)
	case cfg.Production():
		return errors.New("DATABASE_URL is required in production")
	default:
		logger.Warn("DATABASE_URL not set; using in-memory stores")
		keyRepo = auth.NewInMemoryKeyRepository()
		quotaRep = quota.NewMemoryRepository(cfg.Quota.DefaultIncluded)
		calcRepo = calculation.NewInMemoryRepository()
	}

	// ───────────────────────── AUTH ─────────────────────────
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = "dev-" + uuid.NewString()
		logger.Warn("JWT_SECRET not set; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	authService := auth.NewService(keyRepo, tokens)

	// ───────────────────────── SERVICES ─────────────────────────
	quotaService := quota.NewService(quotaRep, cfg.Quota.Timeout, logger, m)
	calcService := calculation.NewService(engines, quotaService, calcRepo, calculation.Options{
		Logger:         logger,
		Metrics:        m,
		DriftTolerance: cfg.Drift.Tolerance,
	})

	taxonomyHandler := taxonomy.NewHandler(holder)

	var watcher *taxonomy.Watcher
	if cfg.Taxonomy.Path != "" {
		watcher = taxonomy.NewWatcher(cfg.Taxonomy.Path, holder, cfg.Taxonomy.Debounce, logger)
		watcher.OnReload(m.ReloadObserver())
		taxonomyHandler.WithReloader(watcher.Reload)
	}

	// ───────────────────────── STORAGE ─────────────────────────
	if cfg.Storage.Enabled() {
		r2, err := storage.NewR2Client(ctx, storage.Options{
			Endpoint:      cfg.Storage.Endpoint,
			AccessKey:     cfg.Storage.AccessKey,
			SecretKey:     cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("r2 init failed: %w", err)
		}
		key := cfg.Storage.TaxonomyKey
		taxonomyHandler.WithPublisher(func(ctx context.Context, reg *taxonomy.Registry) (string, error) {
			return storage.PublishExport(ctx, r2, key, reg)
		})
	}

	// ───────────────────────── ROUTER ─────────────────────────
	deps := router.Deps{
		Logger:       logger,
		Metrics:      m,
		Tokens:       tokens,
		Auth:         auth.NewHandler(authService),
		Calculations: calculation.NewHandler(calcService),
		Quota:        quota.NewHandler(quotaService),
		Taxonomy:     taxonomyHandler,
		AllowOrigins: cfg.HTTP.AllowOrigins,
	}
	if pool != nil {
		deps.Ready = pool.Ping
	}

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router.NewRouter(deps),
	}

	// ───────────────────────── START ─────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if watcher != nil && cfg.Taxonomy.Watch {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	return g.Wait()
}
