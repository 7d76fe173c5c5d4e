// Command lesson-planner-server starts the lesson planner HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/lesson-planner/internal/cache"
	"github.com/and161185/lesson-planner/internal/config"
	"github.com/and161185/lesson-planner/internal/limiter"
	"github.com/and161185/lesson-planner/internal/migrate"
	"github.com/and161185/lesson-planner/internal/repository/postgres"
	httpserver "github.com/and161185/lesson-planner/internal/server/http"
	"github.com/and161185/lesson-planner/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func newLogger(dev bool) *zap.Logger {
	if dev {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}

// main parses configuration, runs migrations, and serves the HTTP API until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	logger := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.Bool("pruneOmittedSteps", cfg.PruneOmittedSteps),
	)
	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	userRepo := postgres.NewUserRepo(db)
	planRepo := postgres.NewPlanRepo(db)
	resourceRepo := postgres.NewResourceRepo(db)
	classRepo := postgres.NewClassRepo(db)

	lim := limiter.NewPG(pool, limiter.Policy{
		Window: cfg.Login.Window, MaxFails: cfg.Login.MaxFails, BlockFor: cfg.Login.BlockFor,
	})

	// Optional resource cache
	var resCache service.ResourceCache
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, resource cache disabled", zap.Error(err))
		} else {
			resCache = cache.NewResources(rdb, cfg.RedisTTL, logger.Named("cache"))
		}
	}

	// Services
	authSvc := service.NewAuthService(userRepo, []byte(cfg.JWTKey), cfg.AccessTTL, lim)
	planSvc := service.NewPlanService(planRepo, classRepo, service.PlanOptions{
		MaxSteps: cfg.MaxSteps, PruneOmittedSteps: cfg.PruneOmittedSteps,
	})
	resourceSvc := service.NewResourceService(resourceRepo, resCache, cfg.MaxLookup, logger.Named("resources"))
	classSvc := service.NewClassService(classRepo)

	app := httpserver.New(httpserver.Deps{
		Auth: authSvc, Plans: planSvc, Resources: resourceSvc, Classes: classSvc, Log: logger.Named("http"),
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSCert != "" {
			logger.Info("listening (TLS)", zap.String("addr", cfg.Addr))
			errCh <- srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
