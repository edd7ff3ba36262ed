package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-library-views/api/swagger"
	"github.com/noah-isme/sma-library-views/internal/handler"
	"github.com/noah-isme/sma-library-views/internal/repository"
	"github.com/noah-isme/sma-library-views/internal/service"
	"github.com/noah-isme/sma-library-views/internal/views"
	"github.com/noah-isme/sma-library-views/pkg/cache"
	"github.com/noah-isme/sma-library-views/pkg/config"
	"github.com/noah-isme/sma-library-views/pkg/database"
	"github.com/noah-isme/sma-library-views/pkg/logger"
)

// @title Library Views API
// @version 1.0.0
// @description Searchable, filterable and sortable listing views over library records
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	manifest, err := views.Load(cfg.Views.DefinitionsFile)
	if err != nil {
		return err
	}
	catalog := views.NewCatalog(manifest, cfg.Views.DefaultPageSize)

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	records := repository.NewRecordRepository(db)
	if err := checkSources(catalog, records.Sources()); err != nil {
		return err
	}

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("snapshot cache unavailable, continuing without it", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, redisClient != nil)

	viewSvc := service.NewViewService(catalog, records, cacheSvc, metrics, validator.New(), logr, service.ViewServiceConfig{
		SessionTTL:  cfg.Views.SessionTTL,
		MaxSessions: cfg.Views.MaxSessions,
	})
	exportSvc := service.NewExportService(viewSvc, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
		MaxRows: cfg.Exports.MaxRows,
	}, metrics, logr, nil, nil)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, logr, routerDeps{
		tokens:  tokens,
		metrics: metrics,
		views:   handler.NewViewHandler(viewSvc, exportSvc),
		ops: handler.NewMetricsHandler(metrics, map[string]handler.Probe{
			"postgres": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
	})

	go sweepSessions(ctx, viewSvc, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.Int("views", len(catalog.All())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func checkSources(catalog *views.Catalog, sources []string) error {
	for _, def := range catalog.All() {
		if !slices.Contains(sources, def.Source) {
			return fmt.Errorf("view %q reads unknown source %q", def.Name, def.Source)
		}
	}
	return nil
}

func sweepSessions(ctx context.Context, svc *service.ViewService, logr *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.Sweep(); n > 0 {
				logr.Debug("expired view sessions", zap.Int("count", n))
			}
		}
	}
}
