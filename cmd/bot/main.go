package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/bot"
	"github.com/thdev-org/marks-daybook/internal/repository"
	"github.com/thdev-org/marks-daybook/internal/service"
	"github.com/thdev-org/marks-daybook/internal/session"
	"github.com/thdev-org/marks-daybook/internal/telegram"
	"github.com/thdev-org/marks-daybook/pkg/cache"
	"github.com/thdev-org/marks-daybook/pkg/config"
	"github.com/thdev-org/marks-daybook/pkg/database"
	"github.com/thdev-org/marks-daybook/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("bot exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database ready")

	var store session.Store
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		store = session.NewRedisStore(redisClient, cfg.Sessions.TTL)
		log.Info("using redis session store")
	} else {
		store = session.NewMemoryStore(cfg.Sessions.TTL)
		log.Info("using in-memory session store")
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	termRepo := repository.NewTermRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	userService := service.NewUserService(userRepo, log)
	subjectService := service.NewSubjectService(subjectRepo, validate, log)
	termService := service.NewTermService(termRepo, validate, log)
	gradeService := service.NewGradeService(gradeRepo, subjectRepo, termRepo, validate, log)
	reportService := service.NewReportService(gradeRepo, subjectRepo, cfg.Reports, log)
	metricsService := service.NewMetricsService()

	actions := bot.NewSessionActions(userService, subjectService, termService, gradeService)
	machine := session.NewMachine(store, actions, log)

	client := telegram.NewClient(cfg.Telegram, log)
	router := bot.NewRouter(machine, userService, client, metricsService, log)
	handlers := bot.NewHandlers(machine, subjectService, termService, gradeService, reportService, client, metricsService, log)
	handlers.Register(router)

	opsServer := newOpsServer(cfg, db, metricsService)
	go func() {
		log.Info("ops server listening", zap.Int("port", cfg.OpsPort))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = opsServer.Shutdown(shutdownCtx)
	}()

	b := bot.New(client, router, cfg.Telegram, log)
	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutting down")
	return nil
}

// newOpsServer exposes health, readiness and metrics on a side port.
func newOpsServer(cfg *config.Config, db interface{ Ping() error }, metrics *service.MetricsService) *http.Server {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.OpsPort),
		Handler: engine,
	}
}
