package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"taskflow/config"
	"taskflow/internal/handler"
	"taskflow/internal/httpserver"
	"taskflow/internal/repository"
	"taskflow/internal/service/auth"
	"taskflow/internal/service/task"
	"taskflow/internal/util"
	"taskflow/pkg/db"
	"taskflow/pkg/logger"
	redisclient "taskflow/pkg/redis"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Server.Development)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DB, zlog)
	if err != nil {
		zlog.Fatal("db initialization failed", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redisclient.NewClient(ctx, cfg.Redis, zlog)
	if err != nil {
		zlog.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repository.NewUserRepository(pool, zlog)
	tokenRepo := repository.NewRefreshTokenRepository(pool, zlog)
	taskRepo := repository.NewTaskRepository(pool, zlog)

	// Services
	tokenManager := util.NewTokenManager(cfg.JWT)
	hasher := util.NewPasswordHasher(cfg.Auth.BcryptCost)
	authService := auth.NewService(userRepo, tokenRepo, tokenManager, hasher, zlog)
	taskService := task.NewService(taskRepo, zlog)

	// Handlers
	authHandler := handler.NewAuthHandler(
		authService,
		cfg.JWT.AccessTTL.Std(),
		cfg.JWT.RefreshTTL.Std(),
		!cfg.Server.Development,
		zlog,
	)
	taskHandler := handler.NewTaskHandler(taskService, zlog)

	limiter := httpserver.NewRateLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window.Std(), zlog)
	router := httpserver.NewRouter(cfg, zlog, authHandler, taskHandler, authService, limiter, pool)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		zlog.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
}
