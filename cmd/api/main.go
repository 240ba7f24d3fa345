package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/collabdesk/engine/internal/api"
	"github.com/collabdesk/engine/internal/api/handlers"
	"github.com/collabdesk/engine/internal/repository"
	"github.com/collabdesk/engine/internal/services"
	"github.com/collabdesk/engine/pkg/cache"
	"github.com/collabdesk/engine/pkg/config"
	"github.com/collabdesk/engine/pkg/database"
	"github.com/collabdesk/engine/pkg/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting collabdesk api",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer asynqClient.Close()

	userRepo := repository.NewUserRepository(db)
	collaboratorRepo := repository.NewCollaboratorRepository(db)

	appCache := cache.NewRedisCache(rdb)

	authSvc := services.NewAuthService(userRepo, []byte(cfg.JWTSecret))
	userSvc := services.NewUserService(userRepo, appCache, cfg.CacheTTL)
	collaboratorSvc := services.NewCollaboratorService(collaboratorRepo, appCache, cfg.CacheTTL)
	importSvc := services.NewImportService(asynqClient, cfg.ImportDedupWindow)

	router := api.NewRouter(api.Dependencies{
		HMACSecret:           []byte(cfg.JWTSecret),
		AuthHandler:          handlers.NewAuthHandler(authSvc),
		UsersHandler:         handlers.NewUsersHandler(userSvc),
		CollaboratorsHandler: handlers.NewCollaboratorsHandler(collaboratorSvc, importSvc, cfg.UploadDir),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
