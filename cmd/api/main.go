package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"alumnet-chat/internal/config"
	"alumnet-chat/internal/handler"
	"alumnet-chat/internal/outbox"
	appredis "alumnet-chat/internal/redis"
	"alumnet-chat/internal/repository"
	"alumnet-chat/internal/server"
	"alumnet-chat/internal/services"
	"alumnet-chat/internal/storage"
	"alumnet-chat/pkg/database"
	"alumnet-chat/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog := logger.New(cfg.Server.Environment)
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.New(ctx, database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Name:            cfg.Database.Name,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		appLog.Logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := appredis.NewClient(ctx, appredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLog.Logger.Fatal("connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Media uploads are optional: without a bucket the presign endpoint
	// answers 503 and everything else works.
	var s3Client *storage.Client
	if cfg.S3.Bucket != "" {
		s3Client, err = storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3.Region,
			Bucket:     cfg.S3.Bucket,
			AccessKey:  cfg.S3.AccessKey,
			SecretKey:  cfg.S3.SecretKey,
			Endpoint:   cfg.S3.Endpoint,
			PublicBase: cfg.S3.PublicBase,
			PresignTTL: cfg.S3.PresignTTL,
		})
		if err != nil {
			appLog.Logger.Fatal("configure s3", zap.Error(err))
		}
	}

	conversationRepo := repository.NewConversationRepository()
	messageRepo := repository.NewMessageRepository()
	reactionRepo := repository.NewReactionRepository()
	aggregateRepo := repository.NewAggregateRepository()
	outboxRepo := repository.NewOutboxRepository()
	userRepo := repository.NewUserRepository()
	postingRepo := repository.NewPostingRepository()

	conversationService := services.NewConversationService(pool, conversationRepo, userRepo, postingRepo, aggregateRepo, outboxRepo, appLog)
	messageService := services.NewMessageService(pool, messageRepo, conversationRepo, reactionRepo, aggregateRepo, outboxRepo, appLog)

	publisher := appredis.NewPublisher(redisClient)
	processor := outbox.NewProcessor(pool, outboxRepo, publisher, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetries)
	runner := outbox.NewRunner(processor, cfg.Outbox.PollInterval, appLog)
	go runner.Run(ctx)

	rateLimiter := appredis.NewRateLimiter(redisClient, appredis.DefaultRateLimitConfig())

	router := server.NewRouter(server.Deps{
		Conversations: handler.NewConversationHandler(conversationService, messageService),
		Messages:      handler.NewMessageHandler(messageService),
		Uploads:       handler.NewUploadHandler(s3Client),
		RateLimiter:   rateLimiter,
		JWTSecret:     cfg.Auth.JWTSecret,
		Log:           appLog,
		Environment:   cfg.Server.Environment,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		appLog.Logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Logger.Fatal("serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLog.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Logger.Error("shutdown", zap.Error(err))
	}
}
