package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devkudos/ingest-service/internal/analysis"
	"github.com/devkudos/ingest-service/internal/config"
	"github.com/devkudos/ingest-service/internal/encryption"
	"github.com/devkudos/ingest-service/internal/githubapi"
	"github.com/devkudos/ingest-service/internal/queue"
	"github.com/devkudos/ingest-service/internal/repository/postgres"
	"github.com/devkudos/ingest-service/internal/service"
	myhttp "github.com/devkudos/ingest-service/internal/transport/http"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
	"github.com/devkudos/ingest-service/pkg/logger/slogpretty"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	log := slogpretty.SetupLogger(cfg.Env)

	log.Info("starting ingest-service", slog.String("env", cfg.Env))

	errChan := make(chan error, 1)

	db, err := postgres.NewDB(cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("failed to init db: %v", err)
	}
	defer func() {
		if err := db.DB().Close(); err != nil {
			log.Error("failed to close db", sl.Err(err))
		}
	}()

	var cipher service.Encryptor = encryption.Noop{}
	if cfg.Crypto.Key != "" {
		c, err := encryption.New(cfg.Crypto.Key)
		if err != nil {
			return fmt.Errorf("failed to init cipher: %v", err)
		}

		cipher = c
	} else {
		log.Warn("encryption key is empty, descriptions are stored in plaintext")
	}

	github := githubapi.New(githubapi.Config{
		AppID:          cfg.GitHub.AppID,
		PrivateKeyPath: cfg.GitHub.PrivateKeyPath,
		Token:          cfg.GitHub.Token,
		BaseURL:        cfg.GitHub.BaseURL,
	}, log)

	analyzer := analysis.New(analysis.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		Enabled: cfg.OpenAI.Enabled,
	}, log)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	retryQueue := queue.NewRedis(redisClient, queue.RedisConfig{
		QueueKey:      cfg.Redis.QueueKey,
		DeadLetterKey: cfg.Redis.DeadLetterKey,
	})
	defer func() {
		if err := retryQueue.Close(); err != nil {
			log.Error("failed to close queue", sl.Err(err))
		}
	}()

	accountRepo := postgres.NewAccountRepository(db.DB(), log)
	userRepo := postgres.NewUserRepository(db.DB(), log)
	prRepo := postgres.NewPullRequestRepository(db.DB(), log)
	commitRepo := postgres.NewCommitRepository(db.DB(), log)
	reviewRepo := postgres.NewReviewRepository(db.DB(), log)
	metricRepo := postgres.NewMetricRepository(db.DB(), log)
	pointsRepo := postgres.NewPointsRepository(db.DB(), log)
	deliveryRepo := postgres.NewDeliveryRepository(db.DB(), log)

	registrar := service.NewRegistrarService(db.DB(), log, accountRepo, userRepo)
	commitService := service.NewCommitService(db.DB(), log, registrar, commitRepo, prRepo, userRepo, github)
	scoringService := service.NewScoringService(db.DB(), log, prRepo, metricRepo, reviewRepo, commitRepo, accountRepo, analyzer, github, cipher)
	pointsService := service.NewPointsService(db.DB(), log, prRepo, userRepo, pointsRepo, accountRepo, service.NoopHooks{})
	prService := service.NewPullRequestService(db.DB(), log, registrar, commitService, scoringService, pointsService, prRepo, accountRepo, github, cipher)
	reviewService := service.NewReviewService(db.DB(), log, registrar, prService, pointsService, prRepo, reviewRepo, analyzer)
	router := service.NewRouterService(log, deliveryRepo, prService, reviewService, commitService, registrar, retryQueue)

	policy := queue.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delays:      cfg.Retry.Delays,
	}

	consumer := queue.NewConsumer(retryQueue, router.ProcessEvent, policy, cfg.Retry.Workers, log)
	go consumer.Run(ctx)

	srv := myhttp.NewServer(log, router, cfg.GitHub.WebhookSecret)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go startServer(log, httpServer, errChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server error: %v", err)

	case <-ctx.Done():
		log.Info("stopping server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down http server: %v", err)
	}

	return nil
}

func startServer(log *slog.Logger, httpServer *http.Server, errChan chan error) {
	defer close(errChan)

	log.Info("service started", slog.String("addr", httpServer.Addr))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		errChan <- fmt.Errorf("error listening and serving: %v", err)
	}
}
