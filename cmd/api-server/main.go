// cmd/api-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"investmatch/internal/api"
	commonaws "investmatch/internal/common/aws"
	"investmatch/internal/common/config"
	"investmatch/internal/common/database"
	"investmatch/internal/common/logger"
	"investmatch/internal/common/observability"
	"investmatch/internal/directory"
	"investmatch/internal/matching"
	"investmatch/internal/notify"
	"investmatch/internal/repository"
	"investmatch/internal/search"
	"investmatch/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting api-server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Document store ---
	docStore := store.NewPostgresStore(pg.DB, pg.DSN, cfg.Store.MembershipQueryLimit, log)
	defer docStore.Close()

	if err := docStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}

	// --- Init Redis with retry (directory cache) ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Optional Elasticsearch proposal index ---
	var proposalIndex *search.ProposalIndex
	if cfg.Search.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Search)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		proposalIndex = search.NewProposalIndex(esClient.Client, cfg.Search.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Repositories and directory ---
	proposals := repository.NewProposalRepository(docStore, cfg.Store.ProposalCollection, log)
	interests := repository.NewInterestRepository(docStore, cfg.Store.InterestCollection, cfg.Store.MembershipQueryLimit, log)

	users := directory.NewStoreDirectory(
		docStore,
		cfg.Store.UserCollection,
		redisClient.Client,
		time.Duration(cfg.Directory.CacheTTL)*time.Second,
		log,
	)

	// --- Owner notifications ---
	var notifier matching.InterestNotifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		var sesService notify.SESService
		var snsService notify.SNSService

		if cfg.Notifications.Email.Enabled {
			sesClient, err := commonaws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("ses client failed", zap.Error(err))
			}
			sesService = sesClient
		}
		if cfg.Notifications.SMS.Enabled {
			snsClient, err := commonaws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client failed", zap.Error(err))
			}
			snsService = snsClient
		}

		notifier = notify.NewNotifier(sesService, snsService, cfg.Notifications, log)
		zapLog.Info("Owner notifications enabled")
	}

	service := matching.NewService(proposals, interests, users, notifier, cfg.Matching.DashboardPreviewSize, log)

	// --- HTTP server ---
	server := api.NewServer(proposals, service, proposalIndex, log)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      obs.InstrumentHandler(server.Handler()),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Wait for shutdown signal ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.HTTP.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}

	zapLog.Info("Shutdown complete")
}
