package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/msandnes/invoiceagent/internal/agent"
	"github.com/msandnes/invoiceagent/internal/config"
	"github.com/msandnes/invoiceagent/internal/guidance"
	"github.com/msandnes/invoiceagent/internal/llm"
	"github.com/msandnes/invoiceagent/internal/objstore"
	"github.com/msandnes/invoiceagent/internal/queue"
	"github.com/msandnes/invoiceagent/internal/server"
	"github.com/msandnes/invoiceagent/internal/signing"
	"github.com/msandnes/invoiceagent/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(cfg)

	var sessions store.Store
	if cfg.DatabaseURL != "" {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("connect database")
		}
		defer pool.Close()
		if err := store.EnsureSchema(ctx, pool); err != nil {
			logger.WithError(err).Fatal("ensure schema")
		}
		sessions = store.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, sessions are kept in memory")
		sessions = store.NewMemoryStore()
	}

	client, err := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, logger)
	if err != nil {
		logger.WithError(err).Fatal("init llm client")
	}

	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	var retriever guidance.Retriever
	if cfg.GuidanceEndpoint != "" {
		retriever = guidance.NewHTTPRetriever(cfg.GuidanceEndpoint)
	}
	guide := guidance.NewService(retriever, cache, cfg.GuidanceTTL, logger)

	objs, err := objstore.New(cfg)
	if err != nil {
		logger.WithError(err).Fatal("init object storage")
	}
	var exporter agent.Exporter
	if objs != nil {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer asynqClient.Close()
		exporter = queue.NewExporter(asynqClient)
	} else {
		logger.Info("object storage not configured, voucher exports disabled")
	}

	registry := agent.NewRegistry(agent.Deps{
		Store:     sessions,
		Extractor: client,
		Generator: client,
		Guidance:  guide,
		Exporter:  exporter,
		Log:       logger,
	})

	srv := server.New(cfg, logger, registry, signing.NewSigner(cfg.SigningSecret), objs)
	if err := srv.Run(ctx); err != nil {
		logger.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}
