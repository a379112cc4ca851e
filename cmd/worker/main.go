package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/msandnes/invoiceagent/internal/config"
	"github.com/msandnes/invoiceagent/internal/objstore"
	"github.com/msandnes/invoiceagent/internal/store"
	"github.com/msandnes/invoiceagent/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(cfg)

	if cfg.DatabaseURL == "" {
		logger.Fatal("the export worker requires DATABASE_URL; in-memory sessions are not visible across processes")
	}
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("connect database")
	}
	defer pool.Close()
	if err := store.EnsureSchema(ctx, pool); err != nil {
		logger.WithError(err).Fatal("ensure schema")
	}
	sessions := store.NewPostgresStore(pool)

	objs, err := objstore.New(cfg)
	if err != nil {
		logger.WithError(err).Fatal("init object storage")
	}
	if objs == nil {
		logger.Fatal("the export worker requires object storage; set INVOICEAGENT_S3_ENDPOINT")
	}
	if err := objs.EnsureBucket(ctx); err != nil {
		logger.WithError(err).Fatal("ensure bucket")
	}

	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
	})
	processor := worker.NewProcessor(sessions, objs, logger)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.WithField("concurrency", cfg.Workers).Info("export worker running")
	if err := srv.Run(processor.Handler()); err != nil {
		logger.WithError(err).Error("worker stopped")
		os.Exit(1)
	}
}
