package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/msandnes/invoiceagent/internal/config"
	"github.com/msandnes/invoiceagent/internal/relay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := config.NewLogger(cfg)

	r, err := relay.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("init relay")
	}
	if err := r.Run(ctx); err != nil {
		logger.WithError(err).Error("relay stopped")
		os.Exit(1)
	}
}
