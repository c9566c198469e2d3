package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	"saldo/internal/config"
	"saldo/internal/metrics"
	"saldo/internal/worker"

	"github.com/nats-io/nats.go"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	nc, err := nats.Connect(cfg.NatsAddr())
	if err != nil {
		log.Fatalf("NATS connection error: %v", err)
	}
	defer nc.Close()

	var sender worker.Sender = worker.LogSender{}
	if cfg.SMTPHost != "" {
		port, err := strconv.Atoi(cfg.SMTPPort)
		if err != nil {
			log.Fatalf("Invalid SALDO_SMTP_PORT: %v", err)
		}
		sender = worker.NewSMTPSender(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	w := worker.NewEmailWorker(nc, sender)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Worker error: %v", err)
	}
}
