package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"madrasah-backend/config"
	"madrasah-backend/events"
	"madrasah-backend/log"
)

func main() {
	pattern := flag.String("pattern", "#", "Routing pattern to follow, e.g. users.* or notices.created")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("invalid configuration: " + err.Error() + "\n")
		os.Exit(1)
	}
	log.EnsureLogger(cfg.LogDevelopment)
	defer log.Sync()

	if cfg.RabbitMQ == "" {
		log.Logger.Fatal("RABBITMQ_CONNSTRING is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := events.Dial(ctx, cfg.RabbitMQ)
	if err != nil {
		log.Logger.Fatal("failed connecting to rabbitmq", zap.Error(err))
	}
	defer e.Close()

	activities, err := e.Consume(ctx, *pattern)
	if err != nil {
		log.Logger.Fatal("failed consuming activity", zap.Error(err))
	}

	for a := range activities {
		log.Logger.Info("activity",
			zap.String("id", a.ID),
			zap.String("key", a.RoutingKey()),
			zap.String("document", a.DocumentID.Hex()),
			zap.String("role", string(a.Role)),
			zap.Time("time", a.Time),
		)
	}
}
