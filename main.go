package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"madrasah-backend/config"
	"madrasah-backend/events"
	"madrasah-backend/handler"
	"madrasah-backend/internal/obs"
	"madrasah-backend/log"
	"madrasah-backend/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}
	log.EnsureLogger(cfg.LogDevelopment)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	db, err := store.Connect(connectCtx, cfg.MongoConnString(), cfg.MongoDatabase)
	if err != nil {
		log.Logger.Fatal("failed connecting to database", zap.Error(err))
	}
	if err := db.Ping(connectCtx); err != nil {
		log.Logger.Fatal("database is unreachable", zap.Error(err))
	}
	if err := db.EnsureIndexes(connectCtx); err != nil {
		log.Logger.Fatal("failed creating indexes", zap.Error(err))
	}
	cancel()
	log.Logger.Info("Connected to database", zap.String("database", cfg.MongoDatabase))

	var publisher events.Publisher = events.Nop{}
	if cfg.RabbitMQ != "" {
		p, err := events.Dial(ctx, cfg.RabbitMQ)
		if err != nil {
			log.Logger.Fatal("failed connecting to rabbitmq", zap.Error(err))
		}
		publisher = p
	}

	shutdownTracer := func(context.Context) error { return nil }
	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err = obs.InitTracer(ctx, handler.ServiceName, cfg.OTLPEndpoint)
		if err != nil {
			log.Logger.Fatal("failed initializing tracing", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr(),
		Handler: handler.NewRouter(handler.Options{
			Collections:    db.Collections(),
			Pinger:         db,
			Events:         publisher,
			RequestTimeout: cfg.RequestTimeout,
			LegacyRoutes:   cfg.LegacyRoutes,
			Tracing:        cfg.OTLPEndpoint != "",
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Logger.Info(fmt.Sprintf("Listening on port: %s", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger.Fatal("couldn't serve http", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Logger.Error("http shutdown", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		log.Logger.Error("rabbitmq close", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Logger.Error("tracer shutdown", zap.Error(err))
	}
	if err := db.Close(shutdownCtx); err != nil {
		log.Logger.Error("database close", zap.Error(err))
	}
}
