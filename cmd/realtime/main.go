package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/kilopost/internal/adapters/nats"
	"github.com/samirrijal/kilopost/internal/adapters/postgres"
	"github.com/samirrijal/kilopost/internal/adapters/valkey"
	"github.com/samirrijal/kilopost/internal/core/domain"
	"github.com/samirrijal/kilopost/internal/core/usecases"
	"github.com/samirrijal/kilopost/internal/pkg/config"
	"github.com/samirrijal/kilopost/internal/pkg/logging"
)

// The realtime worker consumes road ingest events, drops stale cache
// entries, re-warms the road lookup, and fans the event out to the
// WebSocket broadcast channel.

func main() {
	cfg, err := config.Load("kilopost-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	roadSvc := usecases.NewRoadService(postgres.NewRoadRepo(db), cache)

	err = sub.SubscribeRoadIngested(ctx, func(ctx context.Context, road *domain.Road) error {
		if err := roadSvc.Invalidate(ctx, road.Ref); err != nil {
			slog.Warn("cache invalidation failed", "ref", road.Ref, "error", err)
		}

		// Re-warm the lookup so the first API hit after a reload is cheap.
		if _, err := roadSvc.GetByRef(ctx, road.Ref); err != nil {
			slog.Warn("cache warm failed", "ref", road.Ref, "error", err)
		}

		data, err := json.Marshal(road)
		if err != nil {
			return err
		}
		if err := pub.PublishBroadcast(ctx, data); err != nil {
			slog.Warn("broadcast failed", "ref", road.Ref, "error", err)
		}

		slog.Info("road refreshed", "ref", road.Ref, "length_km", road.LengthKm)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("realtime worker started", "stream", "ROAD_INGEST")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig.String())
}
