// Command feedwatch prints the change feed of one collection.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mission-control/internal/docstore/adapter/feedclient"
	"mission-control/internal/docstore/domain/model"
	"mission-control/internal/shared/logger"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type watchConfig struct {
	BaseURL              string        `env:"FEED_URL" envDefault:"ws://localhost:3000/ws/collections"`
	Collection           string        `env:"FEED_COLLECTION" envDefault:"anomalies"`
	Token                string        `env:"FEED_TOKEN"`
	After                string        `env:"FEED_AFTER"`
	MaxReconnectAttempts int           `env:"FEED_MAX_RECONNECTS" envDefault:"5"`
	ReconnectBackoff     time.Duration `env:"FEED_RECONNECT_BACKOFF" envDefault:"2s"`
}

func main() {
	_ = godotenv.Load()

	log := logger.WithComponent("feedwatch")

	cfg := watchConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if len(os.Args) > 1 {
		cfg.Collection = os.Args[1]
	}

	client, err := feedclient.New(feedclient.Config{
		BaseURL:              cfg.BaseURL,
		Collection:           cfg.Collection,
		Token:                cfg.Token,
		After:                cfg.After,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectBackoff:     cfg.ReconnectBackoff,
	}, log)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	err = client.Run(ctx, func(ev model.ChangeEvent) {
		_ = enc.Encode(ev)
	})
	if err != nil {
		log.Errorf("feed stopped: %v", err)
		os.Exit(1)
	}
}
