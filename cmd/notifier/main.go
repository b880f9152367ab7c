// Command notifier consumes relayed moderator notifications and
// auto-flagged post events from NATS and fans them out to every admin.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agora/forum/internal/config"
	"github.com/agora/forum/internal/logging"
	"github.com/agora/forum/internal/messaging"
	"github.com/agora/forum/internal/notify"
	"github.com/agora/forum/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadNotifier()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer st.Close()

	natsCfg := messaging.DefaultNATSConfig()
	natsCfg.URL = cfg.NATSURL
	natsCfg.Name = "forum-notifier"
	nc, err := messaging.NewNATSClient(natsCfg, logger)
	if err != nil {
		logger.Fatal("connect nats", zap.Error(err))
	}
	defer nc.Close()

	// The sink publishes per-user copies so connected clients see them live.
	sink := notify.NewSink(st, nc, logger)
	consumer := notify.NewConsumer(notify.NewDirectGroup(st, sink), logger)

	if err := nc.SubscribeModeratorNotifications(consumer.HandleModerator); err != nil {
		logger.Fatal("subscribe moderator notifications", zap.Error(err))
	}
	if err := nc.SubscribeFlagged(consumer.HandleFlagged); err != nil {
		logger.Fatal("subscribe flagged events", zap.Error(err))
	}

	logger.Info("notifier running", zap.String("nats_url", cfg.NATSURL))
	<-ctx.Done()
	logger.Info("shutting down")
}
