// Command forumd serves the forum's moderation API.
//
//	forumd              run the HTTP server
//	forumd migrate up   apply schema migrations
//	forumd migrate down roll back every migration
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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/agora/forum/internal/api"
	"github.com/agora/forum/internal/config"
	"github.com/agora/forum/internal/enforcement"
	"github.com/agora/forum/internal/identity"
	"github.com/agora/forum/internal/logging"
	"github.com/agora/forum/internal/messaging"
	"github.com/agora/forum/internal/moderation"
	"github.com/agora/forum/internal/notify"
	"github.com/agora/forum/internal/ratelimit"
	"github.com/agora/forum/internal/report"
	"github.com/agora/forum/internal/store"
	"github.com/agora/forum/internal/submission"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
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

	if len(os.Args) > 1 {
		if err := runCommand(cfg, logger, os.Args[1:]); err != nil {
			logger.Fatal("command failed", zap.Strings("args", os.Args[1:]), zap.Error(err))
		}
		return
	}
	if err := serve(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func runCommand(cfg config.Config, logger *zap.Logger, args []string) error {
	if args[0] != "migrate" || len(args) != 2 {
		return fmt.Errorf("usage: forumd [migrate up|down]")
	}
	switch args[1] {
	case "up":
		if err := store.MigrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
	case "down":
		if err := store.MigrateDown(cfg.DatabaseURL); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown migrate direction %q", args[1])
	}
	version, dirty, err := store.SchemaVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", zap.String("direction", args[1]), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func serve(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.MigrateUp(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return err
	}
	defer st.Close()

	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The limiter fails open, so a late Redis only costs throttling.
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		limiter = ratelimit.NewLimiter(rdb, logger)
	}

	// Without NATS, notifications are only stored and moderators are
	// resolved in-process.
	var (
		publisher notify.Publisher
		events    submission.EventPublisher
	)
	var nc *messaging.NATSClient
	if cfg.NATSURL != "" {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Name = "forumd"
		nc, err = messaging.NewNATSClient(natsCfg, logger)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer nc.Close()
		publisher, events = nc, nc
	}

	sink := notify.NewSink(st, publisher, logger)
	var moderators notify.ModeratorGroup = notify.NewDirectGroup(st, sink)
	if nc != nil {
		moderators = notify.NewRelayGroup(nc)
	}

	subCfg := submission.DefaultConfig()
	subCfg.Topic = submission.Limits{MaxPerMinute: cfg.TopicMaxPerMinute, DuplicateWindow: cfg.TopicDuplicateWindow()}
	subCfg.Reply = submission.Limits{MaxPerMinute: cfg.ReplyMaxPerMinute, DuplicateWindow: cfg.ReplyDuplicateWindow()}
	subCfg.RecentWindow = cfg.RecentPostWindow

	handler := api.NewRouter(api.Deps{
		Submissions:        submission.NewService(st, sink, events, moderation.NewFilter(), subCfg, logger),
		Reports:            report.NewService(report.NewRepository(st), moderators, logger),
		Enforcement:        enforcement.NewService(enforcement.NewRepository(st), sink, logger),
		Inbox:              st,
		Catalog:            st,
		Health:             st,
		Verifier:           identity.NewVerifier(cfg.JWTSecret),
		Limiter:            limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("forumd listening",
			zap.String("addr", cfg.ListenAddr),
			zap.Bool("rate_limit", limiter != nil),
			zap.Bool("nats", nc != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
