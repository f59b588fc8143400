package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/devshad-01/social-task-notify/internal/config"
	"github.com/devshad-01/social-task-notify/internal/pushgateway"
	"github.com/devshad-01/social-task-notify/internal/scheduler"
	"github.com/devshad-01/social-task-notify/internal/server"
	"github.com/devshad-01/social-task-notify/internal/service"
	"github.com/devshad-01/social-task-notify/internal/storage/bolt"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		log = log.Level(level)
	}

	// Missing VAPID config disables the push leg; persistent delivery
	// still works through the inbox.
	var gateway *pushgateway.Client
	if cfg.PushEnabled() {
		gateway, err = pushgateway.New(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subject, cfg.Push.RequestTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("init push gateway")
		}
	} else {
		log.Warn().Msg("vapid keys not configured, push delivery disabled")
	}

	store, err := bolt.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	authSvc := service.NewAuthService(cfg)
	pushSvc := service.NewPushService(store, gateway, cfg.Push.RatePerSec, log)
	inboxSvc := service.NewInboxService(store)
	queueSvc := service.NewQueueService(store, pushSvc, inboxSvc, service.QueueConfig{
		BatchSize:         cfg.Queue.BatchSize,
		MaxRetries:        cfg.Queue.MaxRetries,
		BaseRetryDelay:    cfg.Queue.BaseRetryDelay,
		MaxRetryDelay:     cfg.Queue.MaxRetryDelay,
		BackoffMultiplier: cfg.Queue.BackoffMultiplier,
		DefaultTTL:        cfg.Queue.DefaultTTL,
		SentRetention:     time.Duration(cfg.Cleanup.SentRetentionDays) * 24 * time.Hour,
		OpLogRetention:    time.Duration(cfg.Cleanup.LogRetentionDays) * 24 * time.Hour,
	}, log)
	notifySvc := service.NewNotifyService(queueSvc, inboxSvc, pushSvc, log)
	oplogSvc := service.NewOpLogService(store)

	sched, err := scheduler.New(cfg.Queue.TickInterval, cfg.Cleanup.Schedule, queueSvc, func(ctx context.Context) error {
		report, err := queueSvc.Cleanup(ctx)
		if err != nil {
			return err
		}
		removed, err := inboxSvc.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Int("expired_marked", report.ExpiredMarked).
			Int("entries_removed", report.EntriesRemoved).
			Int("oplogs_purged", report.OpLogsPurged).
			Int("inbox_removed", removed).
			Msg("cleanup sweep done")
		return nil
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init scheduler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	srv := server.New(cfg, notifySvc, queueSvc, inboxSvc, pushSvc, oplogSvc, authSvc, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	waitForSignal()
	log.Info().Msg("shutting down...")
	cancel()
	sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
