package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"telephony-relay/internal/auth"
	"telephony-relay/internal/config"
	"telephony-relay/internal/contacts"
	"telephony-relay/internal/dispatch"
	"telephony-relay/internal/eventlog"
	"telephony-relay/internal/httpapi"
	"telephony-relay/internal/maintenance"
	"telephony-relay/internal/reporting"
	"telephony-relay/internal/routing"
	"telephony-relay/internal/settings"
	"telephony-relay/internal/telephony"
	"telephony-relay/migrations"
	"telephony-relay/pkg/logger"
	"telephony-relay/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(log)
	defer func() { _ = logger.ShutdownFlush(log, 2*time.Second) }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}
	cipher, err := settings.NewCipher(cfg.Crypto.SettingsKey)
	if err != nil {
		return err
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		return fmt.Errorf("postgres init failed: %w", err)
	}
	defer db.Close()

	applied, err := utils.Migrate(rootCtx, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	for _, m := range applied {
		log.Info("migration applied", zap.Int64("version", m.Version), zap.String("source", m.Source))
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		return fmt.Errorf("redis init failed: %w", err)
	}
	defer rdb.Close()

	settingsSvc := settings.NewService(settings.NewPostgresRepo(db, cipher))
	events := eventlog.NewService(eventlog.NewPostgresRepo(db))
	contactsSvc := contacts.NewService(contacts.NewPostgresRepo(db))

	queue, err := openQueue(cfg.Dispatch, log)
	if err != nil {
		return err
	}
	defer queue.Close()

	provider := telephony.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	if !provider.Configured() {
		log.Warn("twilio credentials missing; outbound calls and sms forwarding will fail")
	}
	dispatcher := dispatch.New(queue, provider, settingsSvc, events, dispatch.Options{
		Workers:    cfg.Dispatch.Workers,
		RatePerSec: cfg.Dispatch.RatePerSec,
		FromNumber: cfg.Twilio.FromNumber,
		Claims:     dispatch.NewRedisClaimer(rdb, cfg.Dispatch.ClaimTTL),
		Logger:     logger.Named(log, "dispatch"),
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if err := dispatcher.Run(workerCtx); err != nil {
			log.Error("dispatcher stopped", zap.Error(err))
			stop()
		}
	}()

	var retention *maintenance.Retention
	if cfg.Maintenance.EventRetentionDays > 0 {
		retention, err = maintenance.NewRetention(events, cfg.Maintenance.EventRetentionDays, cfg.Maintenance.RetentionCron, logger.Named(log, "retention"))
		if err != nil {
			return fmt.Errorf("retention init failed: %w", err)
		}
		if err := retention.Start(); err != nil {
			return fmt.Errorf("retention start failed: %w", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, cfg, routeDeps{
		inbound: telephony.InboundHandler{
			Directory: routing.NewDirectory(settingsSvc),
			Events:    events,
			Forwarder: dispatcher,
		},
		api: httpapi.Handlers{
			Auth:          authManager,
			Settings:      settingsSvc,
			Events:        events,
			Contacts:      contactsSvc,
			Reporting:     reporting.NewService(events, settingsSvc),
			Intents:       dispatcher,
			AllowDevLogin: !cfg.IsProduction(),
			Health:        healthCheck(db, rdb),
		},
		authMW: auth.RequireAccessToken(authManager),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	if retention != nil {
		retention.Stop(shutdownCtx)
	}
	stopWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Warn("dispatcher did not drain before shutdown deadline")
	}
	return nil
}

func openQueue(cfg config.DispatchConfig, log *zap.Logger) (dispatch.Queue, error) {
	if cfg.AMQPURL == "" {
		log.Info("using in-process dispatch queue")
		return dispatch.NewMemoryQueue(256), nil
	}
	q, err := dispatch.DialAMQP(cfg.AMQPURL, cfg.QueueName, logger.Named(log, "amqp"))
	if err != nil {
		return nil, fmt.Errorf("amqp init failed: %w", err)
	}
	log.Info("using amqp dispatch queue", zap.String("queue", cfg.QueueName))
	return q, nil
}

func healthCheck(db *sql.DB, rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := utils.HealthCheck(ctx, db, time.Second); err != nil {
			return err
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	}
}
