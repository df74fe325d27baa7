package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/glowmart/backend-glow/internal/common"
	"github.com/glowmart/backend-glow/internal/config"
	"github.com/glowmart/backend-glow/internal/lock"
	"github.com/glowmart/backend-glow/internal/notify"
	"github.com/glowmart/backend-glow/internal/obs"
	"github.com/glowmart/backend-glow/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", cfg.LogFormat)
	logLevel := envOrDefault("OBS_LOG_LEVEL", cfg.LogLevel)
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "glow"), nil)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := mustInitRedis(redisOpts, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	var webhook *notify.WebhookClient
	if cfg.OrderWebhookURL != "" {
		webhook, err = notify.NewWebhookClient(cfg.OrderWebhookURL, envOrDefault("ORDER_WEBHOOK_SECRET", ""), 5*time.Second)
		if err != nil {
			logger.Fatal().Err(err).Msg("configure order webhook")
		}
	}

	worker := &notify.Worker{
		Webhook:  webhook,
		Email:    notify.EmailNotifier{Mail: common.NopEmailSender{}, Enabled: true},
		OpsEmail: envOrDefault("OPS_ALERT_EMAIL", ""),
		Currency: cfg.Currency,
		Locker:   lock.Locker{R: redisClient},
		Logger:   &logger,
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB},
		asynq.Config{
			Concurrency: 10,
			Logger:      asynqLogger{logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeLowStockAlert, worker.HandleLowStockAlert)
	mux.HandleFunc(tasks.TypeOrderCreated, worker.HandleOrderCreated)

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func mustInitRedis(opts *redis.Options, logger zerolog.Logger) *redis.Client {
	redisClient := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

type asynqLogger struct {
	l zerolog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug().Msgf("%v", args) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info().Msgf("%v", args) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn().Msgf("%v", args) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error().Msgf("%v", args) }
func (a asynqLogger) Fatal(args ...interface{}) { a.l.Fatal().Msgf("%v", args) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
