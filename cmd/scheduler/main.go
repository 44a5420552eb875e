package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"tg-remind-bot/internal/adapters/repo"
	"tg-remind-bot/internal/adapters/telegram"
	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/cache"
	"tg-remind-bot/internal/infra/config"
	"tg-remind-bot/internal/infra/db"
	"tg-remind-bot/internal/infra/log"
	"tg-remind-bot/internal/infra/metrics"
	"tg-remind-bot/internal/usecase/delivery"
	"tg-remind-bot/internal/usecase/housekeeping"
	"tg-remind-bot/internal/usecase/reminders"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	loc, tzName, err := reminders.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("scheduler: некорректная временная зона")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	metrics.StartServer(ctx, log.Component(logger, "metrics"), cfg.MetricsAddr)

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool, log.Component(logger, "migrate")); err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось применить миграции")
	}
	store := repo.NewPostgres(pool)

	var guard domain.Cache
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("scheduler: нет подключения к Redis")
		}
		defer client.Close()
		guard = cache.NewRedis(client, "remind:guard:")
	} else {
		logger.Warn().Msg("scheduler: REDIS_URL не задан, защита от повторной отправки живёт в памяти процесса")
		guard = cache.NewMemory()
	}

	botAPI, err := telegram.NewBotAPI(cfg.Telegram.Token, cfg.Telegram.SendTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось создать бота")
	}
	sender := telegram.NewSender(botAPI, cfg.Telegram.SendRPS)

	worker := delivery.NewWorker(store, sender, guard, store, loc, cfg.Delivery.Interval, log.Component(logger, "delivery"))
	escalator := delivery.NewEscalator(store, sender, guard, store, cfg.Delivery.EscalateAfter, cfg.Delivery.EscalationInterval, log.Component(logger, "escalation"))
	purger := housekeeping.NewPurger(store, cfg.Housekeeping.Retention, loc, log.Component(logger, "housekeeping"))
	if err := purger.Start(ctx, cfg.Housekeeping.Cron); err != nil {
		logger.Fatal().Err(err).Str("cron", cfg.Housekeeping.Cron).Msg("scheduler: некорректное расписание очистки")
	}
	defer purger.Stop()

	logger.Info().Str("tz", tzName).Msg("scheduler: запущен")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		escalator.Run(ctx)
	}()
	wg.Wait()
	logger.Info().Msg("scheduler: остановлен")
}
