package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-remind-bot/internal/adapters/bot"
	"tg-remind-bot/internal/adapters/repo"
	"tg-remind-bot/internal/adapters/telegram"
	"tg-remind-bot/internal/adapters/undo"
	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/cache"
	"tg-remind-bot/internal/infra/config"
	"tg-remind-bot/internal/infra/db"
	apphttp "tg-remind-bot/internal/infra/http"
	"tg-remind-bot/internal/infra/log"
	"tg-remind-bot/internal/infra/metrics"
	"tg-remind-bot/internal/usecase/reminders"
	"tg-remind-bot/internal/usecase/routing"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	loc, tzName, err := reminders.LoadLocation(cfg.TZ)
	if err != nil {
		logger.Fatal().Err(err).Str("tz", cfg.TZ).Msg("некорректная временная зона")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool, log.Component(logger, "migrate")); err != nil {
		logger.Fatal().Err(err).Msg("не удалось применить миграции")
	}
	store := repo.NewPostgres(pool)

	server := apphttp.NewServer(log.Component(logger, "http"))
	server.AddCheck("postgres", pool.Ping)

	var undoStore domain.UndoStore
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к Redis")
		}
		defer client.Close()
		undoStore = undo.NewRedis(client, "")
		server.AddCheck("redis", redisCheck(client))
	} else {
		logger.Warn().Msg("REDIS_URL не задан: токены отмены хранятся в памяти процесса")
		undoStore = undo.NewMemory()
	}

	botAPI, err := telegram.NewBotAPI(cfg.Telegram.Token, cfg.Telegram.SendTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	sender := telegram.NewSender(botAPI, cfg.Telegram.SendRPS)

	remindersService := reminders.NewService(store, undoStore, store, loc, reminders.Options{
		UndoTTL:    cfg.Undo.TTL,
		AckActions: cfg.Delivery.AckActions,
	}, log.Component(logger, "reminders"))
	resolver := routing.NewResolver(store, store)
	h := bot.NewHandler(sender, log.Component(logger, "bot"), remindersService, resolver)

	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный TG_WEBHOOK_URL")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
		}
		server.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
			var update tgbotapi.Update
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.HandleUpdate(r.Context(), update)
			w.WriteHeader(http.StatusOK)
		})
	} else {
		go pollUpdates(ctx, botAPI, h, logger)
	}

	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
			stop()
		}
	}()
	logger.Info().Str("tz", tzName).Bool("webhook", cfg.Telegram.WebhookURL != "").Msg("бот-гейтвей запущен")

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP сервер не остановился корректно")
	}
}

// pollUpdates читает апдейты long polling до отмены контекста.
func pollUpdates(ctx context.Context, botAPI *tgbotapi.BotAPI, h *bot.Handler, logger zerolog.Logger) {
	if _, err := botAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		logger.Error().Err(err).Msg("не удалось снять вебхук")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := botAPI.GetUpdatesChan(u)
	defer botAPI.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

func redisCheck(client *redis.Client) apphttp.HealthCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

var (
	_ domain.ScheduleStore      = (*repo.Postgres)(nil)
	_ domain.AliasRepo          = (*repo.Postgres)(nil)
	_ domain.UserChatRepo       = (*repo.Postgres)(nil)
	_ domain.BusinessMetricRepo = (*repo.Postgres)(nil)
	_ bot.Messenger             = (*telegram.Sender)(nil)
)
