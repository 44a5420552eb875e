// Package delivery содержит фоновые циклы доставки и эскалации напоминаний.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/metrics"
	"tg-remind-bot/internal/usecase/recurrence"
)

const (
	DefaultDeliveryInterval   = 10 * time.Second
	DefaultEscalationInterval = 30 * time.Second
	DefaultEscalateAfter      = 20 * time.Minute
)

// guardTTL: сколько живёт отметка об отправке вхождения.
const guardTTL = 7 * 24 * time.Hour

// Worker доставляет наступившие напоминания и порождает следующие вхождения серий.
type Worker struct {
	store     domain.ScheduleStore
	transport domain.Transport
	guard     domain.Cache
	analytics domain.BusinessMetricRepo
	loc       *time.Location
	interval  time.Duration
	log       zerolog.Logger
}

// NewWorker создаёт воркер доставки. analytics может быть nil.
func NewWorker(store domain.ScheduleStore, transport domain.Transport, guard domain.Cache, analytics domain.BusinessMetricRepo, loc *time.Location, interval time.Duration, logger zerolog.Logger) *Worker {
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = DefaultDeliveryInterval
	}
	return &Worker{
		store:     store,
		transport: transport,
		guard:     guard,
		analytics: analytics,
		loc:       loc,
		interval:  interval,
		log:       logger,
	}
}

// Run крутит цикл доставки до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	loop(ctx, w.interval, w.log, "delivery", w.RunOnce)
}

// RunOnce выполняет один проход и возвращает число доставленных напоминаний.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	defer metrics.ObserveWorkerCycle("delivery", start)

	due, err := w.store.DueReminders(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("выборка напоминаний: %w", err)
	}
	metrics.DueBacklog.Set(float64(len(due)))

	delivered := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		err := w.deliver(ctx, r, now)
		metrics.Deliveries.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			w.itemLog(r).Error().Err(err).Msg("delivery: не удалось доставить напоминание")
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (w *Worker) deliver(ctx context.Context, r domain.Reminder, now time.Time) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	msg := domain.OutgoingMessage{ChatID: r.ChatID, Text: "🔔 " + r.Text, Rows: domain.ReminderPrompts(r.ID)}
	key := fmt.Sprintf("sent:%d", r.ID)
	if err := w.guard.Once(ctx, key, guardTTL, func() error { return w.transport.Send(ctx, msg) }); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err)
	}

	var (
		marked  bool
		nextAt  *time.Time
		stopped bool
	)
	err = w.store.InTx(ctx, func(tx domain.ScheduleStore) error {
		ok, err := tx.MarkDelivered(ctx, r.ID, now)
		if err != nil {
			return fmt.Errorf("отметка доставки: %w", err)
		}
		marked = ok
		if !ok || r.SeriesID == nil {
			return nil
		}
		tpl, err := tx.GetTemplate(ctx, *r.SeriesID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("чтение серии: %w", err)
		}
		if !tpl.Active {
			return nil
		}
		pending, err := tx.PendingBySeries(ctx, tpl.ID)
		if err != nil {
			return fmt.Errorf("ожидающие вхождения серии: %w", err)
		}
		if len(pending) > 0 {
			return nil
		}
		next, ok := recurrence.Next(tpl.Pattern, tpl.TimeOfDay, now.In(w.loc))
		if !ok {
			stopped = true
			return tx.SetTemplateActive(ctx, tpl.ID, false)
		}
		if _, err := tx.CreateReminder(ctx, domain.Reminder{
			ChatID:    tpl.ChatID,
			Text:      tpl.Text,
			DueAt:     next,
			CreatedBy: tpl.CreatedBy,
			CreatedAt: now,
			SeriesID:  &tpl.ID,
		}); err != nil {
			return fmt.Errorf("создание следующего вхождения: %w", err)
		}
		nextAt = &next
		return nil
	})
	if err != nil {
		return err
	}

	logger := w.itemLog(r)
	if !marked {
		logger.Debug().Msg("delivery: напоминание уже доставлено или удалено")
		return nil
	}
	if stopped {
		logger.Warn().Msg("delivery: у серии нет следующих вхождений, серия остановлена")
	}
	event := logger.Info()
	if nextAt != nil {
		event = event.Time("next_at", *nextAt)
	}
	event.Msg("delivery: напоминание доставлено")

	if w.analytics != nil {
		chatID := r.ChatID
		metric := domain.BusinessMetric{
			Event:      domain.BusinessMetricEventReminderDelivered,
			UserID:     r.CreatedBy,
			ChatID:     &chatID,
			Metadata:   map[string]any{"reminder_id": r.ID, "late_seconds": int64(now.Sub(r.DueAt).Seconds())},
			OccurredAt: now,
		}
		if err := w.analytics.RecordBusinessMetric(ctx, metric); err != nil {
			logger.Warn().Err(err).Msg("delivery: не удалось записать бизнес-метрику")
		}
	}
	return nil
}

func (w *Worker) itemLog(r domain.Reminder) *zerolog.Logger {
	l := reminderLogger(w.log, r)
	return &l
}

func reminderLogger(base zerolog.Logger, r domain.Reminder) zerolog.Logger {
	c := base.With().Int64("reminder_id", r.ID).Int64("chat_id", r.ChatID)
	if r.SeriesID != nil {
		c = c.Int64("series_id", *r.SeriesID)
	}
	return c.Logger()
}

// loop вызывает cycle сразу и затем каждые interval. Ошибка прохода не останавливает цикл.
func loop(ctx context.Context, interval time.Duration, logger zerolog.Logger, name string, cycle func(context.Context, time.Time) (int, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info().Dur("interval", interval).Msgf("%s: запуск цикла", name)
	for {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().Interface("panic", rec).Msgf("%s: паника в проходе", name)
				}
			}()
			if n, err := cycle(ctx, time.Now()); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msgf("%s: ошибка прохода", name)
			} else if n > 0 {
				logger.Debug().Int("processed", n).Msgf("%s: проход завершён", name)
			}
		}()
		select {
		case <-ctx.Done():
			logger.Info().Msgf("%s: остановлен", name)
			return
		case <-ticker.C:
		}
	}
}
