package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/metrics"
)

// Escalator повторно присылает доставленные напоминания, на которые не отреагировали.
// Каждое напоминание эскалируется не больше одного раза.
type Escalator struct {
	store     domain.ScheduleStore
	transport domain.Transport
	guard     domain.Cache
	analytics domain.BusinessMetricRepo
	after     time.Duration
	interval  time.Duration
	log       zerolog.Logger
}

// NewEscalator создаёт воркер эскалации. analytics может быть nil.
func NewEscalator(store domain.ScheduleStore, transport domain.Transport, guard domain.Cache, analytics domain.BusinessMetricRepo, after, interval time.Duration, logger zerolog.Logger) *Escalator {
	if after <= 0 {
		after = DefaultEscalateAfter
	}
	if interval <= 0 {
		interval = DefaultEscalationInterval
	}
	return &Escalator{
		store:     store,
		transport: transport,
		guard:     guard,
		analytics: analytics,
		after:     after,
		interval:  interval,
		log:       logger,
	}
}

// Run крутит цикл эскалации до отмены контекста.
func (e *Escalator) Run(ctx context.Context) {
	loop(ctx, e.interval, e.log, "escalation", e.RunOnce)
}

// RunOnce выполняет один проход и возвращает число отправленных повторов.
func (e *Escalator) RunOnce(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	defer metrics.ObserveWorkerCycle("escalation", start)

	list, err := e.store.UnacknowledgedBefore(ctx, now.Add(-e.after))
	if err != nil {
		return 0, fmt.Errorf("выборка напоминаний без реакции: %w", err)
	}
	sent := 0
	for _, r := range list {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		err := e.escalate(ctx, r, now)
		metrics.Escalations.WithLabelValues(metrics.Status(err)).Inc()
		logger := reminderLogger(e.log, r)
		if err != nil {
			logger.Error().Err(err).Msg("escalation: не удалось отправить повтор")
			continue
		}
		logger.Info().Msg("escalation: повтор отправлен")
		sent++
	}
	return sent, nil
}

func (e *Escalator) escalate(ctx context.Context, r domain.Reminder, now time.Time) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	msg := domain.OutgoingMessage{
		ChatID: r.ChatID,
		Text:   "⏰ Напоминание без ответа: " + r.Text,
		Rows:   domain.ReminderPrompts(r.ID),
	}
	key := fmt.Sprintf("escalated:%d", r.ID)
	if err := e.guard.Once(ctx, key, guardTTL, func() error { return e.transport.Send(ctx, msg) }); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailure, err)
	}
	if _, err := e.store.MarkEscalated(ctx, r.ID); err != nil {
		return fmt.Errorf("отметка эскалации: %w", err)
	}
	if e.analytics != nil {
		chatID := r.ChatID
		metric := domain.BusinessMetric{
			Event:      domain.BusinessMetricEventReminderEscalated,
			UserID:     r.CreatedBy,
			ChatID:     &chatID,
			Metadata:   map[string]any{"reminder_id": r.ID},
			OccurredAt: now,
		}
		if err := e.analytics.RecordBusinessMetric(ctx, metric); err != nil {
			e.log.Warn().Err(err).Int64("reminder_id", r.ID).Msg("escalation: не удалось записать бизнес-метрику")
		}
	}
	return nil
}
