// Package reminders реализует команды пользователя: создание, просмотр,
// удаление с отменой, подтверждение и откладывание напоминаний.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-remind-bot/internal/calendar"
	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/metrics"
	"tg-remind-bot/internal/usecase/snapshot"
	"tg-remind-bot/internal/usecase/timeparse"
)

// ErrUnknownSnooze возвращается для неизвестного варианта откладывания.
var ErrUnknownSnooze = errors.New("unknown snooze option")

// DefaultUndoTTL: срок хранения снимков по умолчанию.
const DefaultUndoTTL = 48 * time.Hour

// Requester: кто и откуда выполняет команду.
type Requester struct {
	ChatID int64
	UserID int64
}

// ScheduleRequest: запрос на создание напоминания из текста.
type ScheduleRequest struct {
	ChatID    int64
	CreatedBy *int64
	Input     string
}

// Scheduled описывает созданное напоминание или серию.
type Scheduled struct {
	ReminderID int64
	ChatID     int64
	DueAt      time.Time
	Body       string
	// Template заполняется для повторяющихся напоминаний.
	Template *domain.Template
}

// BulkResult: результат обработки одной строки пакетной команды.
type BulkResult struct {
	Line      string
	Scheduled Scheduled
	Err       error
}

// Listed: ожидающее напоминание вместе с его серией.
type Listed struct {
	Reminder domain.Reminder
	Template *domain.Template
}

// Deleted: результат удаления с токеном отмены.
type Deleted struct {
	Token    string
	Snapshot domain.Snapshot
}

// Options задаёт политики сервиса.
type Options struct {
	UndoTTL    time.Duration
	AckActions []string
}

// Service реализует сценарии работы с напоминаниями.
type Service struct {
	store     domain.ScheduleStore
	snapshots *snapshot.Service
	undo      domain.UndoStore
	analytics domain.BusinessMetricRepo
	loc       *time.Location
	undoTTL   time.Duration
	ackSet    map[string]struct{}
	log       zerolog.Logger
	now       func() time.Time
}

// NewService создаёт сервис. analytics может быть nil.
func NewService(store domain.ScheduleStore, undo domain.UndoStore, analytics domain.BusinessMetricRepo, loc *time.Location, opts Options, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if opts.UndoTTL <= 0 {
		opts.UndoTTL = DefaultUndoTTL
	}
	if opts.AckActions == nil {
		opts.AckActions = []string{domain.ActionDone, domain.ActionSnooze, domain.ActionDelete}
	}
	ackSet := make(map[string]struct{}, len(opts.AckActions))
	for _, a := range opts.AckActions {
		if a = strings.TrimSpace(a); a != "" {
			ackSet[a] = struct{}{}
		}
	}
	s := &Service{
		store:     store,
		snapshots: snapshot.NewService(store, loc),
		undo:      undo,
		analytics: analytics,
		loc:       loc,
		undoTTL:   opts.UndoTTL,
		ackSet:    ackSet,
		log:       logger,
		now:       time.Now,
	}
	return s
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.snapshots.WithClock(now)
	return s
}

// Location возвращает зону, в которой разбираются выражения.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Schedule разбирает текст и сохраняет разовое напоминание или серию.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (Scheduled, error) {
	now := s.now().In(s.loc)
	if timeparse.LooksLikeRecurring(req.Input) {
		return s.scheduleRecurring(ctx, req, now)
	}
	due, body, err := timeparse.Parse(req.Input, now)
	if err != nil {
		metrics.ParseFailures.WithLabelValues(failureReason(err)).Inc()
		return Scheduled{}, err
	}
	id, err := s.store.CreateReminder(ctx, domain.Reminder{
		ChatID:    req.ChatID,
		Text:      body,
		DueAt:     due,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
	})
	if err != nil {
		return Scheduled{}, fmt.Errorf("сохранение напоминания: %w", err)
	}
	metrics.RemindersScheduled.WithLabelValues("single").Inc()
	s.record(ctx, domain.BusinessMetricEventReminderScheduled, req.CreatedBy, req.ChatID, map[string]any{
		"reminder_id": id,
		"due_at":      due.Format(time.RFC3339),
	})
	return Scheduled{ReminderID: id, ChatID: req.ChatID, DueAt: due, Body: body}, nil
}

func (s *Service) scheduleRecurring(ctx context.Context, req ScheduleRequest, now time.Time) (Scheduled, error) {
	rec, err := timeparse.ParseRecurring(req.Input, now)
	if err != nil {
		metrics.ParseFailures.WithLabelValues(failureReason(err)).Inc()
		return Scheduled{}, err
	}
	tpl := domain.Template{
		ChatID:    req.ChatID,
		Text:      rec.Body,
		CreatedBy: req.CreatedBy,
		CreatedAt: now,
		Pattern:   rec.Pattern,
		TimeOfDay: rec.TimeOfDay,
		Active:    true,
	}
	var reminderID int64
	err = s.store.InTx(ctx, func(tx domain.ScheduleStore) error {
		tplID, err := tx.CreateTemplate(ctx, tpl)
		if err != nil {
			return fmt.Errorf("сохранение серии: %w", err)
		}
		tpl.ID = tplID
		reminderID, err = tx.CreateReminder(ctx, domain.Reminder{
			ChatID:    req.ChatID,
			Text:      rec.Body,
			DueAt:     rec.FirstAt,
			CreatedBy: req.CreatedBy,
			CreatedAt: now,
			SeriesID:  &tplID,
		})
		if err != nil {
			return fmt.Errorf("сохранение первого вхождения: %w", err)
		}
		return nil
	})
	if err != nil {
		return Scheduled{}, err
	}
	metrics.RemindersScheduled.WithLabelValues("series").Inc()
	s.record(ctx, domain.BusinessMetricEventSeriesScheduled, req.CreatedBy, req.ChatID, map[string]any{
		"template_id": tpl.ID,
		"pattern":     string(tpl.Pattern.Type),
	})
	return Scheduled{ReminderID: reminderID, ChatID: req.ChatID, DueAt: rec.FirstAt, Body: rec.Body, Template: &tpl}, nil
}

// ScheduleBulk создаёт напоминание по каждой непустой строке независимо.
func (s *Service) ScheduleBulk(ctx context.Context, chatID int64, createdBy *int64, lines []string) []BulkResult {
	results := make([]BulkResult, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(strings.TrimPrefix(line, "- "))
		if line == "" {
			continue
		}
		scheduled, err := s.Schedule(ctx, ScheduleRequest{ChatID: chatID, CreatedBy: createdBy, Input: line})
		results = append(results, BulkResult{Line: line, Scheduled: scheduled, Err: err})
	}
	return results
}

// List возвращает ожидающие напоминания чата; createdBy ограничивает выборку автором.
func (s *Service) List(ctx context.Context, chatID int64, createdBy *int64) ([]Listed, error) {
	pending, err := s.store.PendingByChat(ctx, chatID, createdBy)
	if err != nil {
		return nil, fmt.Errorf("список напоминаний: %w", err)
	}
	templates := make(map[int64]*domain.Template)
	out := make([]Listed, 0, len(pending))
	for _, r := range pending {
		item := Listed{Reminder: r}
		if r.SeriesID != nil {
			tpl, ok := templates[*r.SeriesID]
			if !ok {
				t, err := s.store.GetTemplate(ctx, *r.SeriesID)
				switch {
				case err == nil:
					tpl = &t
				case !errors.Is(err, domain.ErrNotFound):
					return nil, fmt.Errorf("чтение серии: %w", err)
				}
				templates[*r.SeriesID] = tpl
			}
			item.Template = tpl
		}
		out = append(out, item)
	}
	return out, nil
}

// DeleteSingle удаляет напоминание и возвращает токен отмены.
func (s *Service) DeleteSingle(ctx context.Context, who Requester, id int64) (Deleted, error) {
	r, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return Deleted{}, err
	}
	if !r.OwnedBy(who.ChatID, who.UserID) {
		return Deleted{}, domain.ErrForbidden
	}
	snap, err := s.snapshots.SingleDelete(ctx, id)
	if err != nil {
		return Deleted{}, err
	}
	token, err := s.saveSnapshot(ctx, who.UserID, snap)
	if err != nil {
		return Deleted{}, err
	}
	s.record(ctx, domain.BusinessMetricEventReminderDeleted, &who.UserID, r.ChatID, map[string]any{"reminder_id": id})
	return Deleted{Token: token, Snapshot: snap}, nil
}

// DeleteSeries останавливает серию и возвращает токен отмены.
func (s *Service) DeleteSeries(ctx context.Context, who Requester, templateID int64) (Deleted, error) {
	tpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return Deleted{}, err
	}
	owner := domain.Reminder{ChatID: tpl.ChatID, CreatedBy: tpl.CreatedBy}
	if !owner.OwnedBy(who.ChatID, who.UserID) {
		return Deleted{}, domain.ErrForbidden
	}
	snap, err := s.snapshots.SeriesDelete(ctx, templateID)
	if err != nil {
		return Deleted{}, err
	}
	token, err := s.saveSnapshot(ctx, who.UserID, snap)
	if err != nil {
		return Deleted{}, err
	}
	s.record(ctx, domain.BusinessMetricEventSeriesDeleted, &who.UserID, tpl.ChatID, map[string]any{
		"template_id": templateID,
		"reminders":   len(snap.Reminders),
	})
	return Deleted{Token: token, Snapshot: snap}, nil
}

func (s *Service) saveSnapshot(ctx context.Context, owner int64, snap domain.Snapshot) (string, error) {
	token := uuid.NewString()
	if err := s.undo.Save(ctx, owner, token, snap, s.undoTTL); err != nil {
		// Удаление уже выполнено; без токена отмена просто недоступна.
		s.log.Error().Err(err).Int64("user_id", owner).Msg("undo: не удалось сохранить снимок")
		return "", nil
	}
	return token, nil
}

// Undo применяет снимок по токену. Повторное применение возвращает ErrAlreadyConsumed.
func (s *Service) Undo(ctx context.Context, userID int64, token string) (domain.Snapshot, error) {
	snap, err := s.undo.Take(ctx, userID, token)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyConsumed) {
			metrics.UndoTotal.WithLabelValues("consumed").Inc()
		} else {
			metrics.UndoTotal.WithLabelValues("error").Inc()
		}
		return domain.Snapshot{}, err
	}
	if _, err := s.snapshots.Restore(ctx, snap); err != nil {
		metrics.UndoTotal.WithLabelValues("error").Inc()
		if saveErr := s.undo.Save(ctx, userID, token, snap, s.undoTTL); saveErr != nil {
			s.log.Error().Err(saveErr).Int64("user_id", userID).Msg("undo: не удалось вернуть снимок после ошибки")
		}
		return domain.Snapshot{}, fmt.Errorf("восстановление: %w", err)
	}
	metrics.UndoTotal.WithLabelValues("applied").Inc()
	var chatID int64
	switch {
	case snap.Reminder != nil:
		chatID = snap.Reminder.ChatID
	case snap.Template != nil:
		chatID = snap.Template.ChatID
	}
	s.record(ctx, domain.BusinessMetricEventUndoApplied, &userID, chatID, map[string]any{"kind": string(snap.Kind)})
	return snap, nil
}

// IsAckAction сообщает, считается ли действие кнопки подтверждением.
func (s *Service) IsAckAction(action string) bool {
	_, ok := s.ackSet[action]
	return ok
}

// Acknowledge помечает напоминание обработанным, если действие считается подтверждением.
func (s *Service) Acknowledge(ctx context.Context, action string, id int64) error {
	if !s.IsAckAction(action) {
		return nil
	}
	return s.store.MarkAcknowledged(ctx, id)
}

// Snooze подтверждает напоминание и создаёт разовое напоминание с тем же текстом.
func (s *Service) Snooze(ctx context.Context, who Requester, id int64, option string) (Scheduled, error) {
	now := s.now().In(s.loc)
	due, err := SnoozeUntil(option, now)
	if err != nil {
		return Scheduled{}, err
	}
	r, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return Scheduled{}, err
	}
	if !r.OwnedBy(who.ChatID, who.UserID) {
		return Scheduled{}, domain.ErrForbidden
	}
	var newID int64
	err = s.store.InTx(ctx, func(tx domain.ScheduleStore) error {
		if s.IsAckAction(domain.ActionSnooze) {
			if err := tx.MarkAcknowledged(ctx, id); err != nil {
				return err
			}
		}
		newID, err = tx.CreateReminder(ctx, domain.Reminder{
			ChatID:    r.ChatID,
			Text:      r.Text,
			DueAt:     due,
			CreatedBy: &who.UserID,
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return Scheduled{}, fmt.Errorf("откладывание: %w", err)
	}
	metrics.RemindersScheduled.WithLabelValues("snooze").Inc()
	s.record(ctx, domain.BusinessMetricEventReminderScheduled, &who.UserID, r.ChatID, map[string]any{
		"reminder_id": newID,
		"snoozed":     id,
		"option":      option,
	})
	return Scheduled{ReminderID: newID, ChatID: r.ChatID, DueAt: due, Body: r.Text}, nil
}

// SnoozeUntil вычисляет момент для варианта откладывания.
func SnoozeUntil(option string, now time.Time) (time.Time, error) {
	switch option {
	case domain.Snooze20m:
		return now.Add(20 * time.Minute), nil
	case domain.Snooze1h:
		return now.Add(time.Hour), nil
	case domain.Snooze3h:
		return now.Add(3 * time.Hour), nil
	case domain.SnoozeTomorrow:
		return calendar.At(calendar.AddDays(calendar.StartOfDay(now), 1), domain.DefaultTimeOfDay), nil
	case domain.SnoozeNextMon:
		today := calendar.StartOfDay(now)
		delta := (int(time.Monday) - int(today.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return calendar.At(calendar.AddDays(today, delta), domain.DefaultTimeOfDay), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownSnooze, option)
}

func (s *Service) record(ctx context.Context, event string, userID *int64, chatID int64, meta map[string]any) {
	if s.analytics == nil {
		return
	}
	metric := domain.BusinessMetric{Event: event, UserID: userID, ChatID: &chatID, Metadata: meta, OccurredAt: s.now()}
	if err := s.analytics.RecordBusinessMetric(ctx, metric); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("reminders: не удалось записать бизнес-метрику")
	}
}

func failureReason(err error) string {
	if errors.Is(err, domain.ErrInvalidCalendarDate) {
		return "invalid_date"
	}
	return "malformed"
}
