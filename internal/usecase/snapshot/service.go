// Package snapshot удаляет напоминания и серии, сохраняя всё, что нужно для отмены.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/usecase/recurrence"
)

// Service выполняет удаление и восстановление поверх транзакционного хранилища.
type Service struct {
	store domain.ScheduleStore
	loc   *time.Location
	now   func() time.Time
}

// NewService создаёт сервис. loc задаёт зону, в которой считаются вхождения серий.
func NewService(store domain.ScheduleStore, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// WithClock подменяет источник времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SingleDelete удаляет одно напоминание. Если это было ожидающее вхождение
// активной серии, сразу создаётся следующее, чтобы серия не прерывалась.
func (s *Service) SingleDelete(ctx context.Context, id int64) (domain.Snapshot, error) {
	now := s.now()
	var snap domain.Snapshot
	err := s.store.InTx(ctx, func(tx domain.ScheduleStore) error {
		r, err := tx.GetReminder(ctx, id)
		if err != nil {
			return err
		}
		snap = domain.Snapshot{Kind: domain.SnapshotSingle, Reminder: &r, TakenAt: now}

		var tpl *domain.Template
		if r.SeriesID != nil {
			t, err := tx.GetTemplate(ctx, *r.SeriesID)
			switch {
			case err == nil:
				tpl = &t
				snap.Template = &t
			case !errors.Is(err, domain.ErrNotFound):
				return fmt.Errorf("чтение серии: %w", err)
			}
		}

		if err := tx.DeleteReminder(ctx, id); err != nil {
			return err
		}
		if tpl == nil || !tpl.Active || !r.Pending() {
			return nil
		}
		pending, err := tx.PendingBySeries(ctx, tpl.ID)
		if err != nil {
			return fmt.Errorf("ожидающие вхождения серии: %w", err)
		}
		if len(pending) > 0 {
			return nil
		}
		after := r.DueAt
		if now.After(after) {
			after = now
		}
		next, ok := recurrence.Next(tpl.Pattern, tpl.TimeOfDay, after.In(s.loc))
		if !ok {
			return nil
		}
		replacementID, err := tx.CreateReminder(ctx, domain.Reminder{
			ChatID:    tpl.ChatID,
			Text:      tpl.Text,
			DueAt:     next,
			CreatedBy: tpl.CreatedBy,
			CreatedAt: now,
			SeriesID:  &tpl.ID,
		})
		if err != nil {
			return fmt.Errorf("создание следующего вхождения: %w", err)
		}
		snap.ReplacementID = &replacementID
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// SeriesDelete останавливает серию и удаляет её ожидающие напоминания.
func (s *Service) SeriesDelete(ctx context.Context, templateID int64) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.store.InTx(ctx, func(tx domain.ScheduleStore) error {
		tpl, err := tx.GetTemplate(ctx, templateID)
		if err != nil {
			return err
		}
		pending, err := tx.PendingBySeries(ctx, templateID)
		if err != nil {
			return fmt.Errorf("ожидающие вхождения серии: %w", err)
		}
		if _, err := tx.DeleteSeries(ctx, templateID); err != nil {
			return err
		}
		snap = domain.Snapshot{Kind: domain.SnapshotSeries, Template: &tpl, Reminders: pending, TakenAt: s.now()}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// Restore применяет снимок и возвращает идентификаторы восстановленных напоминаний.
func (s *Service) Restore(ctx context.Context, snap domain.Snapshot) ([]int64, error) {
	var ids []int64
	err := s.store.InTx(ctx, func(tx domain.ScheduleStore) error {
		var err error
		switch snap.Kind {
		case domain.SnapshotSingle:
			ids, err = restoreSingle(ctx, tx, snap)
		case domain.SnapshotSeries:
			ids, err = restoreSeries(ctx, tx, snap)
		default:
			err = fmt.Errorf("неизвестный вид снимка %q", snap.Kind)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func restoreSingle(ctx context.Context, tx domain.ScheduleStore, snap domain.Snapshot) ([]int64, error) {
	if snap.Reminder == nil {
		return nil, errors.New("в снимке нет напоминания")
	}
	r := *snap.Reminder
	if snap.Template != nil {
		seriesID, err := ensureTemplate(ctx, tx, *snap.Template)
		if err != nil {
			return nil, err
		}
		r.SeriesID = &seriesID
	}
	if snap.ReplacementID != nil {
		if err := tx.DeleteReminder(ctx, *snap.ReplacementID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("удаление замены: %w", err)
		}
	}
	// Ожидающее вхождение серии может быть только одно.
	if r.Pending() && r.SeriesID != nil {
		if err := dropPending(ctx, tx, *r.SeriesID); err != nil {
			return nil, err
		}
	}
	id, err := tx.CreateReminder(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("восстановление напоминания: %w", err)
	}
	return []int64{id}, nil
}

func restoreSeries(ctx context.Context, tx domain.ScheduleStore, snap domain.Snapshot) ([]int64, error) {
	if snap.Template == nil {
		return nil, errors.New("в снимке нет серии")
	}
	seriesID, err := ensureTemplate(ctx, tx, *snap.Template)
	if err != nil {
		return nil, err
	}
	if err := dropPending(ctx, tx, seriesID); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(snap.Reminders))
	for _, r := range snap.Reminders {
		r.SeriesID = &seriesID
		id, err := tx.CreateReminder(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("восстановление напоминания серии: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ensureTemplate включает серию; если запись исчезла, создаёт её заново.
func ensureTemplate(ctx context.Context, tx domain.ScheduleStore, tpl domain.Template) (int64, error) {
	current, err := tx.GetTemplate(ctx, tpl.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		tpl.Active = true
		id, err := tx.CreateTemplate(ctx, tpl)
		if err != nil {
			return 0, fmt.Errorf("восстановление серии: %w", err)
		}
		return id, nil
	case err != nil:
		return 0, fmt.Errorf("чтение серии: %w", err)
	}
	if !current.Active {
		if err := tx.SetTemplateActive(ctx, current.ID, true); err != nil {
			return 0, fmt.Errorf("включение серии: %w", err)
		}
	}
	return current.ID, nil
}

func dropPending(ctx context.Context, tx domain.ScheduleStore, seriesID int64) error {
	pending, err := tx.PendingBySeries(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("ожидающие вхождения серии: %w", err)
	}
	for _, p := range pending {
		if err := tx.DeleteReminder(ctx, p.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("удаление вхождения %d: %w", p.ID, err)
		}
	}
	return nil
}
