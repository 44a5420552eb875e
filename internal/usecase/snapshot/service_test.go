package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"tg-remind-bot/internal/adapters/memstore"
	"tg-remind-bot/internal/domain"
)

func newSeries(t *testing.T, store *memstore.Store, due time.Time) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	author := int64(7)
	tplID, err := store.CreateTemplate(ctx, domain.Template{
		ChatID: 1, Text: "standup", CreatedBy: &author,
		Pattern: domain.Daily(), TimeOfDay: domain.TimeOfDay{Hour: 10}, Active: true,
	})
	if err != nil {
		t.Fatalf("создание серии: %v", err)
	}
	id, err := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "standup", DueAt: due, CreatedBy: &author, SeriesID: &tplID})
	if err != nil {
		t.Fatalf("создание вхождения: %v", err)
	}
	return tplID, id
}

func TestSingleDeleteOfSeriesOccurrenceAndRestore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC)
	store := memstore.New()
	tplID, id := newSeries(t, store, time.Date(2025, 11, 28, 10, 0, 0, 0, time.UTC))
	svc := NewService(store, time.UTC).WithClock(func() time.Time { return now })

	snap, err := svc.SingleDelete(ctx, id)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if snap.ReplacementID == nil {
		t.Fatalf("ожидали созданную замену")
	}
	pending, _ := store.PendingBySeries(ctx, tplID)
	if len(pending) != 1 || pending[0].ID != *snap.ReplacementID {
		t.Fatalf("ожидали ровно одно новое вхождение, получили %+v", pending)
	}
	if want := time.Date(2025, 11, 29, 10, 0, 0, 0, time.UTC); !pending[0].DueAt.Equal(want) {
		t.Fatalf("замена должна прийтись на %v, получили %v", want, pending[0].DueAt)
	}
	tpl, _ := store.GetTemplate(ctx, tplID)
	if !tpl.Active {
		t.Fatalf("удаление одного вхождения не должно выключать серию")
	}

	restored, err := svc.Restore(ctx, snap)
	if err != nil {
		t.Fatalf("восстановление: %v", err)
	}
	pending, _ = store.PendingBySeries(ctx, tplID)
	if len(pending) != 1 {
		t.Fatalf("после восстановления ожидали одно вхождение, получили %d", len(pending))
	}
	if pending[0].ID != restored[0] || !pending[0].DueAt.Equal(snap.Reminder.DueAt) {
		t.Fatalf("ожидали исходное вхождение, получили %+v", pending[0])
	}
	if _, err := store.GetReminder(ctx, *snap.ReplacementID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("замена должна быть удалена, получили %v", err)
	}
}

func TestRestoreSingleAfterReplacementRegenerated(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 11, 28, 9, 0, 0, 0, time.UTC)
	store := memstore.New()
	tplID, id := newSeries(t, store, time.Date(2025, 11, 28, 10, 0, 0, 0, time.UTC))
	svc := NewService(store, time.UTC).WithClock(func() time.Time { return now })

	snap, err := svc.SingleDelete(ctx, id)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Замена доставлена, и уже создано следующее вхождение.
	_, _ = store.MarkDelivered(ctx, *snap.ReplacementID, now)
	_, _ = store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "standup", DueAt: now.Add(48 * time.Hour), SeriesID: &tplID})

	if _, err := svc.Restore(ctx, snap); err != nil {
		t.Fatalf("восстановление: %v", err)
	}
	pending, _ := store.PendingBySeries(ctx, tplID)
	if len(pending) != 1 || !pending[0].DueAt.Equal(snap.Reminder.DueAt) {
		t.Fatalf("ожидали одно исходное вхождение, получили %+v", pending)
	}
}

func TestSingleDeleteOneOff(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	id, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "once", DueAt: time.Now().Add(time.Hour)})
	svc := NewService(store, time.UTC)

	snap, err := svc.SingleDelete(ctx, id)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if snap.ReplacementID != nil || snap.Template != nil {
		t.Fatalf("у разового напоминания нет серии: %+v", snap)
	}
	if _, err := svc.SingleDelete(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("повторное удаление должно вернуть ErrNotFound, получили %v", err)
	}
	ids, err := svc.Restore(ctx, snap)
	if err != nil || len(ids) != 1 {
		t.Fatalf("восстановление: %v (%v)", ids, err)
	}
	r, _ := store.GetReminder(ctx, ids[0])
	if r.Text != "once" || !r.DueAt.Equal(snap.Reminder.DueAt) {
		t.Fatalf("восстановлено не то напоминание: %+v", r)
	}
}

func TestSingleDeleteOfInactiveSeriesCreatesNothing(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tplID, id := newSeries(t, store, time.Now().Add(time.Hour))
	_ = store.SetTemplateActive(ctx, tplID, false)

	snap, err := NewService(store, time.UTC).SingleDelete(ctx, id)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if snap.ReplacementID != nil {
		t.Fatalf("остановленная серия не должна порождать вхождения")
	}
	tpl, _ := store.GetTemplate(ctx, tplID)
	if tpl.Active {
		t.Fatalf("флаг active не должен меняться")
	}
}

func TestSeriesDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	due := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	tplID, _ := newSeries(t, store, due)
	svc := NewService(store, time.UTC)

	snap, err := svc.SeriesDelete(ctx, tplID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(snap.Reminders) != 1 {
		t.Fatalf("ожидали одно напоминание в снимке, получили %d", len(snap.Reminders))
	}
	pending, _ := store.PendingBySeries(ctx, tplID)
	tpl, _ := store.GetTemplate(ctx, tplID)
	if len(pending) != 0 || tpl.Active {
		t.Fatalf("серия должна быть остановлена и очищена")
	}

	if _, err := svc.Restore(ctx, snap); err != nil {
		t.Fatalf("восстановление: %v", err)
	}
	pending, _ = store.PendingBySeries(ctx, tplID)
	tpl, _ = store.GetTemplate(ctx, tplID)
	if !tpl.Active {
		t.Fatalf("серия должна снова стать активной")
	}
	if len(pending) != 1 || !pending[0].DueAt.Equal(due) {
		t.Fatalf("ожидали исходное вхождение на %v, получили %+v", due, pending)
	}
}

func TestRestoreUnknownKind(t *testing.T) {
	svc := NewService(memstore.New(), time.UTC)
	if _, err := svc.Restore(context.Background(), domain.Snapshot{Kind: "other"}); err == nil {
		t.Fatalf("ожидали ошибку для неизвестного вида снимка")
	}
}
