package housekeeping

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-remind-bot/internal/adapters/memstore"
	"tg-remind-bot/internal/domain"
)

func TestPurgeOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, time.UTC)
	store := memstore.New()

	oldID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "old", DueAt: now.AddDate(0, 0, -40)})
	_, _ = store.MarkDelivered(ctx, oldID, now.AddDate(0, 0, -40))
	_ = store.MarkAcknowledged(ctx, oldID)

	silentID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "silent", DueAt: now.AddDate(0, 0, -40)})
	_, _ = store.MarkDelivered(ctx, silentID, now.AddDate(0, 0, -40))

	recentID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "recent", DueAt: now.AddDate(0, 0, -1)})
	_, _ = store.MarkDelivered(ctx, recentID, now.AddDate(0, 0, -1))
	_ = store.MarkAcknowledged(ctx, recentID)

	p := NewPurger(store, 30*24*time.Hour, time.UTC, zerolog.Nop())
	p.now = func() time.Time { return now }

	purged, err := p.PurgeOnce(ctx)
	if err != nil || purged != 1 {
		t.Fatalf("ожидали удаление одного напоминания, получили %d (%v)", purged, err)
	}
	if _, err := store.GetReminder(ctx, silentID); err != nil {
		t.Fatalf("напоминание без реакции и эскалации должно остаться: %v", err)
	}
	if _, err := store.GetReminder(ctx, recentID); err != nil {
		t.Fatalf("свежее напоминание должно остаться: %v", err)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	p := NewPurger(memstore.New(), 0, nil, zerolog.Nop())
	if err := p.Start(context.Background(), "not a cron"); err == nil {
		t.Fatalf("ожидали ошибку для неверного расписания")
	}
}
