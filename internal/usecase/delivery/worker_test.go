package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-remind-bot/internal/adapters/memstore"
	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/cache"
)

type transportStub struct {
	mu     sync.Mutex
	sent   []domain.OutgoingMessage
	failOn map[int64]error
	panics bool
}

func (t *transportStub) Send(ctx context.Context, msg domain.OutgoingMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.panics {
		panic("transport exploded")
	}
	if err, ok := t.failOn[msg.ChatID]; ok {
		return err
	}
	t.sent = append(t.sent, msg)
	return nil
}

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("нет зоны Europe/Madrid: %v", err)
	}
	return loc
}

func TestDeliverOneOff(t *testing.T) {
	ctx := context.Background()
	loc := madrid(t)
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, loc)
	store := memstore.New()
	transport := &transportStub{}
	w := NewWorker(store, transport, cache.NewMemory(), store, loc, 0, zerolog.Nop())

	dueID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "now", DueAt: now.Add(-time.Minute)})
	futureID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "later", DueAt: now.Add(time.Hour)})

	n, err := w.RunOnce(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("ожидали одну доставку, получили %d (%v)", n, err)
	}
	if len(transport.sent) != 1 || transport.sent[0].Text != "🔔 now" || len(transport.sent[0].Rows) == 0 {
		t.Fatalf("неожиданные отправки: %+v", transport.sent)
	}
	r, _ := store.GetReminder(ctx, dueID)
	if !r.Delivered || r.SentAt == nil || !r.SentAt.Equal(now) {
		t.Fatalf("напоминание должно быть отмечено доставленным: %+v", r)
	}
	if future, _ := store.GetReminder(ctx, futureID); future.Delivered {
		t.Fatalf("будущее напоминание не должно отправляться")
	}

	n, _ = w.RunOnce(ctx, now)
	if n != 0 || len(transport.sent) != 1 {
		t.Fatalf("повторный проход не должен отправлять снова")
	}
	events := store.BusinessMetrics()
	if len(events) != 1 || events[0].Event != domain.BusinessMetricEventReminderDelivered {
		t.Fatalf("ожидали событие reminder_delivered, получили %+v", events)
	}
}

func TestDeliverMaterializesNextOccurrence(t *testing.T) {
	ctx := context.Background()
	loc := madrid(t)
	now := time.Date(2025, 11, 28, 10, 0, 5, 0, loc)
	store := memstore.New()
	w := NewWorker(store, &transportStub{}, cache.NewMemory(), nil, loc, 0, zerolog.Nop())

	tplID, _ := store.CreateTemplate(ctx, domain.Template{
		ChatID: 1, Text: "standup", Pattern: domain.Daily(), TimeOfDay: domain.TimeOfDay{Hour: 10}, Active: true,
	})
	_, _ = store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "standup", DueAt: time.Date(2025, 11, 28, 10, 0, 0, 0, loc), SeriesID: &tplID})

	if _, err := w.RunOnce(ctx, now); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	pending, _ := store.PendingBySeries(ctx, tplID)
	if len(pending) != 1 {
		t.Fatalf("ожидали ровно одно следующее вхождение, получили %d", len(pending))
	}
	if want := time.Date(2025, 11, 29, 10, 0, 0, 0, loc); !pending[0].DueAt.Equal(want) {
		t.Fatalf("следующее вхождение %v, ожидали %v", pending[0].DueAt, want)
	}
}

func TestDeliverInactiveSeriesStops(t *testing.T) {
	ctx := context.Background()
	loc := madrid(t)
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, loc)
	store := memstore.New()
	w := NewWorker(store, &transportStub{}, cache.NewMemory(), nil, loc, 0, zerolog.Nop())

	tplID, _ := store.CreateTemplate(ctx, domain.Template{ChatID: 1, Text: "x", Pattern: domain.Daily(), Active: false})
	_, _ = store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "x", DueAt: now, SeriesID: &tplID})
	_, _ = w.RunOnce(ctx, now)
	if pending, _ := store.PendingBySeries(ctx, tplID); len(pending) != 0 {
		t.Fatalf("остановленная серия не должна продолжаться")
	}
}

func TestDeliverStopsSeriesWithoutFutureOccurrences(t *testing.T) {
	ctx := context.Background()
	loc := madrid(t)
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, loc)
	store := memstore.New()
	w := NewWorker(store, &transportStub{}, cache.NewMemory(), nil, loc, 0, zerolog.Nop())

	tplID, _ := store.CreateTemplate(ctx, domain.Template{ChatID: 1, Text: "x", Pattern: domain.Yearly(time.February, 30), Active: true})
	_, _ = store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "x", DueAt: now, SeriesID: &tplID})
	if n, err := w.RunOnce(ctx, now); err != nil || n != 1 {
		t.Fatalf("доставка должна пройти, получили %d (%v)", n, err)
	}
	tpl, _ := store.GetTemplate(ctx, tplID)
	if tpl.Active {
		t.Fatalf("серия без будущих вхождений должна быть остановлена")
	}
}

func TestDeliverFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	loc := madrid(t)
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, loc)
	store := memstore.New()
	transport := &transportStub{failOn: map[int64]error{1: errors.New("chat not found")}}
	w := NewWorker(store, transport, cache.NewMemory(), nil, loc, 0, zerolog.Nop())

	failedID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "a", DueAt: now.Add(-2 * time.Minute)})
	_, _ = store.CreateReminder(ctx, domain.Reminder{ChatID: 2, Text: "b", DueAt: now.Add(-time.Minute)})

	n, err := w.RunOnce(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("ожидали одну успешную доставку, получили %d (%v)", n, err)
	}
	if r, _ := store.GetReminder(ctx, failedID); r.Delivered {
		t.Fatalf("неудачная доставка не должна отмечаться")
	}

	delete(transport.failOn, 1)
	n, _ = w.RunOnce(ctx, now.Add(10*time.Second))
	if n != 1 {
		t.Fatalf("неудачное напоминание должно уйти на следующем проходе, доставлено %d", n)
	}
}

func TestDeliverRecoversFromPanic(t *testing.T) {
	ctx := context.Background()
	loc := madrid(t)
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, loc)
	store := memstore.New()
	w := NewWorker(store, &transportStub{panics: true}, cache.NewMemory(), nil, loc, 0, zerolog.Nop())
	_, _ = store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "a", DueAt: now})

	n, err := w.RunOnce(ctx, now)
	if err != nil || n != 0 {
		t.Fatalf("паника должна перехватываться внутри прохода: %d (%v)", n, err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(memstore.New(), &transportStub{}, cache.NewMemory(), nil, time.UTC, time.Millisecond, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("цикл должен завершаться после отмены контекста")
	}
}

func TestEscalateOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 11, 28, 10, 0, 0, 0, time.UTC)
	store := memstore.New()
	transport := &transportStub{}
	e := NewEscalator(store, transport, cache.NewMemory(), store, 20*time.Minute, 0, zerolog.Nop())

	oldID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "old", DueAt: now.Add(-time.Hour)})
	_, _ = store.MarkDelivered(ctx, oldID, now.Add(-30*time.Minute))
	freshID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "fresh", DueAt: now.Add(-time.Hour)})
	_, _ = store.MarkDelivered(ctx, freshID, now.Add(-5*time.Minute))
	ackedID, _ := store.CreateReminder(ctx, domain.Reminder{ChatID: 1, Text: "acked", DueAt: now.Add(-time.Hour)})
	_, _ = store.MarkDelivered(ctx, ackedID, now.Add(-30*time.Minute))
	_ = store.MarkAcknowledged(ctx, ackedID)

	n, err := e.RunOnce(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("ожидали один повтор, получили %d (%v)", n, err)
	}
	if len(transport.sent) != 1 || transport.sent[0].Text != "⏰ Напоминание без ответа: old" {
		t.Fatalf("неожиданные отправки: %+v", transport.sent)
	}
	if r, _ := store.GetReminder(ctx, oldID); !r.Escalated {
		t.Fatalf("напоминание должно быть отмечено эскалированным")
	}
	if n, _ := e.RunOnce(ctx, now.Add(time.Hour)); n != 1 {
		t.Fatalf("через час эскалируется только свежее, получили %d", n)
	}
	if len(transport.sent) != 2 {
		t.Fatalf("каждое напоминание эскалируется не больше одного раза: %+v", transport.sent)
	}
}
