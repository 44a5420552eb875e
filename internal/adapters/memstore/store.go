// Package memstore хранит расписание в памяти процесса. Используется в тестах
// и для локального запуска без Postgres.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tg-remind-bot/internal/domain"
)

type state struct {
	nextReminderID int64
	nextTemplateID int64
	reminders      map[int64]domain.Reminder
	templates      map[int64]domain.Template
	aliases        map[string]domain.ChatAlias
	userChats      map[int64]domain.UserChat
	metrics        []domain.BusinessMetric
}

func (s *state) clone() *state {
	c := *s
	c.reminders = make(map[int64]domain.Reminder, len(s.reminders))
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	c.templates = make(map[int64]domain.Template, len(s.templates))
	for k, v := range s.templates {
		c.templates[k] = v
	}
	c.aliases = make(map[string]domain.ChatAlias, len(s.aliases))
	for k, v := range s.aliases {
		c.aliases[k] = v
	}
	c.userChats = make(map[int64]domain.UserChat, len(s.userChats))
	for k, v := range s.userChats {
		c.userChats[k] = v
	}
	c.metrics = append([]domain.BusinessMetric(nil), s.metrics...)
	return &c
}

// Store: потокобезопасное in-memory хранилище.
type Store struct {
	mu   *sync.Mutex
	st   **state
	inTx bool
	now  func() time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	st := &state{
		reminders: make(map[int64]domain.Reminder),
		templates: make(map[int64]domain.Template),
		aliases:   make(map[string]domain.ChatAlias),
		userChats: make(map[int64]domain.UserChat),
	}
	return &Store{mu: &sync.Mutex{}, st: &st, now: time.Now}
}

// do выполняет fn под блокировкой; внутри транзакции блокировка уже взята.
func (s *Store) do(fn func(st *state) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(*s.st)
}

// InTx выполняет fn атомарно. При ошибке состояние откатывается к снимку.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.ScheduleStore) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	backup := (*s.st).clone()
	tx := &Store{mu: s.mu, st: s.st, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.st = backup
		return err
	}
	return nil
}

func (s *Store) CreateReminder(ctx context.Context, r domain.Reminder) (int64, error) {
	var id int64
	err := s.do(func(st *state) error {
		if r.SeriesID != nil && !r.Delivered {
			for _, existing := range st.reminders {
				if existing.SeriesID != nil && *existing.SeriesID == *r.SeriesID && existing.Pending() {
					return domain.ErrPendingExists
				}
			}
		}
		st.nextReminderID++
		id = st.nextReminderID
		r.ID = id
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now()
		}
		st.reminders[id] = r
		return nil
	})
	return id, err
}

func (s *Store) GetReminder(ctx context.Context, id int64) (domain.Reminder, error) {
	var r domain.Reminder
	err := s.do(func(st *state) error {
		found, ok := st.reminders[id]
		if !ok {
			return domain.ErrNotFound
		}
		r = found
		return nil
	})
	return r, err
}

func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	return s.filter(func(r domain.Reminder) bool {
		return r.Pending() && !r.DueAt.After(now)
	}), nil
}

func (s *Store) MarkDelivered(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	var updated bool
	err := s.do(func(st *state) error {
		r, ok := st.reminders[id]
		if !ok || r.Delivered {
			return nil
		}
		r.Delivered = true
		r.SentAt = &sentAt
		r.Acknowledged = false
		r.Escalated = false
		st.reminders[id] = r
		updated = true
		return nil
	})
	return updated, err
}

func (s *Store) MarkAcknowledged(ctx context.Context, id int64) error {
	return s.do(func(st *state) error {
		r, ok := st.reminders[id]
		if !ok {
			return domain.ErrNotFound
		}
		r.Acknowledged = r.Delivered
		st.reminders[id] = r
		return nil
	})
}

func (s *Store) MarkEscalated(ctx context.Context, id int64) (bool, error) {
	var updated bool
	err := s.do(func(st *state) error {
		r, ok := st.reminders[id]
		if !ok || !r.Delivered || r.Escalated {
			return nil
		}
		r.Escalated = true
		st.reminders[id] = r
		updated = true
		return nil
	})
	return updated, err
}

func (s *Store) DeleteReminder(ctx context.Context, id int64) error {
	return s.do(func(st *state) error {
		if _, ok := st.reminders[id]; !ok {
			return domain.ErrNotFound
		}
		delete(st.reminders, id)
		return nil
	})
}

func (s *Store) UnacknowledgedBefore(ctx context.Context, cutoff time.Time) ([]domain.Reminder, error) {
	list := s.filter(func(r domain.Reminder) bool {
		return r.Delivered && !r.Acknowledged && !r.Escalated && r.SentAt != nil && !r.SentAt.After(cutoff)
	})
	sort.SliceStable(list, func(i, j int) bool { return list[i].SentAt.Before(*list[j].SentAt) })
	return list, nil
}

func (s *Store) PendingByChat(ctx context.Context, chatID int64, createdBy *int64) ([]domain.Reminder, error) {
	return s.filter(func(r domain.Reminder) bool {
		if !r.Pending() || r.ChatID != chatID {
			return false
		}
		return createdBy == nil || (r.CreatedBy != nil && *r.CreatedBy == *createdBy)
	}), nil
}

func (s *Store) PendingBySeries(ctx context.Context, templateID int64) ([]domain.Reminder, error) {
	return s.filter(func(r domain.Reminder) bool {
		return r.Pending() && r.SeriesID != nil && *r.SeriesID == templateID
	}), nil
}

func (s *Store) PurgeDelivered(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := s.do(func(st *state) error {
		for id, r := range st.reminders {
			if r.Delivered && (r.Acknowledged || r.Escalated) && r.SentAt != nil && r.SentAt.Before(before) {
				delete(st.reminders, id)
				purged++
			}
		}
		return nil
	})
	return purged, err
}

func (s *Store) CreateTemplate(ctx context.Context, t domain.Template) (int64, error) {
	var id int64
	err := s.do(func(st *state) error {
		st.nextTemplateID++
		id = st.nextTemplateID
		t.ID = id
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now()
		}
		t.Pattern.Weekdays = append([]time.Weekday(nil), t.Pattern.Weekdays...)
		st.templates[id] = t
		return nil
	})
	return id, err
}

func (s *Store) GetTemplate(ctx context.Context, id int64) (domain.Template, error) {
	var t domain.Template
	err := s.do(func(st *state) error {
		found, ok := st.templates[id]
		if !ok {
			return domain.ErrNotFound
		}
		t = found
		return nil
	})
	return t, err
}

func (s *Store) SetTemplateActive(ctx context.Context, id int64, active bool) error {
	return s.do(func(st *state) error {
		t, ok := st.templates[id]
		if !ok {
			return domain.ErrNotFound
		}
		t.Active = active
		st.templates[id] = t
		return nil
	})
}

func (s *Store) DeleteSeries(ctx context.Context, templateID int64) (int, error) {
	var removed int
	err := s.do(func(st *state) error {
		t, ok := st.templates[templateID]
		if !ok {
			return domain.ErrNotFound
		}
		t.Active = false
		st.templates[templateID] = t
		for id, r := range st.reminders {
			if r.Pending() && r.SeriesID != nil && *r.SeriesID == templateID {
				delete(st.reminders, id)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (s *Store) SetAlias(ctx context.Context, alias domain.ChatAlias) error {
	return s.do(func(st *state) error {
		key := strings.ToLower(alias.Alias)
		if alias.CreatedAt.IsZero() {
			alias.CreatedAt = s.now()
		}
		alias.Alias = key
		st.aliases[key] = alias
		return nil
	})
}

func (s *Store) ChatByAlias(ctx context.Context, alias string) (int64, error) {
	var chatID int64
	err := s.do(func(st *state) error {
		a, ok := st.aliases[strings.ToLower(alias)]
		if !ok {
			return domain.ErrNotFound
		}
		chatID = a.ChatID
		return nil
	})
	return chatID, err
}

func (s *Store) ListAliases(ctx context.Context) ([]domain.ChatAlias, error) {
	var list []domain.ChatAlias
	_ = s.do(func(st *state) error {
		for _, a := range st.aliases {
			list = append(list, a)
		}
		return nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].Alias < list[j].Alias })
	return list, nil
}

func (s *Store) UpsertUserChat(ctx context.Context, uc domain.UserChat) error {
	return s.do(func(st *state) error {
		uc.UpdatedAt = s.now()
		st.userChats[uc.UserID] = uc
		return nil
	})
}

func (s *Store) PrivateChatByUsername(ctx context.Context, username string) (int64, error) {
	var chatID int64
	err := s.do(func(st *state) error {
		name := strings.ToLower(strings.TrimPrefix(username, "@"))
		for _, uc := range st.userChats {
			if strings.ToLower(uc.Username) == name && name != "" {
				chatID = uc.ChatID
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return chatID, err
}

func (s *Store) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	return s.do(func(st *state) error {
		if metric.OccurredAt.IsZero() {
			metric.OccurredAt = s.now()
		}
		st.metrics = append(st.metrics, metric)
		return nil
	})
}

// BusinessMetrics возвращает записанные события.
func (s *Store) BusinessMetrics() []domain.BusinessMetric {
	var out []domain.BusinessMetric
	_ = s.do(func(st *state) error {
		out = append(out, st.metrics...)
		return nil
	})
	return out
}

// filter возвращает копии подходящих напоминаний по возрастанию due_at.
func (s *Store) filter(match func(domain.Reminder) bool) []domain.Reminder {
	var out []domain.Reminder
	_ = s.do(func(st *state) error {
		for _, r := range st.reminders {
			if match(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueAt.Before(out[j].DueAt)
	})
	return out
}

var (
	_ domain.ScheduleStore      = (*Store)(nil)
	_ domain.AliasRepo          = (*Store)(nil)
	_ domain.UserChatRepo       = (*Store)(nil)
	_ domain.BusinessMetricRepo = (*Store)(nil)
)
