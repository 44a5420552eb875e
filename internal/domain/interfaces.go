package domain

import (
	"context"
	"time"
)

// ReminderRepo управляет отдельными напоминаниями.
type ReminderRepo interface {
	CreateReminder(ctx context.Context, r Reminder) (int64, error)
	GetReminder(ctx context.Context, id int64) (Reminder, error)
	// DueReminders возвращает недоставленные напоминания с due_at <= now по возрастанию due_at.
	DueReminders(ctx context.Context, now time.Time) ([]Reminder, error)
	// MarkDelivered возвращает false, если напоминание уже доставлено или удалено.
	MarkDelivered(ctx context.Context, id int64, sentAt time.Time) (bool, error)
	MarkAcknowledged(ctx context.Context, id int64) error
	// MarkEscalated возвращает false, если напоминание уже эскалировано.
	MarkEscalated(ctx context.Context, id int64) (bool, error)
	DeleteReminder(ctx context.Context, id int64) error
	// UnacknowledgedBefore: доставленные, без реакции и без эскалации, sent_at <= cutoff.
	UnacknowledgedBefore(ctx context.Context, cutoff time.Time) ([]Reminder, error)
	// PendingByChat возвращает ожидающие напоминания чата, опционально только созданные пользователем.
	PendingByChat(ctx context.Context, chatID int64, createdBy *int64) ([]Reminder, error)
	PendingBySeries(ctx context.Context, templateID int64) ([]Reminder, error)
	// PurgeDelivered удаляет обработанные напоминания старше before.
	PurgeDelivered(ctx context.Context, before time.Time) (int64, error)
}

// TemplateRepo управляет повторяющимися сериями.
type TemplateRepo interface {
	CreateTemplate(ctx context.Context, t Template) (int64, error)
	GetTemplate(ctx context.Context, id int64) (Template, error)
	SetTemplateActive(ctx context.Context, id int64, active bool) error
	// DeleteSeries деактивирует серию и удаляет её ожидающие напоминания.
	DeleteSeries(ctx context.Context, templateID int64) (int, error)
}

// ScheduleStore объединяет репозитории и даёт атомарные блоки операций.
type ScheduleStore interface {
	ReminderRepo
	TemplateRepo
	// InTx выполняет fn атомарно; ошибка из fn откатывает все изменения.
	InTx(ctx context.Context, fn func(tx ScheduleStore) error) error
}

// UndoStore хранит снимки удалений под одноразовыми токенами.
type UndoStore interface {
	Save(ctx context.Context, owner int64, token string, snap Snapshot, ttl time.Duration) error
	// Take атомарно забирает снимок; повторный вызов возвращает ErrAlreadyConsumed.
	Take(ctx context.Context, owner int64, token string) (Snapshot, error)
}

// Transport доставляет сообщения в чат.
type Transport interface {
	Send(ctx context.Context, msg OutgoingMessage) error
}

// AliasRepo хранит алиасы чатов.
type AliasRepo interface {
	SetAlias(ctx context.Context, alias ChatAlias) error
	ChatByAlias(ctx context.Context, alias string) (int64, error)
	ListAliases(ctx context.Context) ([]ChatAlias, error)
}

// UserChatRepo хранит личные чаты пользователей.
type UserChatRepo interface {
	UpsertUserChat(ctx context.Context, uc UserChat) error
	PrivateChatByUsername(ctx context.Context, username string) (int64, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}
