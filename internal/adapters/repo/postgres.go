package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/metrics"
)

// querier: общее подмножество пула и транзакции.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

var (
	_ domain.ScheduleStore      = (*Postgres)(nil)
	_ domain.AliasRepo          = (*Postgres)(nil)
	_ domain.UserChatRepo       = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

const pendingPerSeriesIndex = "reminders_one_pending_per_series"

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, q: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// InTx выполняет fn в транзакции. Вложенный вызов переиспользует текущую транзакцию.
func (p *Postgres) InTx(ctx context.Context, fn func(tx domain.ScheduleStore) error) error {
	if p.inTx {
		return fn(p)
	}
	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "reminders", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&Postgres{pool: p.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "reminders", start, err)
	return err
}

const reminderColumns = `id, chat_id, text, due_at, created_by, created_at, delivered, sent_at, acknowledged, escalated, template_id`

func scanReminder(row pgx.Row) (domain.Reminder, error) {
	var (
		r          domain.Reminder
		createdBy  sql.NullInt64
		sentAt     sql.NullTime
		templateID sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.ChatID, &r.Text, &r.DueAt, &createdBy, &r.CreatedAt, &r.Delivered, &sentAt, &r.Acknowledged, &r.Escalated, &templateID); err != nil {
		return domain.Reminder{}, err
	}
	if createdBy.Valid {
		v := createdBy.Int64
		r.CreatedBy = &v
	}
	if sentAt.Valid {
		v := sentAt.Time
		r.SentAt = &v
	}
	if templateID.Valid {
		v := templateID.Int64
		r.SeriesID = &v
	}
	return r, nil
}

func (p *Postgres) queryReminders(ctx context.Context, op, query string, args ...any) ([]domain.Reminder, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.q.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", op, "reminders", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

// CreateReminder сохраняет напоминание со всеми полями.
func (p *Postgres) CreateReminder(ctx context.Context, r domain.Reminder) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	var id int64
	start := time.Now()
	err := p.q.QueryRow(ctx, `
INSERT INTO reminders (chat_id, text, due_at, created_by, created_at, delivered, sent_at, acknowledged, escalated, template_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id
`, r.ChatID, r.Text, r.DueAt, nullInt(r.CreatedBy), r.CreatedAt, r.Delivered, nullTime(r.SentAt), r.Acknowledged, r.Escalated, nullInt(r.SeriesID)).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "reminders_insert", "reminders", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == pendingPerSeriesIndex {
			return 0, domain.ErrPendingExists
		}
		return 0, err
	}
	return id, nil
}

func (p *Postgres) GetReminder(ctx context.Context, id int64) (domain.Reminder, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id=$1`
	if p.inTx {
		query += ` FOR UPDATE`
	}
	r, err := scanReminder(p.q.QueryRow(ctx, query, id))
	metrics.ObserveNetworkRequest("postgres", "reminders_get", "reminders", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reminder{}, domain.ErrNotFound
	}
	return r, err
}

func (p *Postgres) DueReminders(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	return p.queryReminders(ctx, "reminders_due", `
SELECT `+reminderColumns+` FROM reminders
WHERE NOT delivered AND due_at <= $1
ORDER BY due_at, id
`, now)
}

func (p *Postgres) MarkDelivered(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	return p.execAffected(ctx, "reminders_mark_delivered", `
UPDATE reminders SET delivered=TRUE, sent_at=$2, acknowledged=FALSE, escalated=FALSE
WHERE id=$1 AND NOT delivered
`, id, sentAt)
}

// MarkAcknowledged подтверждает только доставленные напоминания.
func (p *Postgres) MarkAcknowledged(ctx context.Context, id int64) error {
	ok, err := p.execAffected(ctx, "reminders_mark_acknowledged", `UPDATE reminders SET acknowledged=delivered WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (p *Postgres) MarkEscalated(ctx context.Context, id int64) (bool, error) {
	return p.execAffected(ctx, "reminders_mark_escalated", `
UPDATE reminders SET escalated=TRUE WHERE id=$1 AND delivered AND NOT escalated
`, id)
}

func (p *Postgres) DeleteReminder(ctx context.Context, id int64) error {
	ok, err := p.execAffected(ctx, "reminders_delete", `DELETE FROM reminders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (p *Postgres) UnacknowledgedBefore(ctx context.Context, cutoff time.Time) ([]domain.Reminder, error) {
	return p.queryReminders(ctx, "reminders_unacknowledged", `
SELECT `+reminderColumns+` FROM reminders
WHERE delivered AND NOT acknowledged AND NOT escalated AND sent_at <= $1
ORDER BY sent_at, id
`, cutoff)
}

func (p *Postgres) PendingByChat(ctx context.Context, chatID int64, createdBy *int64) ([]domain.Reminder, error) {
	return p.queryReminders(ctx, "reminders_pending_by_chat", `
SELECT `+reminderColumns+` FROM reminders
WHERE NOT delivered AND chat_id=$1 AND ($2::BIGINT IS NULL OR created_by=$2)
ORDER BY due_at, id
`, chatID, nullInt(createdBy))
}

func (p *Postgres) PendingBySeries(ctx context.Context, templateID int64) ([]domain.Reminder, error) {
	return p.queryReminders(ctx, "reminders_pending_by_series", `
SELECT `+reminderColumns+` FROM reminders
WHERE NOT delivered AND template_id=$1
ORDER BY due_at, id
`, templateID)
}

func (p *Postgres) PurgeDelivered(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.q.Exec(ctx, `
DELETE FROM reminders
WHERE delivered AND (acknowledged OR escalated) AND sent_at < $1
`, before)
	metrics.ObserveNetworkRequest("postgres", "reminders_purge", "reminders", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) execAffected(ctx context.Context, op, query string, args ...any) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.q.Exec(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", op, "reminders", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CreateTemplate сохраняет серию.
func (p *Postgres) CreateTemplate(ctx context.Context, t domain.Template) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	payload, err := json.Marshal(t.Pattern)
	if err != nil {
		return 0, fmt.Errorf("marshal pattern: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	var id int64
	start := time.Now()
	err = p.q.QueryRow(ctx, `
INSERT INTO recurring_templates (chat_id, text, created_by, created_at, pattern_type, pattern_payload, tod_hour, tod_minute, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id
`, t.ChatID, t.Text, nullInt(t.CreatedBy), t.CreatedAt, string(t.Pattern.Type), payload, t.TimeOfDay.Hour, t.TimeOfDay.Minute, t.Active).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "templates_insert", "recurring_templates", start, err)
	return id, err
}

func (p *Postgres) GetTemplate(ctx context.Context, id int64) (domain.Template, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		t           domain.Template
		createdBy   sql.NullInt64
		patternType string
		payload     []byte
	)
	query := `
SELECT id, chat_id, text, created_by, created_at, pattern_type, pattern_payload, tod_hour, tod_minute, active
FROM recurring_templates WHERE id=$1`
	if p.inTx {
		query += ` FOR UPDATE`
	}
	start := time.Now()
	err := p.q.QueryRow(ctx, query, id).Scan(&t.ID, &t.ChatID, &t.Text, &createdBy, &t.CreatedAt, &patternType, &payload, &t.TimeOfDay.Hour, &t.TimeOfDay.Minute, &t.Active)
	metrics.ObserveNetworkRequest("postgres", "templates_get", "recurring_templates", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Template{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Template{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t.Pattern); err != nil {
			return domain.Template{}, fmt.Errorf("decode pattern: %w", err)
		}
	}
	t.Pattern.Type = domain.PatternType(patternType)
	if createdBy.Valid {
		v := createdBy.Int64
		t.CreatedBy = &v
	}
	return t, nil
}

func (p *Postgres) SetTemplateActive(ctx context.Context, id int64, active bool) error {
	ok, err := p.execAffected(ctx, "templates_set_active", `UPDATE recurring_templates SET active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteSeries деактивирует серию и удаляет её ожидающие напоминания.
func (p *Postgres) DeleteSeries(ctx context.Context, templateID int64) (int, error) {
	var removed int
	err := p.InTx(ctx, func(tx domain.ScheduleStore) error {
		if err := tx.SetTemplateActive(ctx, templateID, false); err != nil {
			return err
		}
		pg := tx.(*Postgres)
		qctx, cancel := pg.connCtx(ctx)
		defer cancel()
		start := time.Now()
		tag, err := pg.q.Exec(qctx, `DELETE FROM reminders WHERE template_id=$1 AND NOT delivered`, templateID)
		metrics.ObserveNetworkRequest("postgres", "reminders_delete_series", "reminders", start, err)
		if err != nil {
			return err
		}
		removed = int(tag.RowsAffected())
		return nil
	})
	return removed, err
}

// SetAlias создаёт или обновляет алиас чата.
func (p *Postgres) SetAlias(ctx context.Context, alias domain.ChatAlias) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.q.Exec(ctx, `
INSERT INTO chat_aliases (alias, chat_id, title, created_by, created_at)
VALUES (lower($1), $2, $3, $4, now())
ON CONFLICT (alias) DO UPDATE SET chat_id=EXCLUDED.chat_id, title=EXCLUDED.title, created_by=EXCLUDED.created_by
`, strings.TrimSpace(alias.Alias), alias.ChatID, alias.Title, alias.CreatedBy)
	metrics.ObserveNetworkRequest("postgres", "aliases_upsert", "chat_aliases", start, err)
	return err
}

func (p *Postgres) ChatByAlias(ctx context.Context, alias string) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var chatID int64
	start := time.Now()
	err := p.q.QueryRow(ctx, `SELECT chat_id FROM chat_aliases WHERE alias=lower($1)`, strings.TrimSpace(alias)).Scan(&chatID)
	metrics.ObserveNetworkRequest("postgres", "aliases_get", "chat_aliases", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return chatID, err
}

func (p *Postgres) ListAliases(ctx context.Context) ([]domain.ChatAlias, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.q.Query(ctx, `SELECT alias, chat_id, title, created_by, created_at FROM chat_aliases ORDER BY alias`)
	metrics.ObserveNetworkRequest("postgres", "aliases_list", "chat_aliases", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.ChatAlias
	for rows.Next() {
		var a domain.ChatAlias
		if err := rows.Scan(&a.Alias, &a.ChatID, &a.Title, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// UpsertUserChat запоминает личный чат пользователя.
func (p *Postgres) UpsertUserChat(ctx context.Context, uc domain.UserChat) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.q.Exec(ctx, `
INSERT INTO user_chats (user_id, chat_id, username, first_name, last_name, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (user_id) DO UPDATE SET chat_id=EXCLUDED.chat_id, username=EXCLUDED.username,
    first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name, updated_at=now()
`, uc.UserID, uc.ChatID, strings.TrimSpace(uc.Username), strings.TrimSpace(uc.FirstName), strings.TrimSpace(uc.LastName))
	metrics.ObserveNetworkRequest("postgres", "user_chats_upsert", "user_chats", start, err)
	return err
}

func (p *Postgres) PrivateChatByUsername(ctx context.Context, username string) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	name := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if name == "" {
		return 0, domain.ErrNotFound
	}
	var chatID int64
	start := time.Now()
	err := p.q.QueryRow(ctx, `
SELECT chat_id FROM user_chats WHERE lower(username)=lower($1) ORDER BY updated_at DESC LIMIT 1
`, name).Scan(&chatID)
	metrics.ObserveNetworkRequest("postgres", "user_chats_get", "user_chats", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return chatID, err
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.q.Exec(ctx, `
INSERT INTO business_metrics (event, user_id, chat_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, metric.Event, nullInt(metric.UserID), nullInt(metric.ChatID), payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}
