package domain

import (
	"context"
	"time"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	UserID     *int64
	ChatID     *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventReminderScheduled фиксирует создание разового напоминания.
	BusinessMetricEventReminderScheduled = "reminder_scheduled"
	// BusinessMetricEventSeriesScheduled фиксирует создание повторяющейся серии.
	BusinessMetricEventSeriesScheduled = "series_scheduled"
	// BusinessMetricEventReminderDelivered фиксирует успешную доставку.
	BusinessMetricEventReminderDelivered = "reminder_delivered"
	// BusinessMetricEventReminderEscalated фиксирует повторное напоминание без реакции.
	BusinessMetricEventReminderEscalated = "reminder_escalated"
	// BusinessMetricEventReminderDeleted фиксирует удаление одного напоминания.
	BusinessMetricEventReminderDeleted = "reminder_deleted"
	// BusinessMetricEventSeriesDeleted фиксирует удаление серии.
	BusinessMetricEventSeriesDeleted = "series_deleted"
	// BusinessMetricEventUndoApplied фиксирует отмену удаления.
	BusinessMetricEventUndoApplied = "undo_applied"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
