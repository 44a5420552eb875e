package domain

import "time"

// SnapshotKind различает удаление одного напоминания и всей серии.
type SnapshotKind string

const (
	SnapshotSingle SnapshotKind = "single"
	SnapshotSeries SnapshotKind = "series"
)

// Snapshot хранит всё необходимое, чтобы отменить удаление.
type Snapshot struct {
	Kind SnapshotKind `json:"kind"`
	// Reminder: удалённое напоминание для single.
	Reminder *Reminder `json:"reminder,omitempty"`
	// Template: серия, к которой относилось напоминание, или удалённая серия.
	Template *Template `json:"template,omitempty"`
	// ReplacementID: следующее вхождение, созданное взамен удалённого.
	ReplacementID *int64 `json:"replacement_id,omitempty"`
	// Reminders: ожидающие напоминания серии на момент удаления.
	Reminders []Reminder `json:"reminders,omitempty"`
	TakenAt   time.Time  `json:"taken_at"`
}
