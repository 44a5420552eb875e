package domain

import (
	"fmt"
	"time"
)

// Reminder описывает одну запланированную доставку.
type Reminder struct {
	ID           int64      `json:"id"`
	ChatID       int64      `json:"chat_id"`
	Text         string     `json:"text"`
	DueAt        time.Time  `json:"due_at"`
	CreatedBy    *int64     `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Delivered    bool       `json:"delivered"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	Acknowledged bool       `json:"acknowledged"`
	Escalated    bool       `json:"escalated"`
	SeriesID     *int64     `json:"series_id,omitempty"`
}

// Pending сообщает, ожидает ли напоминание доставки.
func (r Reminder) Pending() bool {
	return !r.Delivered
}

// OwnedBy проверяет, может ли пользователь из чата управлять напоминанием.
func (r Reminder) OwnedBy(chatID, userID int64) bool {
	if r.ChatID == chatID {
		return true
	}
	return r.CreatedBy != nil && *r.CreatedBy == userID
}

// TimeOfDay задаёт время суток для повторяющихся напоминаний.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// DefaultTimeOfDay используется, когда время не указано.
var DefaultTimeOfDay = TimeOfDay{Hour: 11}

// Valid проверяет диапазоны часов и минут.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Template описывает повторяющуюся серию напоминаний.
type Template struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Text      string    `json:"text"`
	CreatedBy *int64    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Pattern   Pattern   `json:"pattern"`
	TimeOfDay TimeOfDay `json:"time_of_day"`
	Active    bool      `json:"active"`
}

// ChatAlias связывает короткое имя с чатом.
type ChatAlias struct {
	Alias     string
	ChatID    int64
	Title     string
	CreatedBy int64
	CreatedAt time.Time
}

// UserChat хранит личный чат пользователя с ботом.
type UserChat struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
	UpdatedAt time.Time
}
