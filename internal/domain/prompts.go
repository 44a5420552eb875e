package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Действия, которые приходят из inline-кнопок.
const (
	ActionDone         = "done"
	ActionSnoozePage   = "snooze_page"
	ActionSnooze       = "snooze"
	ActionDelete       = "del"
	ActionDeleteSeries = "delseries"
	ActionUndo         = "undo"
)

// Варианты отложенного напоминания.
const (
	Snooze20m      = "20m"
	Snooze1h       = "1h"
	Snooze3h       = "3h"
	SnoozeTomorrow = "tomorrow"
	SnoozeNextMon  = "nextmon"
)

// Prompt: кнопка действия, которую транспорт прикладывает к сообщению.
type Prompt struct {
	Label string
	Data  string
}

// OutgoingMessage: сообщение для транспорта.
type OutgoingMessage struct {
	ChatID int64
	Text   string
	// Rows: строки кнопок; пустое значение означает сообщение без кнопок.
	Rows [][]Prompt
}

// Callback: разобранные данные нажатой кнопки.
type Callback struct {
	Action string
	ID     int64
	Arg    string
}

// CallbackData кодирует действие и идентификатор.
func CallbackData(action string, id int64, arg ...string) string {
	data := fmt.Sprintf("%s:%d", action, id)
	if len(arg) > 0 && arg[0] != "" {
		data += ":" + arg[0]
	}
	return data
}

// UndoData кодирует токен отмены.
func UndoData(token string) string {
	return ActionUndo + ":" + token
}

// ParseCallback разбирает данные кнопки.
func ParseCallback(data string) (Callback, bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Callback{}, false
	}
	cb := Callback{Action: parts[0]}
	if cb.Action == ActionUndo {
		cb.Arg = parts[1]
		if len(parts) == 3 {
			cb.Arg += ":" + parts[2]
		}
		return cb, true
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return Callback{}, false
	}
	cb.ID = id
	if len(parts) == 3 {
		cb.Arg = parts[2]
	}
	return cb, true
}

// ReminderPrompts возвращает кнопки под доставленным напоминанием.
func ReminderPrompts(reminderID int64) [][]Prompt {
	return [][]Prompt{
		{
			{Label: "✅ Готово", Data: CallbackData(ActionDone, reminderID)},
			{Label: "⏰ Отложить", Data: CallbackData(ActionSnoozePage, reminderID)},
			{Label: "🗑 Удалить", Data: CallbackData(ActionDelete, reminderID)},
		},
	}
}

// SnoozePrompts возвращает страницу выбора времени откладывания.
func SnoozePrompts(reminderID int64) [][]Prompt {
	return [][]Prompt{
		{
			{Label: "20 мин", Data: CallbackData(ActionSnooze, reminderID, Snooze20m)},
			{Label: "1 час", Data: CallbackData(ActionSnooze, reminderID, Snooze1h)},
			{Label: "3 часа", Data: CallbackData(ActionSnooze, reminderID, Snooze3h)},
		},
		{
			{Label: "Завтра 11:00", Data: CallbackData(ActionSnooze, reminderID, SnoozeTomorrow)},
			{Label: "Пн 11:00", Data: CallbackData(ActionSnooze, reminderID, SnoozeNextMon)},
		},
	}
}
