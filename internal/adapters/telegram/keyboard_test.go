package telegram

import (
	"testing"

	"tg-remind-bot/internal/domain"
)

func TestKeyboard(t *testing.T) {
	if Keyboard(nil) != nil {
		t.Fatalf("без кнопок клавиатура не нужна")
	}
	kb := Keyboard(domain.SnoozePrompts(5))
	if kb == nil || len(kb.InlineKeyboard) != 2 {
		t.Fatalf("ожидали две строки кнопок, получили %+v", kb)
	}
	first := kb.InlineKeyboard[0][0]
	if first.CallbackData == nil || *first.CallbackData != "snooze:5:20m" {
		t.Fatalf("неожиданные данные кнопки: %+v", first)
	}
}
