package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/metrics"
)

// Общий лимит Bot API, около 30 сообщений в секунду.
const defaultRPS = 25

// NewBotAPI создаёт клиента Bot API с ограничением времени на запрос.
func NewBotAPI(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
}

// Sender реализует domain.Transport поверх Bot API.
type Sender struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewSender создаёт отправителя с ограничением rps сообщений в секунду.
func NewSender(bot *tgbotapi.BotAPI, rps float64) *Sender {
	if rps <= 0 {
		rps = defaultRPS
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Sender{bot: bot, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Send отправляет сообщение; длинный текст делится на части, кнопки прикладываются к первой.
func (s *Sender) Send(ctx context.Context, out domain.OutgoingMessage) error {
	parts := SplitMessage(out.Text)
	if len(parts) == 0 {
		return fmt.Errorf("пустое сообщение для чата %d", out.ChatID)
	}
	for i, part := range parts {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(out.ChatID, part)
		if i == 0 {
			if kb := Keyboard(out.Rows); kb != nil {
				msg.ReplyMarkup = kb
			}
		}
		start := time.Now()
		_, err := s.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(out.ChatID, 10), start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// AnswerCallback закрывает "часики" на кнопке и показывает короткое уведомление.
func (s *Sender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	start := time.Now()
	_, err := s.bot.Request(tgbotapi.NewCallback(callbackID, text))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", "callback", start, err)
	return err
}

// EditPrompts заменяет кнопки под уже отправленным сообщением.
func (s *Sender) EditPrompts(ctx context.Context, chatID int64, messageID int, rows [][]domain.Prompt) error {
	kb := Keyboard(rows)
	if kb == nil {
		kb = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, *kb))
	metrics.ObserveNetworkRequest("telegram_bot", "edit_markup", strconv.FormatInt(chatID, 10), start, err)
	return err
}

// Keyboard превращает строки кнопок в inline-клавиатуру; пустой ввод даёт nil.
func Keyboard(rows [][]domain.Prompt) *tgbotapi.InlineKeyboardMarkup {
	var out [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, p := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(p.Label, p.Data))
		}
		if len(buttons) > 0 {
			out = append(out, buttons)
		}
	}
	if len(out) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

var _ domain.Transport = (*Sender)(nil)
