package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/usecase/recurrence"
	"tg-remind-bot/internal/usecase/reminders"
	"tg-remind-bot/internal/usecase/routing"
)

const timeLayout = "02.01.2006 15:04"

// Messenger отправляет ответы бота и работает с кнопками.
type Messenger interface {
	domain.Transport
	AnswerCallback(ctx context.Context, callbackID, text string) error
	EditPrompts(ctx context.Context, chatID int64, messageID int, rows [][]domain.Prompt) error
}

// Handler обслуживает вебхук бота.
type Handler struct {
	out       Messenger
	log       zerolog.Logger
	reminders *reminders.Service
	routes    *routing.Resolver
}

// NewHandler создаёт обработчик.
func NewHandler(out Messenger, log zerolog.Logger, remindersUC *reminders.Service, routes *routing.Resolver) *Handler {
	return &Handler{
		out:       out,
		log:       log,
		reminders: remindersUC,
		routes:    routes,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil && upd.Message.Chat != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if msg.Chat.IsPrivate() && msg.From != nil {
		h.rememberUser(ctx, msg)
	}
	cmd, payload := splitCommand(msg.Text)
	if cmd == "" {
		return
	}
	if msg.From == nil {
		h.reply(ctx, chatID, "Не удалось определить пользователя", nil)
		return
	}
	who := reminders.Requester{ChatID: chatID, UserID: msg.From.ID}
	switch cmd {
	case "/start", "/help":
		h.reply(ctx, chatID, buildHelpMessage(), nil)
	case "/remind":
		h.handleRemind(ctx, msg, who, payload)
	case "/list":
		h.handleList(ctx, msg, who, payload)
	case "/linkchat":
		h.handleLinkChat(ctx, msg, payload)
	case "/aliases":
		h.handleAliases(ctx, chatID)
	case "/del":
		h.handleDelete(ctx, who, payload, false)
	case "/delseries":
		h.handleDelete(ctx, who, payload, true)
	default:
		if msg.Chat.IsPrivate() {
			h.reply(ctx, chatID, "Неизвестная команда. Используйте /help", nil)
		}
	}
}

func (h *Handler) handleRemind(ctx context.Context, msg *tgbotapi.Message, who reminders.Requester, payload string) {
	if strings.TrimSpace(payload) == "" {
		h.reply(ctx, who.ChatID, "Формат: /remind <когда> - <текст>\nНапример: /remind завтра 10:00 - позвонить маме", nil)
		return
	}
	target := who.ChatID
	targetLabel := ""
	if msg.Chat.IsPrivate() {
		// Адресат может стоять отдельной строкой перед списком.
		if t, rest, ok := routing.SplitTarget(strings.Replace(payload, "\n", " \n", 1)); ok {
			chatID, err := h.routes.Resolve(ctx, t)
			if err != nil {
				h.replyError(ctx, who.ChatID, err)
				return
			}
			target, targetLabel, payload = chatID, t.Raw, rest
		}
	}

	lines := nonEmptyLines(payload)
	createdBy := who.UserID
	if len(lines) > 1 {
		results := h.reminders.ScheduleBulk(ctx, target, &createdBy, lines)
		h.reply(ctx, who.ChatID, h.formatBulk(results, targetLabel), nil)
		return
	}
	scheduled, err := h.reminders.Schedule(ctx, reminders.ScheduleRequest{ChatID: target, CreatedBy: &createdBy, Input: lines[0]})
	if err != nil {
		h.replyError(ctx, who.ChatID, err)
		return
	}
	h.reply(ctx, who.ChatID, h.formatScheduled(scheduled, targetLabel), nil)
}

func (h *Handler) handleList(ctx context.Context, msg *tgbotapi.Message, who reminders.Requester, payload string) {
	chatID := who.ChatID
	var createdBy *int64
	if raw := strings.TrimSpace(payload); raw != "" && msg.Chat.IsPrivate() {
		t, _, ok := routing.SplitTarget(raw + " -")
		if !ok {
			h.reply(ctx, who.ChatID, "Укажите алиас чата или @username, например /list family", nil)
			return
		}
		resolved, err := h.routes.Resolve(ctx, t)
		if err != nil {
			h.replyError(ctx, who.ChatID, err)
			return
		}
		chatID = resolved
		createdBy = &who.UserID
	}
	items, err := h.reminders.List(ctx, chatID, createdBy)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: не удалось получить список")
		h.reply(ctx, who.ChatID, "Не удалось получить список. Попробуйте позже", nil)
		return
	}
	if len(items) == 0 {
		h.reply(ctx, who.ChatID, "Запланированных напоминаний нет", nil)
		return
	}
	loc := h.reminders.Location()
	var b strings.Builder
	b.WriteString("Запланировано:\n")
	rows := make([][]domain.Prompt, 0, len(items))
	for _, it := range items {
		r := it.Reminder
		fmt.Fprintf(&b, "#%d · %s · %s", r.ID, r.DueAt.In(loc).Format(timeLayout), r.Text)
		row := []domain.Prompt{{Label: fmt.Sprintf("🗑 #%d", r.ID), Data: domain.CallbackData(domain.ActionDelete, r.ID)}}
		if it.Template != nil {
			fmt.Fprintf(&b, " (🔁 %s)", recurrence.FormatWithTime(it.Template.Pattern, it.Template.TimeOfDay))
			row = append(row, domain.Prompt{Label: "🗑 серия", Data: domain.CallbackData(domain.ActionDeleteSeries, it.Template.ID)})
		}
		b.WriteString("\n")
		rows = append(rows, row)
	}
	h.reply(ctx, who.ChatID, b.String(), rows)
}

func (h *Handler) handleLinkChat(ctx context.Context, msg *tgbotapi.Message, payload string) {
	chatID := msg.Chat.ID
	if msg.Chat.IsPrivate() {
		h.reply(ctx, chatID, "Команда работает в группе: добавьте бота в чат и отправьте там /linkchat <алиас>", nil)
		return
	}
	alias := strings.ToLower(strings.TrimSpace(payload))
	if alias == "" {
		h.reply(ctx, chatID, "Отправьте /linkchat <алиас>, например /linkchat family", nil)
		return
	}
	if err := h.routes.Link(ctx, alias, chatID, msg.Chat.Title, msg.From.ID); err != nil {
		if errors.Is(err, domain.ErrMalformedExpression) {
			h.reply(ctx, chatID, "Некорректный алиас: нужны буквы, цифры или _, и это не должно быть словом времени", nil)
			return
		}
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: не удалось сохранить алиас")
		h.reply(ctx, chatID, "Не удалось сохранить алиас. Попробуйте позже", nil)
		return
	}
	h.reply(ctx, chatID, fmt.Sprintf("Готово: чат доступен как %s. В личке с ботом: /remind %s завтра - текст", alias, alias), nil)
}

func (h *Handler) handleAliases(ctx context.Context, chatID int64) {
	aliases, err := h.routes.Aliases(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("bot: не удалось получить алиасы")
		h.reply(ctx, chatID, "Не удалось получить алиасы. Попробуйте позже", nil)
		return
	}
	if len(aliases) == 0 {
		h.reply(ctx, chatID, "Алиасов пока нет. Привяжите чат командой /linkchat", nil)
		return
	}
	var b strings.Builder
	for _, a := range aliases {
		title := a.Title
		if title == "" {
			title = strconv.FormatInt(a.ChatID, 10)
		}
		fmt.Fprintf(&b, "• %s → %s\n", a.Alias, title)
	}
	h.reply(ctx, chatID, b.String(), nil)
}

func (h *Handler) handleDelete(ctx context.Context, who reminders.Requester, payload string, series bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(payload), "#"), 10, 64)
	if err != nil || id <= 0 {
		cmd := "/del"
		if series {
			cmd = "/delseries"
		}
		h.reply(ctx, who.ChatID, fmt.Sprintf("Отправьте %s <id>; идентификаторы показывает /list", cmd), nil)
		return
	}
	h.deleteAndOfferUndo(ctx, who, id, series)
}

func (h *Handler) deleteAndOfferUndo(ctx context.Context, who reminders.Requester, id int64, series bool) {
	var (
		deleted reminders.Deleted
		err     error
		text    string
	)
	if series {
		deleted, err = h.reminders.DeleteSeries(ctx, who, id)
		text = "Серия остановлена"
	} else {
		deleted, err = h.reminders.DeleteSingle(ctx, who, id)
		text = fmt.Sprintf("Напоминание #%d удалено", id)
	}
	if err != nil {
		h.replyError(ctx, who.ChatID, err)
		return
	}
	if deleted.Snapshot.ReplacementID != nil {
		text += fmt.Sprintf(", следующее в серии: #%d", *deleted.Snapshot.ReplacementID)
	}
	var rows [][]domain.Prompt
	if deleted.Token != "" {
		rows = [][]domain.Prompt{{{Label: "↩️ Отменить", Data: domain.UndoData(deleted.Token)}}}
	}
	h.reply(ctx, who.ChatID, text, rows)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	answer := ""
	defer func() {
		if err := h.out.AnswerCallback(ctx, cb.ID, answer); err != nil {
			h.log.Error().Err(err).Msg("bot: не удалось ответить на callback")
		}
	}()
	if cb.Message == nil || cb.Message.Chat == nil || cb.From == nil {
		return
	}
	data, ok := domain.ParseCallback(cb.Data)
	if !ok {
		answer = "Кнопка устарела"
		return
	}
	chatID := cb.Message.Chat.ID
	who := reminders.Requester{ChatID: chatID, UserID: cb.From.ID}

	if data.ID > 0 {
		if err := h.reminders.Acknowledge(ctx, data.Action, data.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			h.log.Warn().Err(err).Int64("reminder_id", data.ID).Msg("bot: не удалось отметить реакцию")
		}
	}

	switch data.Action {
	case domain.ActionDone:
		answer = "Отмечено ✅"
		h.editPrompts(ctx, chatID, cb.Message.MessageID, nil)
	case domain.ActionSnoozePage:
		h.editPrompts(ctx, chatID, cb.Message.MessageID, domain.SnoozePrompts(data.ID))
	case domain.ActionSnooze:
		scheduled, err := h.reminders.Snooze(ctx, who, data.ID, data.Arg)
		if err != nil {
			answer = errorText(err)
			return
		}
		answer = "Напомню " + scheduled.DueAt.In(h.reminders.Location()).Format(timeLayout)
		h.editPrompts(ctx, chatID, cb.Message.MessageID, nil)
	case domain.ActionDelete:
		h.deleteAndOfferUndo(ctx, who, data.ID, false)
	case domain.ActionDeleteSeries:
		h.deleteAndOfferUndo(ctx, who, data.ID, true)
	case domain.ActionUndo:
		snap, err := h.reminders.Undo(ctx, cb.From.ID, data.Arg)
		if err != nil {
			answer = errorText(err)
			return
		}
		answer = "Восстановлено"
		h.editPrompts(ctx, chatID, cb.Message.MessageID, nil)
		h.reply(ctx, chatID, restoredText(snap), nil)
	default:
		answer = "Кнопка устарела"
	}
}

func (h *Handler) rememberUser(ctx context.Context, msg *tgbotapi.Message) {
	uc := domain.UserChat{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
	if err := h.routes.RememberUser(ctx, uc); err != nil {
		h.log.Warn().Err(err).Int64("user_id", uc.UserID).Msg("bot: не удалось сохранить личный чат")
	}
}

func (h *Handler) formatScheduled(s reminders.Scheduled, target string) string {
	when := s.DueAt.In(h.reminders.Location()).Format(timeLayout)
	prefix := "Напомню"
	if target != "" {
		prefix = fmt.Sprintf("Напомню в %s", target)
	}
	if s.Template != nil {
		return fmt.Sprintf("%s: %s\n🔁 %s, первое %s (#%d, серия %d)", prefix, s.Body,
			recurrence.FormatWithTime(s.Template.Pattern, s.Template.TimeOfDay), when, s.ReminderID, s.Template.ID)
	}
	return fmt.Sprintf("%s %s: %s (#%d)", prefix, when, s.Body, s.ReminderID)
}

func (h *Handler) formatBulk(results []reminders.BulkResult, target string) string {
	var ok, failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, fmt.Sprintf("✖ %s: %s", r.Line, errorText(r.Err)))
			continue
		}
		ok = append(ok, "✔ "+h.formatScheduled(r.Scheduled, target))
	}
	lines := []string{fmt.Sprintf("Создано %d из %d", len(ok), len(results))}
	lines = append(lines, ok...)
	lines = append(lines, failed...)
	return strings.Join(lines, "\n")
}

func (h *Handler) editPrompts(ctx context.Context, chatID int64, messageID int, rows [][]domain.Prompt) {
	if err := h.out.EditPrompts(ctx, chatID, messageID, rows); err != nil {
		h.log.Warn().Err(err).Int64("chat_id", chatID).Msg("bot: не удалось обновить кнопки")
	}
}

func (h *Handler) replyError(ctx context.Context, chatID int64, err error) {
	if !isUserError(err) {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: ошибка обработки команды")
	}
	h.reply(ctx, chatID, errorText(err), nil)
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, rows [][]domain.Prompt) {
	if err := h.out.Send(ctx, domain.OutgoingMessage{ChatID: chatID, Text: text, Rows: rows}); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("bot: не удалось отправить сообщение")
	}
}

func isUserError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidCalendarDate,
		domain.ErrMalformedExpression,
		domain.ErrNotFound,
		domain.ErrForbidden,
		domain.ErrAlreadyConsumed,
		routing.ErrUnknownTarget,
		reminders.ErrUnknownSnooze,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// errorText переводит ошибку в ответ пользователю. Ошибки разбора
// цитируют фрагмент, на котором споткнулись.
func errorText(err error) string {
	var unknown *routing.UnknownTargetError
	switch {
	case errors.Is(err, domain.ErrInvalidCalendarDate):
		return "Такой даты нет в календаре" + quoteFragment(err) + ". Проверьте день и месяц"
	case errors.Is(err, domain.ErrMalformedExpression):
		return "Не понял, когда напомнить" + quoteFragment(err) + ". Пример: /remind завтра 10:00 - позвонить маме"
	case errors.As(err, &unknown):
		text := fmt.Sprintf("Адресат «%s» не найден", unknown.Raw)
		if len(unknown.Known) > 0 {
			text += ". Из известных: " + strings.Join(unknown.Known, ", ")
		}
		return text + ". Привяжите чат командой /linkchat или попросите пользователя написать боту"
	case errors.Is(err, routing.ErrUnknownTarget):
		return "Адресат не найден: привяжите чат командой /linkchat или попросите пользователя написать боту"
	case errors.Is(err, domain.ErrNotFound):
		return "Напоминание не найдено"
	case errors.Is(err, domain.ErrForbidden):
		return "Это напоминание создано не вами"
	case errors.Is(err, domain.ErrAlreadyConsumed):
		return "Отмена больше недоступна"
	case errors.Is(err, reminders.ErrUnknownSnooze):
		return "Неизвестный вариант откладывания"
	}
	return "Что-то пошло не так. Попробуйте позже"
}

func quoteFragment(err error) string {
	if fragment, ok := domain.FragmentOf(err); ok {
		return fmt.Sprintf(": «%s»", fragment)
	}
	return ""
}

func restoredText(snap domain.Snapshot) string {
	if snap.Kind == domain.SnapshotSeries {
		return fmt.Sprintf("Серия восстановлена, напоминаний: %d", len(snap.Reminders))
	}
	if snap.Reminder != nil {
		return fmt.Sprintf("Напоминание #%d восстановлено: %s", snap.Reminder.ID, snap.Reminder.Text)
	}
	return "Восстановлено"
}

// splitCommand отделяет команду (без @имени бота) от аргументов.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	end := strings.IndexAny(text, " \n\t")
	cmd, payload := text, ""
	if end >= 0 {
		cmd, payload = text[:end], strings.TrimSpace(text[end:])
	}
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), payload
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}

func buildHelpMessage() string {
	lines := []string{
		"👋 Я напоминаю о делах в личке и в группах.",
		"",
		"Создание:",
		"• /remind через 2 часа - выключить духовку",
		"• /remind завтра 10:00 - позвонить маме",
		"• /remind 25.12 - поздравить",
		"• /remind every monday 10:00 - планёрка",
		"• /remind по будням 09:00 - зарядка",
		"• несколько строк после /remind создают несколько напоминаний",
		"",
		"Чужие чаты (из лички с ботом):",
		"• /linkchat family — в группе, чтобы дать ей алиас",
		"• /remind family завтра - купить хлеб",
		"• /remind @username в пятницу - вернуть книгу",
		"• /aliases — список алиасов",
		"",
		"Управление:",
		"• /list — запланированные напоминания с кнопками удаления",
		"• /del <id> — удалить одно напоминание",
		"• /delseries <id> — остановить серию",
		"",
		"Под каждым напоминанием есть кнопки «Готово», «Отложить» и «Удалить».",
	}
	return strings.Join(lines, "\n")
}
