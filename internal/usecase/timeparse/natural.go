package timeparse

import (
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/olebedev/when/rules/ru"

	"tg-remind-bot/internal/calendar"
)

var (
	naturalOnce   sync.Once
	naturalParser *when.Parser
)

// getNaturalParser лениво собирает разборщик свободных фраз на обоих языках.
func getNaturalParser() *when.Parser {
	naturalOnce.Do(func() {
		naturalParser = when.New(nil)
		naturalParser.Add(en.All...)
		naturalParser.Add(ru.All...)
		naturalParser.Add(common.All...)
	})
	return naturalParser
}

// parseNatural: "at 5pm", "tonight", "в 5 вечера", "next tuesday at 3pm".
// Срабатывает последним и только если найденная фраза покрывает всё
// выражение: вне её допустимы лишь связки.
func parseNatural(q query) (time.Time, bool, error) {
	if q.raw == "" {
		return time.Time{}, false, nil
	}
	r, err := getNaturalParser().Parse(q.raw, q.now)
	// Ошибка правила значит то же, что отсутствие совпадения.
	if err != nil || r == nil {
		return time.Time{}, false, nil
	}
	outside := q.raw[:r.Index] + " " + q.raw[r.Index+len(r.Text):]
	for _, w := range strings.Fields(outside) {
		if !in(connectives, strings.Trim(w, ",.")) {
			return time.Time{}, false, nil
		}
	}
	t := r.Time.In(q.now.Location())
	due := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	if due.Equal(q.now) {
		return time.Time{}, false, nil
	}
	// Время без даты, уже прошедшее сегодня, переносится на завтра.
	if due.Before(q.now) && calendar.StartOfDay(due).Equal(calendar.StartOfDay(q.now)) {
		due = calendar.AddDays(due, 1)
	}
	if !due.After(q.now) {
		return time.Time{}, false, nil
	}
	return due, true, nil
}
