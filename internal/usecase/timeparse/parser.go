// Package timeparse разбирает свободный текст вида "<когда> - <что>" в момент
// доставки и текст напоминания. Поддерживаются русские и английские формы.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tg-remind-bot/internal/domain"
)

// Разделитель выражения и текста: дефис, en- или em-dash в окружении пробелов.
var separatorRe = regexp.MustCompile(`\s[-–—]\s`)

var (
	clockRe      = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	dottedRe     = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})$`)
	beforeTimeRe = regexp.MustCompile(`(^|\s)(?:at|в|во)\s+(\d)`)
)

// Split делит ввод по последнему разделителю на выражение и текст.
func Split(input string) (expr, body string, err error) {
	locs := separatorRe.FindAllStringIndex(input, -1)
	if len(locs) == 0 {
		err := fmt.Errorf("%w: нет разделителя \" - \" в %q", domain.ErrMalformedExpression, strings.TrimSpace(input))
		return "", "", domain.WithFragment(err, input)
	}
	last := locs[len(locs)-1]
	expr = strings.TrimSpace(input[:last[0]])
	body = strings.TrimSpace(input[last[1]:])
	if expr == "" {
		return "", "", domain.WithFragment(fmt.Errorf("%w: не указано время", domain.ErrMalformedExpression), input)
	}
	if body == "" {
		return "", "", domain.WithFragment(fmt.Errorf("%w: не указан текст напоминания", domain.ErrMalformedExpression), input)
	}
	return expr, body, nil
}

// Parse разбирает "<выражение> - <текст>" относительно now.
// Все даты строятся в зоне now.
func Parse(input string, now time.Time) (time.Time, string, error) {
	expr, body, err := Split(input)
	if err != nil {
		return time.Time{}, "", err
	}
	due, err := ParseExpression(expr, now)
	if err != nil {
		return time.Time{}, "", err
	}
	return due, body, nil
}

// ParseExpression разбирает только выражение времени без текста.
// Ошибки несут исходное выражение как domain.ParseError.
func ParseExpression(expr string, now time.Time) (time.Time, error) {
	due, err := parseExpression(expr, now)
	if err != nil {
		return time.Time{}, domain.WithFragment(err, expr)
	}
	return due, nil
}

func parseExpression(expr string, now time.Time) (time.Time, error) {
	q, err := newQuery(Normalize(expr), now)
	if err != nil {
		return time.Time{}, err
	}
	q.raw = strings.Join(strings.Fields(strings.ToLower(expr)), " ")
	for _, s := range strategies {
		due, ok, err := s(q)
		if err != nil {
			return time.Time{}, err
		}
		if ok {
			return due, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", domain.ErrMalformedExpression, strings.TrimSpace(expr))
}

// Normalize приводит выражение к нижнему регистру, убирает связки "on/at/в"
// и превращает "20.30" во время, если это не может быть датой.
func Normalize(expr string) string {
	s := strings.Join(strings.Fields(strings.ToLower(expr)), " ")
	if first, rest, ok := strings.Cut(s, " "); ok && in(connectives, first) {
		s = rest
	}
	s = beforeTimeRe.ReplaceAllString(s, "$1$2")

	tokens := strings.Fields(s)
	for i, tok := range tokens {
		tokens[i] = normalizeDotted(tok)
	}
	return strings.Join(tokens, " ")
}

// normalizeDotted: "29.11" остаётся датой, "20.30" становится "20:30".
func normalizeDotted(tok string) string {
	m := dottedRe.FindStringSubmatch(tok)
	if m == nil {
		return tok
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	if a >= 1 && a <= 31 && b >= 1 && b <= 12 {
		return tok
	}
	if len(m[2]) == 2 && a <= 23 && b <= 59 {
		return fmt.Sprintf("%d:%s", a, m[2])
	}
	return tok
}

// query: нормализованное выражение с выделенным временем суток.
// raw хранит выражение до нормализации для разбора свободных фраз.
type query struct {
	raw     string
	rest    string
	tod     domain.TimeOfDay
	hasTime bool
	now     time.Time
}

// timeOr возвращает указанное время или значение по умолчанию.
func (q query) timeOr(def domain.TimeOfDay) domain.TimeOfDay {
	if q.hasTime {
		return q.tod
	}
	return def
}

// newQuery отделяет время "ЧЧ:ММ" в конце или в начале выражения.
func newQuery(normalized string, now time.Time) (query, error) {
	q := query{rest: normalized, now: now}
	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return q, fmt.Errorf("%w: пустое выражение", domain.ErrMalformedExpression)
	}
	idx := -1
	switch {
	case clockRe.MatchString(tokens[len(tokens)-1]):
		idx = len(tokens) - 1
	case clockRe.MatchString(tokens[0]):
		idx = 0
	}
	if idx < 0 {
		return q, nil
	}
	tod, err := parseClock(tokens[idx])
	if err != nil {
		return q, err
	}
	q.tod = tod
	q.hasTime = true
	q.rest = strings.Join(append(tokens[:idx:idx], tokens[idx+1:]...), " ")
	return q, nil
}

func parseClock(tok string) (domain.TimeOfDay, error) {
	m := clockRe.FindStringSubmatch(tok)
	if m == nil {
		return domain.TimeOfDay{}, fmt.Errorf("%w: %q", domain.ErrMalformedExpression, tok)
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	tod := domain.TimeOfDay{Hour: h, Minute: mm}
	if !tod.Valid() {
		return domain.TimeOfDay{}, fmt.Errorf("%w: время %s", domain.ErrInvalidCalendarDate, tok)
	}
	return tod, nil
}
