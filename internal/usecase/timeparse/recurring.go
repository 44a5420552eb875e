package timeparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tg-remind-bot/internal/calendar"
	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/usecase/recurrence"
)

// Recurring: разобранное повторяющееся выражение.
type Recurring struct {
	FirstAt   time.Time
	Body      string
	Pattern   domain.Pattern
	TimeOfDay domain.TimeOfDay
}

var (
	dayOfMonthRe = regexp.MustCompile(`^(?:on\s+)?(?:the\s+)?(\d{1,3})(?:st|nd|rd|th|-?го|-?е)?(?:\s+(?:числа|day))?$`)
	listSplitRe  = regexp.MustCompile(`\s*,\s*|\s+(?:and|и)\s+`)
)

// Слова-заполнители после "every"/"каждый", которые не несут смысла.
var recurringFillers = set("on", "в", "во", "по", "the")

// LooksLikeRecurring сообщает, начинается ли выражение с "every"/"каждый" и т.п.
func LooksLikeRecurring(input string) bool {
	expr := input
	if e, _, err := Split(input); err == nil {
		expr = e
	}
	words := strings.Fields(Normalize(expr))
	if len(words) == 0 {
		return false
	}
	if in(recurringLeads, words[0]) {
		return true
	}
	return words[0] == "по" && len(words) > 1 && (in(workdayWords, words[1]) || in(weekendWords, words[1]))
}

// ParseRecurring разбирает "<шаблон повторения> - <текст>" и вычисляет первое вхождение после now.
func ParseRecurring(input string, now time.Time) (Recurring, error) {
	expr, body, err := Split(input)
	if err != nil {
		return Recurring{}, err
	}
	q, err := newQuery(Normalize(expr), now)
	if err != nil {
		return Recurring{}, domain.WithFragment(err, expr)
	}
	pattern, err := parsePattern(q)
	if err != nil {
		return Recurring{}, domain.WithFragment(err, expr)
	}
	tod := q.timeOr(domain.DefaultTimeOfDay)
	first, ok := recurrence.Next(pattern, tod, now)
	if !ok {
		err := fmt.Errorf("%w: у шаблона %q нет ближайших вхождений", domain.ErrInvalidCalendarDate, strings.TrimSpace(expr))
		return Recurring{}, domain.WithFragment(err, expr)
	}
	return Recurring{FirstAt: first, Body: body, Pattern: pattern, TimeOfDay: tod}, nil
}

func parsePattern(q query) (domain.Pattern, error) {
	words := strings.Fields(q.rest)
	if len(words) == 0 {
		return domain.Pattern{}, malformed(q.rest)
	}
	lead := words[0]
	rest := dropFillers(words[1:])
	tail := strings.Join(rest, " ")

	switch lead {
	case "daily", "ежедневно":
		if tail == "" {
			return domain.Daily(), nil
		}
		return domain.Pattern{}, malformed(q.rest)
	case "weekly", "еженедельно":
		if tail == "" {
			return domain.Weekly(q.now.Weekday()), nil
		}
		return weekdayPattern(tail)
	case "monthly", "ежемесячно":
		return monthlyPattern(tail)
	case "yearly", "annually", "ежегодно":
		return yearlyPattern(tail)
	case "по":
		return dayClassPattern(tail)
	}
	if !in(recurringLeads, lead) {
		return domain.Pattern{}, malformed(q.rest)
	}

	switch {
	case tail == "day" || tail == "день" || tail == "сутки":
		return domain.Daily(), nil
	case in(weekWords, tail):
		return domain.Weekly(q.now.Weekday()), nil
	case in(workdayWords, tail) || in(weekendWords, tail):
		return dayClassPattern(tail)
	case len(rest) > 0 && in(monthWords, rest[0]):
		return monthlyPattern(strings.Join(dropFillers(rest[1:]), " "))
	case len(rest) > 0 && (rest[0] == "year" || rest[0] == "год"):
		return yearlyPattern(strings.Join(dropFillers(rest[1:]), " "))
	}
	if p, err := weekdayPattern(tail); err == nil {
		return p, nil
	}
	if p, err := yearlyPattern(tail); err == nil {
		return p, nil
	} else if !errors.Is(err, domain.ErrMalformedExpression) {
		return domain.Pattern{}, err
	}
	return domain.Pattern{}, malformed(q.rest)
}

func dayClassPattern(tail string) (domain.Pattern, error) {
	switch {
	case in(workdayWords, tail):
		return domain.WeeklySubset(domain.Workdays...), nil
	case in(weekendWords, tail):
		return domain.WeeklySubset(domain.Weekend...), nil
	}
	return domain.Pattern{}, malformed(tail)
}

// weekdayPattern: "monday" -> weekly, "mon, wed and fri" -> weekly_subset.
func weekdayPattern(tail string) (domain.Pattern, error) {
	if tail == "" {
		return domain.Pattern{}, malformed(tail)
	}
	var days []time.Weekday
	for _, part := range listSplitRe.Split(tail, -1) {
		day, ok := weekdays[strings.TrimSpace(part)]
		if !ok {
			return domain.Pattern{}, malformed(tail)
		}
		days = append(days, day)
	}
	subset := domain.WeeklySubset(days...)
	if len(subset.Weekdays) == 1 {
		return domain.Weekly(subset.Weekdays[0]), nil
	}
	return subset, nil
}

func monthlyPattern(tail string) (domain.Pattern, error) {
	m := dayOfMonthRe.FindStringSubmatch(tail)
	if m == nil {
		return domain.Pattern{}, malformed(tail)
	}
	day, _ := strconv.Atoi(m[1])
	if day < 1 || day > 31 {
		return domain.Pattern{}, fmt.Errorf("%w: в месяце нет %d-го числа", domain.ErrInvalidCalendarDate, day)
	}
	return domain.Monthly(day), nil
}

// yearlyPattern: "25 december", "december 25", "25.12".
func yearlyPattern(tail string) (domain.Pattern, error) {
	var (
		day   int
		month time.Month
	)
	switch {
	case numericDate.MatchString(tail):
		m := numericDate.FindStringSubmatch(tail)
		if m[3] != "" {
			return domain.Pattern{}, malformed(tail)
		}
		day, _ = strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		month = time.Month(mm)
	case dayMonthRe.MatchString(tail):
		m := dayMonthRe.FindStringSubmatch(tail)
		mon, ok := months[m[2]]
		if !ok || m[3] != "" {
			return domain.Pattern{}, malformed(tail)
		}
		day, _ = strconv.Atoi(m[1])
		month = mon
	case monthDayRe.MatchString(tail):
		m := monthDayRe.FindStringSubmatch(tail)
		mon, ok := months[m[1]]
		if !ok || m[3] != "" {
			return domain.Pattern{}, malformed(tail)
		}
		day, _ = strconv.Atoi(m[2])
		month = mon
	default:
		return domain.Pattern{}, malformed(tail)
	}
	if !calendar.ValidMonthDay(month, day) {
		return domain.Pattern{}, fmt.Errorf("%w: %02d.%02d", domain.ErrInvalidCalendarDate, day, int(month))
	}
	return domain.Yearly(month, day), nil
}

func dropFillers(words []string) []string {
	out := words[:0:0]
	for _, w := range words {
		if in(recurringFillers, w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func malformed(fragment string) error {
	return fmt.Errorf("%w: %q", domain.ErrMalformedExpression, fragment)
}
