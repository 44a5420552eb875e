package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tg-remind-bot/internal/calendar"
	"tg-remind-bot/internal/domain"
)

// strategy пробует распознать выражение; ok=false значит "не моё".
type strategy func(q query) (due time.Time, ok bool, err error)

// Порядок важен: побеждает первая сработавшая стратегия.
var strategies = []strategy{
	parseRelative,
	parseNamedDay,
	parseNextUnit,
	parseDayClass,
	parseMonthName,
	parseAbsolute,
	parseNatural,
}

// Допуск, после которого дата без года считается прошедшей.
const pastGrace = time.Minute

var (
	relativeRe  = regexp.MustCompile(`^(?:in|через)\s+(?:(\S+)\s+)?(\p{L}+)$`)
	dayMonthRe  = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th|-?го|-?е)?\s+(\p{L}+)(?:\s+(\d{4}))?$`)
	monthDayRe  = regexp.MustCompile(`^(\p{L}+)\s+(\d{1,2})(?:st|nd|rd|th)?,?(?:\s+(\d{4}))?$`)
	numericDate = regexp.MustCompile(`^(\d{1,2})[./](\d{1,2})(?:[./](\d{2}|\d{4}))?$`)
)

// parseRelative: "in 2 hours", "через 45 минут", "через 3 дня 10:00".
func parseRelative(q query) (time.Time, bool, error) {
	m := relativeRe.FindStringSubmatch(q.rest)
	if m == nil {
		return time.Time{}, false, nil
	}
	u, ok := units[m[2]]
	if !ok {
		return time.Time{}, false, nil
	}
	count := 1
	if m[1] != "" {
		if n, err := strconv.Atoi(m[1]); err == nil {
			count = n
		} else if n, ok := wordCounts[m[1]]; ok {
			count = n
		} else {
			return time.Time{}, false, nil
		}
	}
	if count <= 0 {
		return time.Time{}, false, fmt.Errorf("%w: интервал должен быть положительным", domain.ErrMalformedExpression)
	}
	n := count * u.factor
	var due time.Time
	switch u.kind {
	case unitMinute, unitHour:
		if q.hasTime {
			return time.Time{}, false, fmt.Errorf("%w: время суток не сочетается с минутами и часами", domain.ErrMalformedExpression)
		}
		d := time.Minute
		if u.kind == unitHour {
			d = time.Hour
		}
		return q.now.Add(time.Duration(n) * d), true, nil
	case unitDay:
		due = calendar.AddDays(q.now, n)
	case unitWeek:
		due = calendar.AddDays(q.now, 7*n)
	case unitMonth:
		due = calendar.AddMonths(q.now, n)
	case unitYear:
		due = calendar.AddYears(q.now, n)
	}
	if q.hasTime {
		due = calendar.At(due, q.tod)
	}
	return due, true, nil
}

// parseNamedDay: "today 18:00", "завтра", "day after tomorrow 10:00".
func parseNamedDay(q query) (time.Time, bool, error) {
	offset, ok := namedDays[q.rest]
	if !ok {
		return time.Time{}, false, nil
	}
	day := calendar.AddDays(calendar.StartOfDay(q.now), offset)
	return calendar.At(day, q.timeOr(domain.DefaultTimeOfDay)), true, nil
}

// parseNextUnit: "next week", "next month", "next monday", "этот четверг", "пятница".
func parseNextUnit(q query) (time.Time, bool, error) {
	words := strings.Fields(q.rest)
	tod := q.timeOr(domain.DefaultTimeOfDay)
	today := calendar.StartOfDay(q.now)

	switch len(words) {
	case 1:
		day, ok := weekdays[words[0]]
		if !ok {
			return time.Time{}, false, nil
		}
		return upcomingWeekday(q.now, day, tod, false), true, nil
	case 2:
	default:
		return time.Time{}, false, nil
	}

	modifier, target := words[0], words[1]
	strict := in(nextWords, modifier)
	if !strict && !in(thisWords, modifier) {
		return time.Time{}, false, nil
	}
	if day, ok := weekdays[target]; ok {
		return upcomingWeekday(q.now, day, tod, strict), true, nil
	}
	if !strict {
		return time.Time{}, false, nil
	}
	switch {
	case in(weekWords, target):
		delta := (int(time.Monday) - int(today.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return calendar.At(calendar.AddDays(today, delta), tod), true, nil
	case in(monthWords, target):
		return calendar.At(calendar.AddMonths(today, 1), tod), true, nil
	}
	return time.Time{}, false, nil
}

// upcomingWeekday: strict=true никогда не возвращает сегодняшний день,
// иначе сегодня подходит, если время ещё впереди.
func upcomingWeekday(now time.Time, day time.Weekday, tod domain.TimeOfDay, strict bool) time.Time {
	today := calendar.StartOfDay(now)
	delta := (int(day) - int(today.Weekday()) + 7) % 7
	if delta == 0 && strict {
		delta = 7
	}
	candidate := calendar.At(calendar.AddDays(today, delta), tod)
	if !candidate.After(now) {
		candidate = calendar.At(calendar.AddDays(today, delta+7), tod)
	}
	return candidate
}

// parseDayClass: "weekend", "weekday 09:00", "будний день", "выходные".
func parseDayClass(q query) (time.Time, bool, error) {
	var days []time.Weekday
	switch {
	case in(weekendWords, q.rest):
		days = domain.Weekend
	case in(workdayWords, q.rest):
		days = domain.Workdays
	default:
		return time.Time{}, false, nil
	}
	set := domain.WeeklySubset(days...)
	tod := q.timeOr(domain.DefaultTimeOfDay)
	today := calendar.StartOfDay(q.now)
	for i := 0; i <= 7; i++ {
		day := calendar.AddDays(today, i)
		if !set.HasWeekday(day.Weekday()) {
			continue
		}
		if candidate := calendar.At(day, tod); candidate.After(q.now) {
			return candidate, true, nil
		}
	}
	return time.Time{}, false, nil
}

// parseMonthName: "25 december", "december 25", "1 января 2026".
func parseMonthName(q query) (time.Time, bool, error) {
	var dayStr, monthStr, yearStr string
	if m := dayMonthRe.FindStringSubmatch(q.rest); m != nil {
		dayStr, monthStr, yearStr = m[1], m[2], m[3]
	} else if m := monthDayRe.FindStringSubmatch(q.rest); m != nil {
		monthStr, dayStr, yearStr = m[1], m[2], m[3]
	} else {
		return time.Time{}, false, nil
	}
	month, ok := months[monthStr]
	if !ok {
		return time.Time{}, false, nil
	}
	day, _ := strconv.Atoi(dayStr)
	due, err := dateWithRoll(q, day, month, yearStr)
	if err != nil {
		return time.Time{}, false, err
	}
	return due, true, nil
}

// parseAbsolute: "23:59", "29.11", "29.11 10:00", "29.11.2026 10:00".
func parseAbsolute(q query) (time.Time, bool, error) {
	if q.rest == "" {
		if !q.hasTime {
			return time.Time{}, false, nil
		}
		candidate := calendar.At(q.now, q.tod)
		if !candidate.After(q.now) {
			candidate = calendar.At(calendar.AddDays(calendar.StartOfDay(q.now), 1), q.tod)
		}
		return candidate, true, nil
	}
	m := numericDate.FindStringSubmatch(q.rest)
	if m == nil {
		return time.Time{}, false, nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	due, err := dateWithRoll(q, day, time.Month(month), m[3])
	if err != nil {
		return time.Time{}, false, err
	}
	return due, true, nil
}

// dateWithRoll строит дату в текущем году и переносит на следующий год,
// если она прошла больше чем на минуту. Явно указанный год не переносится.
func dateWithRoll(q query, day int, month time.Month, yearStr string) (time.Time, error) {
	tod := q.timeOr(domain.DefaultTimeOfDay)
	loc := q.now.Location()
	if yearStr != "" {
		year, _ := strconv.Atoi(yearStr)
		if len(yearStr) == 2 {
			year += 2000
		}
		return calendar.Date(year, month, day, tod.Hour, tod.Minute, loc)
	}
	due, err := calendar.Date(q.now.Year(), month, day, tod.Hour, tod.Minute, loc)
	if err != nil {
		return time.Time{}, err
	}
	if due.Before(q.now.Add(-pastGrace)) {
		return calendar.Date(q.now.Year()+1, month, day, tod.Hour, tod.Minute, loc)
	}
	return due, nil
}
