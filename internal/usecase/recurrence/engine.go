package recurrence

import (
	"time"

	"tg-remind-bot/internal/calendar"
	"tg-remind-bot/internal/domain"
)

// Горизонты поиска следующего вхождения.
const (
	subsetHorizonDays    = 8
	monthlyHorizonMonths = 24
	yearlyHorizonYears   = 12
)

// Next возвращает ближайшее вхождение строго после after.
// ok=false означает, что за горизонт поиска вхождений нет и серию нужно остановить.
func Next(p domain.Pattern, tod domain.TimeOfDay, after time.Time) (time.Time, bool) {
	if !tod.Valid() {
		return time.Time{}, false
	}
	switch p.Type {
	case domain.PatternDaily:
		return nextDaily(tod, after), true
	case domain.PatternWeekly:
		return nextWeekly(p.Weekday, tod, after)
	case domain.PatternWeeklySubset:
		return nextWeeklySubset(p, tod, after)
	case domain.PatternMonthly:
		return nextMonthly(p.Day, tod, after)
	case domain.PatternYearly:
		return nextYearly(p.Month, p.Day, tod, after)
	}
	return time.Time{}, false
}

func nextDaily(tod domain.TimeOfDay, after time.Time) time.Time {
	candidate := calendar.At(after, tod)
	if !candidate.After(after) {
		candidate = calendar.At(calendar.AddDays(calendar.StartOfDay(after), 1), tod)
	}
	return candidate
}

func nextWeekly(day time.Weekday, tod domain.TimeOfDay, after time.Time) (time.Time, bool) {
	if day < time.Sunday || day > time.Saturday {
		return time.Time{}, false
	}
	delta := (int(day) - int(after.Weekday()) + 7) % 7
	base := calendar.StartOfDay(after)
	candidate := calendar.At(calendar.AddDays(base, delta), tod)
	if !candidate.After(after) {
		candidate = calendar.At(calendar.AddDays(base, delta+7), tod)
	}
	return candidate, true
}

func nextWeeklySubset(p domain.Pattern, tod domain.TimeOfDay, after time.Time) (time.Time, bool) {
	base := calendar.StartOfDay(after)
	for i := 0; i < subsetHorizonDays; i++ {
		day := calendar.AddDays(base, i)
		if !p.HasWeekday(day.Weekday()) {
			continue
		}
		candidate := calendar.At(day, tod)
		if candidate.After(after) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func nextMonthly(dom int, tod domain.TimeOfDay, after time.Time) (time.Time, bool) {
	if dom < 1 || dom > 31 {
		return time.Time{}, false
	}
	for i := 0; i < monthlyHorizonMonths; i++ {
		year, month := calendar.MonthOffset(after.Year(), after.Month(), i)
		if !calendar.ValidDate(year, month, dom) {
			continue
		}
		candidate := time.Date(year, month, dom, tod.Hour, tod.Minute, 0, 0, after.Location())
		if candidate.After(after) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func nextYearly(month time.Month, dom int, tod domain.TimeOfDay, after time.Time) (time.Time, bool) {
	if !calendar.ValidMonthDay(month, dom) {
		return time.Time{}, false
	}
	for i := 0; i < yearlyHorizonYears; i++ {
		year := after.Year() + i
		if !calendar.ValidDate(year, month, dom) {
			continue
		}
		candidate := time.Date(year, month, dom, tod.Hour, tod.Minute, 0, 0, after.Location())
		if candidate.After(after) {
			return candidate, true
		}
	}
	return time.Time{}, false
}
