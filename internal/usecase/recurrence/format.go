package recurrence

import (
	"fmt"
	"strings"
	"time"

	"tg-remind-bot/internal/domain"
)

// FormatHuman возвращает короткое описание шаблона: "weekly (Mon)", "monthly (day 15)".
func FormatHuman(p domain.Pattern) string {
	switch p.Type {
	case domain.PatternDaily:
		return "daily"
	case domain.PatternWeekly:
		return fmt.Sprintf("weekly (%s)", shortWeekday(p.Weekday))
	case domain.PatternWeeklySubset:
		switch {
		case p.SameDays(domain.Workdays):
			return "weekdays"
		case p.SameDays(domain.Weekend):
			return "weekends"
		}
		names := make([]string, 0, len(p.Weekdays))
		for _, d := range p.Weekdays {
			names = append(names, shortWeekday(d))
		}
		return fmt.Sprintf("weekly (%s)", strings.Join(names, ", "))
	case domain.PatternMonthly:
		return fmt.Sprintf("monthly (day %d)", p.Day)
	case domain.PatternYearly:
		return fmt.Sprintf("yearly (%s %d)", shortMonth(p.Month), p.Day)
	}
	return string(p.Type)
}

// FormatWithTime добавляет время суток к описанию.
func FormatWithTime(p domain.Pattern, tod domain.TimeOfDay) string {
	return FormatHuman(p) + " at " + tod.String()
}

func shortWeekday(d time.Weekday) string {
	if d < time.Sunday || d > time.Saturday {
		return "?"
	}
	return d.String()[:3]
}

func shortMonth(m time.Month) string {
	if m < time.January || m > time.December {
		return "?"
	}
	return m.String()[:3]
}
