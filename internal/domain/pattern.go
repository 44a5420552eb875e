package domain

import (
	"sort"
	"time"
)

// PatternType перечисляет поддерживаемые виды повторения.
type PatternType string

const (
	PatternDaily        PatternType = "daily"
	PatternWeekly       PatternType = "weekly"
	PatternWeeklySubset PatternType = "weekly_subset"
	PatternMonthly      PatternType = "monthly"
	PatternYearly       PatternType = "yearly"
)

// Valid сообщает, известен ли тип.
func (t PatternType) Valid() bool {
	switch t {
	case PatternDaily, PatternWeekly, PatternWeeklySubset, PatternMonthly, PatternYearly:
		return true
	}
	return false
}

// Pattern содержит тип повторения и его параметры.
// Weekday используется для weekly, Weekdays для weekly_subset,
// Day для monthly и yearly, Month только для yearly.
type Pattern struct {
	Type     PatternType    `json:"type"`
	Weekday  time.Weekday   `json:"weekday"`
	Weekdays []time.Weekday `json:"weekdays,omitempty"`
	Day      int            `json:"day,omitempty"`
	Month    time.Month     `json:"month,omitempty"`
}

// Daily возвращает ежедневный шаблон.
func Daily() Pattern { return Pattern{Type: PatternDaily} }

// Weekly возвращает еженедельный шаблон на указанный день.
func Weekly(day time.Weekday) Pattern { return Pattern{Type: PatternWeekly, Weekday: day} }

// WeeklySubset возвращает шаблон на набор дней недели без повторов.
func WeeklySubset(days ...time.Weekday) Pattern {
	seen := make(map[time.Weekday]struct{}, len(days))
	uniq := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		uniq = append(uniq, d)
	}
	sort.Slice(uniq, func(i, j int) bool { return mondayFirst(uniq[i]) < mondayFirst(uniq[j]) })
	return Pattern{Type: PatternWeeklySubset, Weekdays: uniq}
}

// Monthly возвращает ежемесячный шаблон на день месяца.
func Monthly(day int) Pattern { return Pattern{Type: PatternMonthly, Day: day} }

// Yearly возвращает ежегодный шаблон.
func Yearly(month time.Month, day int) Pattern {
	return Pattern{Type: PatternYearly, Month: month, Day: day}
}

// Workdays и Weekend, наборы дней для будней и выходных.
var (
	Workdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	Weekend  = []time.Weekday{time.Saturday, time.Sunday}
)

// HasWeekday проверяет вхождение дня в набор шаблона.
func (p Pattern) HasWeekday(day time.Weekday) bool {
	for _, d := range p.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// SameDays сравнивает набор дней шаблона с переданным.
func (p Pattern) SameDays(days []time.Weekday) bool {
	if len(p.Weekdays) != len(days) {
		return false
	}
	for _, d := range days {
		if !p.HasWeekday(d) {
			return false
		}
	}
	return true
}

func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}
