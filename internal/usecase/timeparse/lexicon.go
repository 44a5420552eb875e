package timeparse

import (
	"strings"
	"time"
)

type unitKind int

const (
	unitMinute unitKind = iota
	unitHour
	unitDay
	unitWeek
	unitMonth
	unitYear
)

type unit struct {
	kind   unitKind
	factor int
}

var units = map[string]unit{
	"minute": {unitMinute, 1}, "minutes": {unitMinute, 1}, "min": {unitMinute, 1}, "mins": {unitMinute, 1},
	"hour": {unitHour, 1}, "hours": {unitHour, 1}, "hr": {unitHour, 1}, "hrs": {unitHour, 1},
	"day": {unitDay, 1}, "days": {unitDay, 1},
	"week": {unitWeek, 1}, "weeks": {unitWeek, 1},
	"month": {unitMonth, 1}, "months": {unitMonth, 1},
	"year": {unitYear, 1}, "years": {unitYear, 1},

	"минуту": {unitMinute, 1}, "минуты": {unitMinute, 1}, "минут": {unitMinute, 1}, "мин": {unitMinute, 1},
	"полчаса": {unitMinute, 30},
	"час": {unitHour, 1}, "часа": {unitHour, 1}, "часов": {unitHour, 1},
	"день": {unitDay, 1}, "дня": {unitDay, 1}, "дней": {unitDay, 1},
	"неделю": {unitWeek, 1}, "недели": {unitWeek, 1}, "недель": {unitWeek, 1},
	"месяц": {unitMonth, 1}, "месяца": {unitMonth, 1}, "месяцев": {unitMonth, 1},
	"год": {unitYear, 1}, "года": {unitYear, 1}, "лет": {unitYear, 1},
}

// Числа словами, которые встречаются перед единицей: "in an hour", "через одну минуту".
var wordCounts = map[string]int{
	"a": 1, "an": 1, "one": 1, "один": 1, "одну": 1, "одна": 1,
	"two": 2, "два": 2, "две": 2, "three": 3, "три": 3,
}

var namedDays = map[string]int{
	"today": 0, "tomorrow": 1, "day after tomorrow": 2,
	"сегодня": 0, "завтра": 1, "послезавтра": 2,
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,

	"понедельник": time.Monday, "пн": time.Monday,
	"вторник": time.Tuesday, "вт": time.Tuesday,
	"среда": time.Wednesday, "среду": time.Wednesday, "ср": time.Wednesday,
	"четверг": time.Thursday, "чт": time.Thursday,
	"пятница": time.Friday, "пятницу": time.Friday, "пт": time.Friday,
	"суббота": time.Saturday, "субботу": time.Saturday, "сб": time.Saturday,
	"воскресенье": time.Sunday, "вс": time.Sunday,
}

var nextWords = set("next", "следующий", "следующая", "следующее", "следующую", "следующей", "следующем")

var thisWords = set("this", "coming", "этот", "эта", "это", "эту", "этой", "этом",
	"ближайший", "ближайшая", "ближайшее", "ближайшую", "ближайшей")

var weekWords = set("week", "неделя", "неделю", "неделе")

var monthWords = set("month", "месяц", "месяце")

var weekendWords = set("weekend", "weekends", "выходные", "выходных", "выходной", "выходным")

var workdayWords = set("weekday", "weekdays", "workday", "workdays", "будний день", "будни", "будний",
	"будням", "рабочий день", "рабочие дни")

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,

	"январь": time.January, "января": time.January, "янв": time.January,
	"февраль": time.February, "февраля": time.February, "фев": time.February,
	"март": time.March, "марта": time.March, "мар": time.March,
	"апрель": time.April, "апреля": time.April, "апр": time.April,
	"май": time.May, "мая": time.May,
	"июнь": time.June, "июня": time.June, "июн": time.June,
	"июль": time.July, "июля": time.July, "июл": time.July,
	"август": time.August, "августа": time.August, "авг": time.August,
	"сентябрь": time.September, "сентября": time.September, "сен": time.September,
	"октябрь": time.October, "октября": time.October, "окт": time.October,
	"ноябрь": time.November, "ноября": time.November, "ноя": time.November,
	"декабрь": time.December, "декабря": time.December, "дек": time.December,
}

// Ведущие связки, которые отбрасываются перед разбором.
var connectives = set("on", "at", "в", "во", "на")

// Слова, с которых начинается повторяющееся выражение.
var recurringLeads = set("every", "each", "каждый", "каждую", "каждое", "каждые", "каждым",
	"daily", "weekly", "monthly", "yearly", "annually",
	"ежедневно", "еженедельно", "ежемесячно", "ежегодно")

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func in(m map[string]struct{}, word string) bool {
	_, ok := m[word]
	return ok
}

// IsExpressionWord сообщает, может ли токен начинать выражение времени.
// Используется, чтобы не принять такое слово за алиас чата.
func IsExpressionWord(token string) bool {
	w := strings.ToLower(strings.TrimSpace(token))
	if w == "" {
		return false
	}
	if w[0] >= '0' && w[0] <= '9' {
		return true
	}
	if _, ok := weekdays[w]; ok {
		return true
	}
	if _, ok := months[w]; ok {
		return true
	}
	if _, ok := units[w]; ok {
		return true
	}
	for phrase := range namedDays {
		if w == phrase || strings.HasPrefix(phrase, w+" ") {
			return true
		}
	}
	for _, m := range []map[string]struct{}{nextWords, thisWords, weekendWords, workdayWords, connectives, recurringLeads} {
		if in(m, w) {
			return true
		}
		for phrase := range m {
			if strings.HasPrefix(phrase, w+" ") {
				return true
			}
		}
	}
	switch w {
	case "in", "через", "по":
		return true
	}
	return false
}
