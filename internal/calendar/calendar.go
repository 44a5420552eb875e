// Package calendar содержит безопасную арифметику дат: сдвиг на месяцы и годы
// с прижатием к последнему дню месяца и строгую проверку дат.
package calendar

import (
	"fmt"
	"time"

	"tg-remind-bot/internal/domain"
)

// DaysIn возвращает число дней в месяце.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidDate проверяет, что день существует в указанном месяце года.
func ValidDate(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 {
		return false
	}
	return day <= DaysIn(year, month)
}

// ValidMonthDay проверяет, что (месяц, день) существует хотя бы в високосном году.
func ValidMonthDay(month time.Month, day int) bool {
	return ValidDate(2024, month, day)
}

// Date строит момент времени без нормализации: 31.02 или 24:00, ошибка.
func Date(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	if !ValidDate(year, month, day) {
		return time.Time{}, fmt.Errorf("%w: %02d.%02d.%04d", domain.ErrInvalidCalendarDate, day, int(month), year)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %02d:%02d", domain.ErrInvalidCalendarDate, hour, minute)
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc), nil
}

// At возвращает дату t с заданным временем суток в зоне t.
func At(t time.Time, tod domain.TimeOfDay) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), tod.Hour, tod.Minute, 0, 0, t.Location())
}

// StartOfDay возвращает полночь дня t.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// AddDays сдвигает дату на n календарных дней, сохраняя время на часах.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// AddMonths сдвигает на n месяцев; если дня нет в целевом месяце, берётся последний.
// 31.01 + 1 месяц = 28.02 (или 29.02 в високосный год).
func AddMonths(t time.Time, n int) time.Time {
	total := int(t.Month()) - 1 + n
	year := t.Year() + floorDiv(total, 12)
	month := time.Month(floorMod(total, 12) + 1)
	day := t.Day()
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// AddYears сдвигает на n лет; 29.02 превращается в 28.02 в невисокосный год.
func AddYears(t time.Time, n int) time.Time {
	return AddMonths(t, 12*n)
}

// MonthOffset возвращает год и месяц через n месяцев от (year, month).
func MonthOffset(year int, month time.Month, n int) (int, time.Month) {
	total := int(month) - 1 + n
	return year + floorDiv(total, 12), time.Month(floorMod(total, 12) + 1)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
