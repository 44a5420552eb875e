package calendar

import (
	"errors"
	"testing"
	"time"

	"tg-remind-bot/internal/domain"
)

func TestAddMonthsClampsToLastDay(t *testing.T) {
	cases := []struct {
		from time.Time
		n    int
		want string
	}{
		{time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC), 1, "2025-02-28 10:00"},
		{time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC), 1, "2024-02-29 10:00"},
		{time.Date(2025, 11, 28, 10, 0, 0, 0, time.UTC), 1, "2025-12-28 10:00"},
		{time.Date(2025, 12, 31, 9, 30, 0, 0, time.UTC), 2, "2026-02-28 09:30"},
		{time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), -1, "2025-02-28 00:00"},
		{time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC), 25, "2027-06-15 00:00"},
	}
	for _, tc := range cases {
		got := AddMonths(tc.from, tc.n).Format("2006-01-02 15:04")
		if got != tc.want {
			t.Fatalf("AddMonths(%s, %d) = %s, ожидали %s", tc.from.Format(time.DateOnly), tc.n, got, tc.want)
		}
	}
}

func TestAddYearsLeapDay(t *testing.T) {
	got := AddYears(time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), 1)
	if got.Month() != time.February || got.Day() != 28 || got.Year() != 2025 {
		t.Fatalf("ожидали 28.02.2025, получили %s", got.Format(time.DateOnly))
	}
	got = AddYears(time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), 4)
	if got.Day() != 29 {
		t.Fatalf("ожидали 29.02.2028, получили %s", got.Format(time.DateOnly))
	}
}

func TestDateRejectsImpossibleValues(t *testing.T) {
	cases := []struct {
		y, m, d, h, min int
	}{
		{2025, 2, 31, 10, 0},
		{2025, 2, 29, 10, 0},
		{2025, 13, 1, 10, 0},
		{2025, 4, 31, 10, 0},
		{2025, 4, 30, 24, 0},
		{2025, 4, 30, 10, 60},
	}
	for _, tc := range cases {
		_, err := Date(tc.y, time.Month(tc.m), tc.d, tc.h, tc.min, time.UTC)
		if !errors.Is(err, domain.ErrInvalidCalendarDate) {
			t.Fatalf("%v: ожидали ErrInvalidCalendarDate, получили %v", tc, err)
		}
	}
	if _, err := Date(2024, time.February, 29, 23, 59, time.UTC); err != nil {
		t.Fatalf("29.02.2024 должна быть валидной: %v", err)
	}
}

func TestValidMonthDay(t *testing.T) {
	if !ValidMonthDay(time.February, 29) {
		t.Fatal("29 февраля существует в високосные годы")
	}
	if ValidMonthDay(time.February, 30) || ValidMonthDay(time.April, 31) {
		t.Fatal("несуществующие даты должны отклоняться")
	}
}
