package timeparse

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"tg-remind-bot/internal/domain"
)

const layout = "02.01.2006 15:04"

// fixedNow: пятница 28.11.2025 10:00 по Мадриду.
func fixedNow(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Fatalf("нет зоны Europe/Madrid: %v", err)
	}
	return time.Date(2025, 11, 28, 10, 0, 0, 0, loc)
}

func TestSplit(t *testing.T) {
	expr, body, err := Split("29.11 10:00 - hello")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if expr != "29.11 10:00" || body != "hello" {
		t.Fatalf("неожиданный разбор: %q / %q", expr, body)
	}

	expr, body, err = Split("tomorrow — call – mom")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if expr != "tomorrow — call" || body != "mom" {
		t.Fatalf("делим по последнему разделителю, получили %q / %q", expr, body)
	}

	for _, input := range []string{"tomorrow call mom", " - text", "tomorrow - ", "tomorrow-text"} {
		if _, _, err := Split(input); !errors.Is(err, domain.ErrMalformedExpression) {
			t.Fatalf("%q: ожидали ErrMalformedExpression, получили %v", input, err)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"On Thursday at 20:30": "thursday 20:30",
		"в четверг в 20.30":    "четверг 20:30",
		"29.11 10:00":          "29.11 10:00",
		"12.12":                "12.12",
		"10.30":                "10:30",
		"  Завтра   В 9:15 ":   "завтра 9:15",
		"на следующей неделе":  "следующей неделе",
		"99.99":                "99.99",
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Fatalf("Normalize(%q) = %q, ожидали %q", input, got, want)
		}
	}
}

func TestParseScenarios(t *testing.T) {
	now := fixedNow(t)
	cases := []struct {
		input string
		want  string
		body  string
	}{
		{"in 2 hours - call mom", "28.11.2025 12:00", "call mom"},
		{"через 45 минут - t", "28.11.2025 10:45", "t"},
		{"через час - t", "28.11.2025 11:00", "t"},
		{"in an hour - t", "28.11.2025 11:00", "t"},
		{"in 3 days - t", "01.12.2025 10:00", "t"},
		{"через 2 недели - t", "12.12.2025 10:00", "t"},
		{"in 1 month - t", "28.12.2025 10:00", "t"},
		{"через 1 год - t", "28.11.2026 10:00", "t"},
		{"через 3 дня 09:30 - t", "01.12.2025 09:30", "t"},
		{"next Monday 10:00 - standup", "01.12.2025 10:00", "standup"},
		{"следующий понедельник 10:00 - t", "01.12.2025 10:00", "t"},
		{"weekend - clean house", "29.11.2025 11:00", "clean house"},
		{"weekday 09:00 - t", "01.12.2025 09:00", "t"},
		{"workday 09:00 - t", "01.12.2025 09:00", "t"},
		{"выходные - t", "29.11.2025 11:00", "t"},
		{"будний день 09:00 - t", "01.12.2025 09:00", "t"},
		{"next week - t", "01.12.2025 11:00", "t"},
		{"next month - t", "28.12.2025 11:00", "t"},
		{"на следующей неделе - t", "01.12.2025 11:00", "t"},
		{"today 18:00 - t", "28.11.2025 18:00", "t"},
		{"tomorrow - t", "29.11.2025 11:00", "t"},
		{"day after tomorrow 10:00 - t", "30.11.2025 10:00", "t"},
		{"послезавтра - t", "30.11.2025 11:00", "t"},
		{"завтра в 9:15 - t", "29.11.2025 09:15", "t"},
		{"10:00 tomorrow - t", "29.11.2025 10:00", "t"},
		{"on thursday at 20:30 - test", "04.12.2025 20:30", "test"},
		{"в четверг в 20.30 - test", "04.12.2025 20:30", "test"},
		{"on 25 december at 20:30 - test", "25.12.2025 20:30", "test"},
		{"december 25 - t", "25.12.2025 11:00", "t"},
		{"1 января - t", "01.01.2026 11:00", "t"},
		{"29.11 12:00 - hello", "29.11.2025 12:00", "hello"},
		{"29.11 - hi", "29.11.2025 11:00", "hi"},
		{"23:59 - t", "28.11.2025 23:59", "t"},
		{"09:00 - t", "29.11.2025 09:00", "t"},
		{"at 10:00 - t", "29.11.2025 10:00", "t"},
		{"27.11 10:00 - t", "27.11.2026 10:00", "t"},
		{"28.11 09:58 - t", "28.11.2026 09:58", "t"},
		{"28.11 09:59 - t", "28.11.2025 09:59", "t"},
		{"28.11 10:00 - t", "28.11.2025 10:00", "t"},
		{"01.03.2027 08:00 - t", "01.03.2027 08:00", "t"},
		{"friday 12:00 - t", "28.11.2025 12:00", "t"},
		{"friday - t", "28.11.2025 11:00", "t"},
		{"this friday 09:00 - t", "05.12.2025 09:00", "t"},
		{"next friday 12:00 - t", "05.12.2025 12:00", "t"},
		{"ближайшую субботу - t", "29.11.2025 11:00", "t"},
	}
	for _, tc := range cases {
		due, body, err := Parse(tc.input, now)
		if err != nil {
			t.Fatalf("%q: не ожидали ошибку: %v", tc.input, err)
		}
		if got := due.Format(layout); got != tc.want {
			t.Fatalf("%q: получили %s, ожидали %s", tc.input, got, tc.want)
		}
		if body != tc.body {
			t.Fatalf("%q: текст %q, ожидали %q", tc.input, body, tc.body)
		}
		if due.Location() != now.Location() {
			t.Fatalf("%q: дата должна быть в зоне now", tc.input)
		}
	}
}

func TestParseRelativeIsExactDuration(t *testing.T) {
	now := fixedNow(t)
	due, _, err := Parse("in 2 hours - t", now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !due.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("ожидали now+2h, получили %v", due)
	}
}

func TestParseMonthShiftClamps(t *testing.T) {
	loc := fixedNow(t).Location()
	now := time.Date(2025, 1, 31, 9, 0, 0, 0, loc)
	due, _, err := Parse("через 1 месяц - t", now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got := due.Format(layout); got != "28.02.2025 09:00" {
		t.Fatalf("ожидали прижатие к 28.02, получили %s", got)
	}
}

func TestParseErrors(t *testing.T) {
	now := fixedNow(t)
	malformed := []string{
		"soon - t",
		"next year - t",
		"in 0 minutes - t",
		"через 2 часа 10:00 - t",
		"15 - t",
		"this week - t",
		"no separator",
	}
	for _, input := range malformed {
		if _, _, err := Parse(input, now); !errors.Is(err, domain.ErrMalformedExpression) {
			t.Fatalf("%q: ожидали ErrMalformedExpression, получили %v", input, err)
		}
	}
	invalid := []string{
		"31.02 10:00 - t",
		"30 february - t",
		"29.02 - t",
		"29.11 25:00 - t",
		"10:75 - t",
		"31.04.2026 - t",
	}
	for _, input := range invalid {
		_, _, err := Parse(input, now)
		if !errors.Is(err, domain.ErrInvalidCalendarDate) {
			t.Fatalf("%q: ожидали ErrInvalidCalendarDate, получили %v", input, err)
		}
		if errors.Is(err, domain.ErrMalformedExpression) {
			t.Fatalf("%q: ошибки календаря должны отличаться от ошибок формата", input)
		}
	}
}

func TestParseNaturalPhrases(t *testing.T) {
	now := fixedNow(t)
	cases := []struct {
		input string
		want  string
	}{
		{"at 5pm - x", "28.11.2025 17:00"},
		{"tonight - x", "28.11.2025 23:00"},
		{"в 5 вечера - x", "28.11.2025 17:00"},
		{"next tuesday at 3pm - x", "02.12.2025 15:00"},
		{"at 9am - x", "29.11.2025 09:00"},
	}
	for _, c := range cases {
		due, body, err := Parse(c.input, now)
		if err != nil {
			t.Fatalf("%q: не ожидали ошибку: %v", c.input, err)
		}
		if got := due.Format(layout); got != c.want {
			t.Fatalf("%q: ожидали %s, получили %s", c.input, c.want, got)
		}
		if body != "x" {
			t.Fatalf("%q: неожиданный текст %q", c.input, body)
		}
	}

	// Фраза должна покрывать всё выражение.
	if _, _, err := Parse("5pm call bob - x", now); !errors.Is(err, domain.ErrMalformedExpression) {
		t.Fatalf("ожидали ErrMalformedExpression, получили %v", err)
	}
}

func TestParseErrorCarriesFragment(t *testing.T) {
	now := fixedNow(t)
	cases := map[string]string{
		"31.02 10:00 - t":  "31.02 10:00",
		"когда-нибудь - t": "когда-нибудь",
		"no separator":     "no separator",
	}
	for input, want := range cases {
		_, _, err := Parse(input, now)
		if err == nil {
			t.Fatalf("%q: ожидали ошибку", input)
		}
		got, ok := domain.FragmentOf(err)
		if !ok || got != want {
			t.Fatalf("%q: ожидали фрагмент %q, получили %q (%v)", input, want, got, err)
		}
	}
}

func TestParseAbsoluteRoundTrip(t *testing.T) {
	now := fixedNow(t)
	for month := 1; month <= 12; month++ {
		for _, day := range []int{1, 9, 15, 28} {
			for _, hm := range [][2]int{{0, 0}, {9, 5}, {10, 0}, {23, 59}} {
				expr := fmt.Sprintf("%02d.%02d %02d:%02d", day, month, hm[0], hm[1])
				due, body, err := Parse(expr+" - text", now)
				if err != nil {
					t.Fatalf("%q: не ожидали ошибку: %v", expr, err)
				}
				if got := due.Format("02.01 15:04"); got != expr {
					t.Fatalf("round-trip %q дал %q", expr, got)
				}
				if body != "text" {
					t.Fatalf("%q: текст %q", expr, body)
				}
				if due.Before(now.Add(-time.Minute)) {
					t.Fatalf("%q: прошедшая дата должна переноситься на следующий год", expr)
				}
			}
		}
	}
}

func TestIsExpressionWord(t *testing.T) {
	for _, w := range []string{"tomorrow", "day", "every", "29.11", "в", "понедельник", "december", "через", "next", "каждый"} {
		if !IsExpressionWord(w) {
			t.Fatalf("%q должно считаться началом выражения", w)
		}
	}
	for _, w := range []string{"football", "family", "work_chat", ""} {
		if IsExpressionWord(w) {
			t.Fatalf("%q не должно считаться началом выражения", w)
		}
	}
}
