package routing

import (
	"context"
	"errors"
	"testing"

	"tg-remind-bot/internal/adapters/memstore"
	"tg-remind-bot/internal/domain"
)

func TestSplitTarget(t *testing.T) {
	cases := []struct {
		text   string
		target string
		rest   string
		ok     bool
	}{
		{"football next monday 10:00 - match", "football", "next monday 10:00 - match", true},
		{"@alice_b tomorrow - call", "@alice_b", "tomorrow - call", true},
		{"Семья завтра - ужин", "семья", "завтра - ужин", true},
		{"tomorrow - call", "", "tomorrow - call", false},
		{"29.11 10:00 - call", "", "29.11 10:00 - call", false},
		{"через 2 часа - x", "", "через 2 часа - x", false},
		{"every day - x", "", "every day - x", false},
		{"football", "", "football", false},
	}
	for _, tc := range cases {
		target, rest, ok := SplitTarget(tc.text)
		if ok != tc.ok || target.Raw != tc.target || rest != tc.rest {
			t.Fatalf("SplitTarget(%q) = %q, %q, %v", tc.text, target.Raw, rest, ok)
		}
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	r := NewResolver(store, store)
	if err := r.Link(ctx, "Football", -100, "Футбол", 7); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := r.Link(ctx, "tomorrow", -100, "", 7); err == nil {
		t.Fatalf("слово из выражений времени не может быть алиасом")
	}
	_ = r.RememberUser(ctx, domain.UserChat{UserID: 5, ChatID: 5, Username: "alice_b"})

	chatID, err := r.Resolve(ctx, Target{Raw: "football"})
	if err != nil || chatID != -100 {
		t.Fatalf("ожидали -100, получили %d (%v)", chatID, err)
	}
	chatID, err = r.Resolve(ctx, Target{Raw: "@alice_b", Username: true})
	if err != nil || chatID != 5 {
		t.Fatalf("ожидали 5, получили %d (%v)", chatID, err)
	}
	_, err = r.Resolve(ctx, Target{Raw: "chess"})
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("ожидали ErrUnknownTarget, получили %v", err)
	}
	var unknown *UnknownTargetError
	if !errors.As(err, &unknown) || unknown.Raw != "chess" || len(unknown.Known) != 1 || unknown.Known[0] != "football" {
		t.Fatalf("ожидали подсказку с известными алиасами, получили %+v", unknown)
	}
	_, err = r.Resolve(ctx, Target{Raw: "@nobody_here", Username: true})
	if !errors.As(err, &unknown) || unknown.Raw != "@nobody_here" || len(unknown.Known) != 0 {
		t.Fatalf("для @username алиасы не подсказываем, получили %+v", unknown)
	}
}
