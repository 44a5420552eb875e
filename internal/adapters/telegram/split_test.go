package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessageShortText(t *testing.T) {
	if parts := SplitMessage("  привет \n"); len(parts) != 1 || parts[0] != "привет" {
		t.Fatalf("короткий текст должен уйти одним сообщением: %q", parts)
	}
	if parts := SplitMessage(" \n "); parts != nil {
		t.Fatalf("пустой текст не отправляется: %q", parts)
	}
}

func TestSplitMessageRespectsLimit(t *testing.T) {
	text := strings.Repeat("я", 3000) + "\n" + strings.Repeat("б", 2000) + "\n" + strings.Repeat("в", 500)
	parts := SplitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, p := range parts {
		if n := utf8.RuneCountInString(p); n > messageLimit {
			t.Fatalf("часть %d длиннее лимита: %d", i, n)
		}
	}
	if parts[0] != strings.Repeat("я", 3000) {
		t.Fatalf("разрез должен пройти по переводу строки")
	}
}

func TestSplitRunesPrefersBoundaries(t *testing.T) {
	cases := []struct {
		text  string
		limit int
		want  []string
	}{
		{"#1 tea\n#2 milk\n#3 bread", 14, []string{"#1 tea\n#2 milk", "#3 bread"}},
		{"alpha beta gamma", 11, []string{"alpha beta", "gamma"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
	}
	for _, tc := range cases {
		got := splitRunes([]rune(tc.text), tc.limit)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Fatalf("%q/%d: получили %q, ожидали %q", tc.text, tc.limit, got, tc.want)
		}
	}
}
