package telegram

import "strings"

// Лимит Bot API на длину текста сообщения в символах.
const messageLimit = 4096

// SplitMessage делит текст на части в пределах лимита Telegram.
// Разрез ищется по переводу строки, затем по пробелу, и только потом посреди слова.
func SplitMessage(text string) []string {
	return splitRunes([]rune(strings.TrimSpace(text)), messageLimit)
}

func splitRunes(runes []rune, limit int) []string {
	var parts []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			parts = append(parts, string(runes))
			break
		}
		window := runes[:limit+1]
		cut := lastRune(window, '\n')
		if cut <= 0 {
			cut = lastRune(window, ' ')
		}
		if cut <= 0 {
			cut = limit
		}
		if part := strings.TrimRight(string(runes[:cut]), " \n"); part != "" {
			parts = append(parts, part)
		}
		runes = runes[cut:]
		for len(runes) > 0 && (runes[0] == '\n' || runes[0] == ' ') {
			runes = runes[1:]
		}
	}
	return parts
}

func lastRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
