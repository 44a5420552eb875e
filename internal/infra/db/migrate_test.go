package db

import (
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	names, err := migrationNames()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(names) == 0 || names[0] != "001_init.sql" {
		t.Fatalf("ожидали 001_init.sql первой миграцией, получили %v", names)
	}
	content, _ := migrationsFS.ReadFile("migrations/" + names[0])
	for _, table := range []string{"recurring_templates", "reminders", "chat_aliases", "user_chats", "business_metrics"} {
		if !strings.Contains(string(content), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("миграция должна создавать таблицу %s", table)
		}
	}
}
