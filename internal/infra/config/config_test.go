package config

import (
	"os"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("TG_BOT_TOKEN", "token")
	t.Setenv("PG_DSN", "postgres://localhost/reminders")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.Delivery.EscalateAfter != 20*time.Minute || cfg.Undo.TTL != 48*time.Hour {
		t.Fatalf("неожиданные значения по умолчанию: %+v", cfg)
	}
	if len(cfg.Delivery.AckActions) != 3 || cfg.Delivery.AckActions[0] != "done" {
		t.Fatalf("ACK_ACTIONS по умолчанию: %v", cfg.Delivery.AckActions)
	}
	if cfg.Housekeeping.Retention != 90*24*time.Hour {
		t.Fatalf("DELIVERED_RETENTION по умолчанию: %v", cfg.Housekeeping.Retention)
	}
}

func TestParseRequiresToken(t *testing.T) {
	t.Setenv("TG_BOT_TOKEN", "")
	os.Unsetenv("TG_BOT_TOKEN")
	t.Setenv("PG_DSN", "postgres://localhost/reminders")
	if _, err := Parse(); err == nil {
		t.Fatalf("без TG_BOT_TOKEN конфиг должен отклоняться")
	}
}

func TestParseRejectsMalformedDuration(t *testing.T) {
	t.Setenv("TG_BOT_TOKEN", "token")
	t.Setenv("PG_DSN", "postgres://localhost/reminders")
	t.Setenv("ESCALATE_AFTER", "soon")
	if _, err := Parse(); err == nil {
		t.Fatalf("некорректная длительность должна отклоняться")
	}
}
