package config

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Madrid"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token       string        `envconfig:"TG_BOT_TOKEN" required:"true"`
		WebhookURL  string        `envconfig:"TG_WEBHOOK_URL"`
		SendTimeout time.Duration `envconfig:"TG_SEND_TIMEOUT" default:"10s"`
		SendRPS     float64       `envconfig:"TG_SEND_RPS" default:"25"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN" required:"true"`

	RedisURL string `envconfig:"REDIS_URL"`

	Delivery struct {
		Interval           time.Duration `envconfig:"DELIVERY_INTERVAL" default:"10s"`
		EscalationInterval time.Duration `envconfig:"ESCALATION_INTERVAL" default:"30s"`
		EscalateAfter      time.Duration `envconfig:"ESCALATE_AFTER" default:"20m"`
		AckActions         []string      `envconfig:"ACK_ACTIONS" default:"done,snooze,del"`
	} `envconfig:""`

	Undo struct {
		TTL time.Duration `envconfig:"UNDO_TTL" default:"48h"`
	} `envconfig:""`

	Housekeeping struct {
		Cron      string        `envconfig:"HOUSEKEEPING_CRON" default:"@daily"`
		Retention time.Duration `envconfig:"DELIVERED_RETENTION" default:"2160h"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения. Файл .env, если он есть, читается первым.
func Load() AppConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("не удалось прочитать .env: %v", err)
	}
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает конфиг из окружения без завершения процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
