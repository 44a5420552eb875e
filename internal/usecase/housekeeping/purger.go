// Package housekeeping удаляет старые обработанные напоминания по расписанию cron.
package housekeeping

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tg-remind-bot/internal/domain"
)

// DefaultRetention: сколько хранить доставленные и обработанные напоминания.
const DefaultRetention = 90 * 24 * time.Hour

// Purger периодически чистит хранилище.
type Purger struct {
	cron      *cron.Cron
	reminders domain.ReminderRepo
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewPurger создаёт планировщик очистки в зоне loc.
func NewPurger(reminders domain.ReminderRepo, retention time.Duration, loc *time.Location, logger zerolog.Logger) *Purger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Purger{
		cron:      cron.New(cron.WithLocation(loc)),
		reminders: reminders,
		retention: retention,
		log:       logger,
		now:       time.Now,
	}
}

// Start регистрирует задачу по выражению spec ("@daily", "0 4 * * *") и запускает планировщик.
func (p *Purger) Start(ctx context.Context, spec string) error {
	if _, err := p.cron.AddFunc(spec, func() {
		if _, err := p.PurgeOnce(ctx); err != nil {
			p.log.Error().Err(err).Msg("housekeeping: очистка не удалась")
		}
	}); err != nil {
		return fmt.Errorf("расписание очистки %q: %w", spec, err)
	}
	p.cron.Start()
	p.log.Info().Str("spec", spec).Dur("retention", p.retention).Msg("housekeeping: планировщик запущен")
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущей задачи.
func (p *Purger) Stop() {
	<-p.cron.Stop().Done()
}

// PurgeOnce удаляет напоминания, обработанные раньше, чем retention назад.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	before := p.now().Add(-p.retention)
	purged, err := p.reminders.PurgeDelivered(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("очистка напоминаний: %w", err)
	}
	if purged > 0 {
		p.log.Info().Int64("purged", purged).Time("before", before).Msg("housekeeping: удалены старые напоминания")
	}
	return purged, nil
}
