// Package undo хранит снимки удалений под одноразовыми токенами.
package undo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-remind-bot/internal/domain"
	"tg-remind-bot/internal/infra/metrics"
)

// Redis реализует domain.UndoStore: SET EX при сохранении и GETDEL при чтении.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт хранилище. Ключи имеют вид <prefix><owner>:<token>.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "undo:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(owner int64, token string) string {
	return fmt.Sprintf("%s%d:%s", r.prefix, owner, token)
}

// Save сохраняет снимок на ttl.
func (r *Redis) Save(ctx context.Context, owner int64, token string, snap domain.Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	start := time.Now()
	err = r.client.Set(ctx, r.key(owner, token), payload, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set", "undo", start, err)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Take атомарно забирает снимок.
func (r *Redis) Take(ctx context.Context, owner int64, token string) (domain.Snapshot, error) {
	start := time.Now()
	payload, err := r.client.GetDel(ctx, r.key(owner, token)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "getdel", "undo", start, nil)
		return domain.Snapshot{}, domain.ErrAlreadyConsumed
	}
	metrics.ObserveNetworkRequest("redis", "getdel", "undo", start, err)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("take snapshot: %w", err)
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

var _ domain.UndoStore = (*Redis)(nil)
