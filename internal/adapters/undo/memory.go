package undo

import (
	"context"
	"sync"
	"time"

	"tg-remind-bot/internal/domain"
)

type entry struct {
	snap    domain.Snapshot
	expires time.Time
}

type memoryKey struct {
	owner int64
	token string
}

// Memory: хранилище снимков в памяти процесса.
type Memory struct {
	mu      sync.Mutex
	entries map[memoryKey]entry
	now     func() time.Time
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{entries: make(map[memoryKey]entry), now: time.Now}
}

func (m *Memory) Save(ctx context.Context, owner int64, token string, snap domain.Snapshot, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[memoryKey{owner: owner, token: token}] = entry{snap: snap, expires: now.Add(ttl)}
	return nil
}

func (m *Memory) Take(ctx context.Context, owner int64, token string) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey{owner: owner, token: token}
	e, ok := m.entries[k]
	if !ok {
		return domain.Snapshot{}, domain.ErrAlreadyConsumed
	}
	delete(m.entries, k)
	if !m.now().Before(e.expires) {
		return domain.Snapshot{}, domain.ErrAlreadyConsumed
	}
	return e.snap, nil
}

var _ domain.UndoStore = (*Memory)(nil)
