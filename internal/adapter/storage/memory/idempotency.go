package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nusd-wallet/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct{ s *Store }

// NewIdempotencyRepo creates an IdempotencyRepo over s.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo { return &IdempotencyRepo{s: s} }

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	mt, err := r.s.tx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.idempotency[log.Key]; ok {
		return fmt.Errorf("insert idempotency log: key %q already recorded", log.Key)
	}
	remember(mt, r.s.idempotency, log.Key)
	r.s.idempotency[log.Key] = *log
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// IdempotencyCache implements ports.IdempotencyCache with expiring entries.
// It stands in for Redis when the cache is disabled.
type IdempotencyCache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	now   func() time.Time
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{items: make(map[string]cacheItem), now: time.Now}
}

// Get returns nil for missing or expired keys.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, nil
	}
	if !c.now().Before(item.expiresAt) {
		delete(c.items, key)
		return nil, nil
	}
	return item.value, nil
}

func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem{value: append([]byte(nil), value...), expiresAt: c.now().Add(ttl)}
	return nil
}
