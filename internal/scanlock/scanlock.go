// Package scanlock implements the short-lived scan lock that turns scanner
// retransmissions into cheap rejections. A marker is created only if none
// exists and disappears after its TTL, after which the same key is fresh
// again. The lock is a fast-path filter; row locks in the store remain the
// source of truth.
package scanlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

var (
	_ warehouse.Gate = (*Redis)(nil)
	_ warehouse.Gate = (*Memory)(nil)
)

// Redis stores markers with SET key value NX EX ttl.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing client. The caller owns the client's lifecycle.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// TryAcquire reports whether the marker for key was created by this call.
func (r *Redis) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, "locked", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Memory keeps markers in process. Expired markers are swept lazily on
// access.
type Memory struct {
	mu      sync.Mutex
	markers map[string]time.Time
	now     func() time.Time
}

// NewMemory constructs a Memory gate. A nil clock means time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		markers: make(map[string]time.Time),
		now:     now,
	}
}

// TryAcquire reports whether the marker for key was created by this call.
func (m *Memory) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if deadline, ok := m.markers[key]; ok && now.Before(deadline) {
		return false, nil
	}
	m.markers[key] = now.Add(ttl)
	if len(m.markers) > 1024 {
		m.sweep(now)
	}
	return true, nil
}

func (m *Memory) sweep(now time.Time) {
	for k, deadline := range m.markers {
		if !now.Before(deadline) {
			delete(m.markers, k)
		}
	}
}
