package middleware

import (
	"context"
	"sync"
	"time"

	"chatcore/internal/redis"

	"github.com/google/uuid"
)

// MemoryConnectionLimiter is a per-process sliding window of handshakes,
// used when no redis is configured.
type MemoryConnectionLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu          sync.Mutex
	connections map[uuid.UUID][]time.Time
}

func NewMemoryConnectionLimiter(limit int, window time.Duration) *MemoryConnectionLimiter {
	return &MemoryConnectionLimiter{
		limit:       limit,
		window:      window,
		now:         time.Now,
		connections: make(map[uuid.UUID][]time.Time),
	}
}

func (w *MemoryConnectionLimiter) AllowConnection(_ context.Context, userID uuid.UUID) (*redis.RateLimitResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	windowStart := now.Add(-w.window)

	valid := w.connections[userID][:0]
	for _, t := range w.connections[userID] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	result := &redis.RateLimitResult{Limit: w.limit, ResetIn: w.window}
	if len(valid) > 0 {
		result.ResetIn = valid[0].Add(w.window).Sub(now)
	}
	if len(valid) >= w.limit {
		w.connections[userID] = valid
		return result, nil
	}

	w.connections[userID] = append(valid, now)
	result.Allowed = true
	result.Remaining = w.limit - len(valid) - 1
	return result, nil
}

// Run drops idle users every interval until ctx is done.
func (w *MemoryConnectionLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup()
		}
	}
}

func (w *MemoryConnectionLimiter) cleanup() {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.window)
	for userID, times := range w.connections {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(w.connections, userID)
		}
	}
}
