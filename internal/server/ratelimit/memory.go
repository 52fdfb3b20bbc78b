package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Memory keeps one token bucket per key: burst equals the quota and the
// bucket refills the whole quota over one window.
type Memory struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewMemory(p Policy) *Memory {
	return &Memory{policy: p, now: time.Now, buckets: map[string]*bucket{}}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok {
		every := m.policy.Window / time.Duration(m.policy.Quota)
		b = &bucket{lim: rate.NewLimiter(rate.Every(every), m.policy.Quota)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	m.mu.Unlock()

	d := Decision{Limit: m.policy.Quota}
	if b.lim.AllowN(now, 1) {
		d.Allowed = true
		d.Remaining = int(b.lim.TokensAt(now))
		return d, nil
	}

	r := b.lim.ReserveN(now, 1)
	d.RetryAfter = r.DelayFrom(now)
	r.CancelAt(now)
	if d.RetryAfter < time.Second {
		d.RetryAfter = time.Second
	}
	return d, nil
}

// Sweep forgets keys idle for longer than idle.
func (m *Memory) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done. Keys idle for two windows
// are dropped; a new bucket for them starts full, which is what an idle
// bucket would have refilled to anyway.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep(2 * m.policy.Window)
		}
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}
