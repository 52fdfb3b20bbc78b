package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// counter increments a window key and returns the new count. The key must
// expire after ttl even when it was created by another instance.
type counter interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// txCounter sends INCR and EXPIRE NX in one MULTI/EXEC, so a key never
// outlives its window.
type txCounter struct {
	rdb goredis.Cmdable
}

func (c txCounter) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Redis is a fixed-window counter shared by every server instance.
type Redis struct {
	rdb    counter
	policy Policy
	prefix string
	now    func() time.Time
}

func NewRedis(rdb *goredis.Client, p Policy) *Redis {
	return newRedis(txCounter{rdb: rdb}, p)
}

func newRedis(rdb counter, p Policy) *Redis {
	return &Redis{rdb: rdb, policy: p, prefix: "ratelimit:" + p.Name + ":", now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	window := r.policy.Window
	slot := now.UnixNano() / int64(window)
	windowEnd := time.Unix(0, (slot+1)*int64(window))

	k := fmt.Sprintf("%s%s:%d", r.prefix, key, slot)
	n, err := r.rdb.IncrWindow(ctx, k, window)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr: %w", err)
	}

	d := Decision{Limit: r.policy.Quota}
	if n <= int64(r.policy.Quota) {
		d.Allowed = true
		d.Remaining = r.policy.Quota - int(n)
		return d, nil
	}
	d.RetryAfter = windowEnd.Sub(now)
	if d.RetryAfter < time.Second {
		d.RetryAfter = time.Second
	}
	return d, nil
}
