// Package ratelimit decides whether a caller may proceed under a quota per
// window. Rejected calls are never queued.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Policy is a named quota: Quota calls per Window per key.
type Policy struct {
	Name   string
	Quota  int
	Window time.Duration
}

// Decision is the result of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// New builds a limiter for p on the named backend ("memory" or "redis").
// client is only used by the redis backend.
func New(backend string, p Policy, client *goredis.Client) (Limiter, error) {
	if p.Quota <= 0 || p.Window <= 0 {
		return nil, fmt.Errorf("ratelimit: policy %q needs a positive quota and window", p.Name)
	}
	switch strings.ToLower(backend) {
	case "", "memory":
		return NewMemory(p), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("ratelimit: redis backend without a client")
		}
		return NewRedis(client, p), nil
	default:
		return nil, fmt.Errorf("ratelimit: unknown backend %q", backend)
	}
}
