// Package ratelimit provides Redis-backed request throttling using the
// INCR + EXPIRE fixed window algorithm. forumd applies it per authenticated
// user in front of the write endpoints, independently of the per-post
// duplicate and rapid-posting checks of the submission pipeline.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Rule is one throttling policy. Counters live under Prefix+identifier and
// reset Window after the first hit.
type Rule struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// Forum request rules, keyed by user id.
var (
	// RuleSubmit allows 10 topic or reply creations per minute.
	RuleSubmit = Rule{Prefix: "rl:submit:", Limit: 10, Window: time.Minute}

	// RuleReport allows 5 reports per minute.
	RuleReport = Rule{Prefix: "rl:report:", Limit: 5, Window: time.Minute}

	// RuleAdmin allows 60 admin actions per minute.
	RuleAdmin = Rule{Prefix: "rl:admin:", Limit: 60, Window: time.Minute}
)

type Limiter struct {
	client *redis.Client
	logger *zap.Logger
}

func NewLimiter(client *redis.Client, logger *zap.Logger) *Limiter {
	return &Limiter{client: client, logger: logger.Named("ratelimit")}
}

// Allow counts one hit for identifier under rule and reports whether it is
// still within the limit. INCR and EXPIRE NX run in one MULTI so a counter
// never outlives its window. Redis errors fail open and are returned for
// callers that want to record them.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Prefix + identifier

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.ExpireNX(ctx, key, rule.Window)
		return nil
	})
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing", zap.String("key", key), zap.Error(err))
		return true, err
	}
	return incr.Val() <= int64(rule.Limit), nil
}

// Remaining returns how many hits identifier has left in the current
// window. A missing counter or a Redis error yields the full limit.
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	key := rule.Prefix + identifier

	used, err := l.client.Get(ctx, key).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return rule.Limit, nil
	case err != nil:
		l.logger.Warn("rate limit lookup failed", zap.String("key", key), zap.Error(err))
		return rule.Limit, err
	}
	return max(rule.Limit-used, 0), nil
}

// RetryAfter returns how long until the identifier's window resets. It
// returns the full window when the key has no TTL or on Redis errors.
func (l *Limiter) RetryAfter(ctx context.Context, identifier string, rule Rule) time.Duration {
	ttl, err := l.client.TTL(ctx, rule.Prefix+identifier).Result()
	if err != nil || ttl <= 0 {
		return rule.Window
	}
	return ttl
}
