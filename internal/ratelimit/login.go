package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taskboard/internal/config"
	"go.uber.org/zap"
)

const keyLoginAttempt = "auth:login:%s:%s"

// LoginLimiter throttles password attempts per client address and email.
type LoginLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

// NewLoginLimiter returns nil when limiting is disabled or redis is absent.
func NewLoginLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) *LoginLimiter {
	if !cfg.RateLimit.LoginEnabled || client == nil {
		return nil
	}
	return &LoginLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.LoginRate,
		burst:  cfg.RateLimit.LoginBurst,
		log:    log.Named("ratelimit.login"),
	}
}

// Allow consumes one attempt. Redis failures fail open.
func (l *LoginLimiter) Allow(ctx context.Context, ip, email string) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	key := fmt.Sprintf(keyLoginAttempt, strings.TrimSpace(ip), strings.ToLower(strings.TrimSpace(email)))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("login rate limit unavailable", zap.Error(err))
		return true, 0, nil
	}
	return res.Allowed, res.RetryAfter, nil
}
