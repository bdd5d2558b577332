package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "taskboard:lock:"

// releaseIfOwner deletes the lease key only while it still carries the
// caller's token, so an expired lease never removes a newer holder's key.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var (
	ErrLockUnavailable = errors.New("lock_unavailable")
	ErrInvalidLease    = errors.New("invalid_lease")
)

// Locker hands out short Redis leases used to keep reminder sends and
// scheduler ticks single-flight across replicas.
type Locker struct {
	client *redis.Client
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

// Acquire returns nil without error when another holder owns the key.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, ErrLockUnavailable
	}
	if name == "" || ttl <= 0 {
		return nil, ErrInvalidLease
	}

	lease := &Lease{locker: l, key: lockKeyPrefix + name, token: uuid.NewString()}
	ok, err := l.client.SetNX(ctx, lease.key, lease.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

func (lease *Lease) Release(ctx context.Context) error {
	if lease == nil || lease.token == "" {
		return nil
	}
	token := lease.token
	lease.token = ""
	return releaseIfOwner.Run(ctx, lease.locker.client, []string{lease.key}, token).Err()
}
