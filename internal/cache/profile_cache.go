package cache

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	"golang.org/x/sync/singleflight"
)

const defaultProfileTTL = 60 * time.Second

// ProfileCache memoizes profile lookups. Concurrent misses for the same key
// share one load.
type ProfileCache struct {
	entries Cache[string, orgdomain.Profile]
	group   singleflight.Group
	ttl     time.Duration
}

func NewProfileCache() *ProfileCache {
	return &ProfileCache{
		entries: NewTTLCache[string, orgdomain.Profile](),
		ttl:     defaultProfileTTL,
	}
}

// Get returns a copy of the cached profile, calling load on a miss.
func (c *ProfileCache) Get(ctx context.Context, orgID, userID snowflake.ID, load func(context.Context) (*orgdomain.Profile, error)) (*orgdomain.Profile, error) {
	key := cacheKey(orgID.String(), userID.String())
	if profile, ok := c.entries.Get(key); ok {
		return &profile, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		profile, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Set(key, *profile, c.ttl)
		return *profile, nil
	})
	if err != nil {
		return nil, err
	}
	profile := v.(orgdomain.Profile)
	return &profile, nil
}

func (c *ProfileCache) Invalidate(orgID, userID snowflake.ID) {
	key := cacheKey(orgID.String(), userID.String())
	c.entries.Delete(key)
	c.group.Forget(key)
}
