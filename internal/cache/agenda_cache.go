package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/pkg/caldate"
	"go.uber.org/zap"
)

// AgendaCache stores rendered agenda days per organization. Entries are
// versioned per org, so invalidation bumps the version instead of scanning
// keys. Without redis it keeps the same scheme in process memory.
type AgendaCache struct {
	client   *redis.Client
	settings *config.BoardSettings
	log      *zap.Logger

	mu       sync.Mutex
	versions map[snowflake.ID]int64
	local    Cache[string, []byte]
}

func NewAgendaCache(client *redis.Client, settings *config.BoardSettings, log *zap.Logger) *AgendaCache {
	return &AgendaCache{
		client:   client,
		settings: settings,
		log:      log.Named("cache.agenda"),
		versions: make(map[snowflake.ID]int64),
		local:    NewTTLCache[string, []byte](),
	}
}

// Get decodes the cached day into dst and reports whether it was found.
func (c *AgendaCache) Get(ctx context.Context, orgID snowflake.ID, day caldate.Date, dst any) bool {
	if c == nil || c.settings.Get().Agenda.CacheTTL <= 0 {
		return false
	}
	key, err := c.dayKey(ctx, orgID, day)
	if err != nil {
		c.log.Warn("agenda cache version lookup failed", zap.Error(err))
		return false
	}

	var raw []byte
	if c.client != nil {
		raw, err = c.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return false
		}
		if err != nil {
			c.log.Warn("agenda cache get failed", zap.Error(err))
			return false
		}
	} else {
		var ok bool
		if raw, ok = c.local.Get(key); !ok {
			return false
		}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("agenda cache entry unreadable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *AgendaCache) Set(ctx context.Context, orgID snowflake.ID, day caldate.Date, value any) {
	if c == nil {
		return
	}
	ttl := c.settings.Get().Agenda.CacheTTL
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("agenda cache encode failed", zap.Error(err))
		return
	}
	key, err := c.dayKey(ctx, orgID, day)
	if err != nil {
		c.log.Warn("agenda cache version lookup failed", zap.Error(err))
		return
	}
	if c.client == nil {
		c.local.Set(key, raw, ttl)
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn("agenda cache set failed", zap.Error(err))
	}
}

// InvalidateOrg makes every cached day of orgID unreachable.
func (c *AgendaCache) InvalidateOrg(ctx context.Context, orgID snowflake.ID) {
	if c == nil {
		return
	}
	if c.client == nil {
		c.mu.Lock()
		c.versions[orgID]++
		c.mu.Unlock()
		return
	}
	if err := c.client.Incr(ctx, versionKey(orgID)).Err(); err != nil {
		c.log.Warn("agenda cache invalidate failed", zap.String("org_id", orgID.String()), zap.Error(err))
	}
}

func (c *AgendaCache) dayKey(ctx context.Context, orgID snowflake.ID, day caldate.Date) (string, error) {
	var version int64
	if c.client == nil {
		c.mu.Lock()
		version = c.versions[orgID]
		c.mu.Unlock()
	} else {
		v, err := c.client.Get(ctx, versionKey(orgID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return "", err
		}
		version = v
	}
	return fmt.Sprintf("agenda:%s:v%d:%s", orgID.String(), version, day.String()), nil
}

func versionKey(orgID snowflake.ID) string {
	return "agenda:" + orgID.String() + ":version"
}
