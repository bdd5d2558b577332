package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	orgdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileCacheCoalescesLoads(t *testing.T) {
	c := NewProfileCache()
	var loads atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) (*orgdomain.Profile, error) {
		loads.Add(1)
		<-release
		return &orgdomain.Profile{ID: 2, OrgID: 1, FullName: "Ana"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Get(context.Background(), 1, 2, load)
			assert.NoError(t, err)
			assert.Equal(t, "Ana", p.FullName)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), loads.Load())

	p, err := c.Get(context.Background(), 1, 2, func(context.Context) (*orgdomain.Profile, error) {
		t.Fatal("expected cached value")
		return nil, nil
	})
	require.NoError(t, err)
	p.FullName = "mutated"

	again, err := c.Get(context.Background(), 1, 2, load)
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.FullName)
}

func TestProfileCacheInvalidateAndErrors(t *testing.T) {
	c := NewProfileCache()
	boom := errors.New("boom")

	_, err := c.Get(context.Background(), snowflake.ID(1), snowflake.ID(3), func(context.Context) (*orgdomain.Profile, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	name := "first"
	load := func(context.Context) (*orgdomain.Profile, error) {
		return &orgdomain.Profile{ID: 3, OrgID: 1, FullName: name}, nil
	}
	p, err := c.Get(context.Background(), 1, 3, load)
	require.NoError(t, err)
	assert.Equal(t, "first", p.FullName)

	name = "second"
	c.Invalidate(1, 3)
	p, err = c.Get(context.Background(), 1, 3, load)
	require.NoError(t, err)
	assert.Equal(t, "second", p.FullName)
}
