package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/emrgen/rard/internal/compress"
	"github.com/emrgen/rard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinksKey(t *testing.T) {
	assert.Equal(t, "rard:links:3:fragment:7", linksKey(3, model.KindFragment, model.Ptr[uint](7)))
	assert.Equal(t, "rard:links:0:testimonium:null", linksKey(0, model.KindTestimonium, nil))
}

func TestNopCache(t *testing.T) {
	c := NewNop()
	gen, err := c.Generation(context.TODO())
	require.NoError(t, err)
	require.NoError(t, c.SetLinks(context.TODO(), gen, model.KindFragment, nil, []*model.Link{{ID: 1}}))

	links, ok, err := c.GetLinks(context.TODO(), gen, model.KindFragment, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, links)
}

// TestRedisLinkCache needs a reachable redis; set RARD_TEST_REDIS_ADDR to run it.
func TestRedisLinkCache(t *testing.T) {
	addr := os.Getenv("RARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RARD_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	c := NewRedisLinkCache(NewRedisClient(RedisOptions{Addr: addr}), compress.NewLZ4(), time.Minute)
	require.NoError(t, c.Invalidate(ctx))

	antiquarian := model.Ptr[uint](42)
	want := []*model.Link{{ID: 1, AntiquarianID: antiquarian, Order: 0}, {ID: 2, AntiquarianID: antiquarian, Order: 1}}
	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.SetLinks(ctx, gen, model.KindAppositum, antiquarian, want))

	got, ok, err := c.GetLinks(ctx, gen, model.KindAppositum, antiquarian)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, uint(2), got[1].ID)

	require.NoError(t, c.Invalidate(ctx))
	gen, err = c.Generation(ctx)
	require.NoError(t, err)
	_, ok, err = c.GetLinks(ctx, gen, model.KindAppositum, antiquarian)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLinkCache_StaleListingAfterInvalidate(t *testing.T) {
	addr := os.Getenv("RARD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RARD_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	c := NewRedisLinkCache(NewRedisClient(RedisOptions{Addr: addr}), compress.NewGZip(), time.Minute)
	antiquarian := model.Ptr[uint](43)

	// a reader takes the generation and loads the listing, then a writer commits
	before, err := c.Generation(ctx)
	require.NoError(t, err)
	stale := []*model.Link{{ID: 1, AntiquarianID: antiquarian, Order: 0}}
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.SetLinks(ctx, before, model.KindFragment, antiquarian, stale))

	current, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Greater(t, current, before)
	_, ok, err := c.GetLinks(ctx, current, model.KindFragment, antiquarian)
	require.NoError(t, err)
	assert.False(t, ok, "a listing loaded before the commit is not served after it")
}
