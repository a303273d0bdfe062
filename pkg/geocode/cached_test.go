package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/tweet-datasource/pkg/cache"
	"github.com/Sternrassler/tweet-datasource/pkg/query"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	coords map[string]query.Coordinate
	calls  int
}

func (r *countingResolver) Resolve(_ context.Context, address string) (query.Coordinate, error) {
	r.calls++
	coord, ok := r.coords[address]
	if !ok {
		return query.Coordinate{}, ErrNoResults
	}
	return coord, nil
}

func setupCached(t *testing.T, next query.Resolver) (*Cached, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCached(next, cache.NewManager(client), time.Hour), mr
}

func TestCached_Resolve(t *testing.T) {
	next := &countingResolver{coords: map[string]query.Coordinate{
		"Berlin": {Latitude: 52.52, Longitude: 13.405},
	}}
	cached, _ := setupCached(t, next)
	ctx := context.Background()

	first, err := cached.Resolve(ctx, "Berlin")
	require.NoError(t, err)
	second, err := cached.Resolve(ctx, "  berlin ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
}

func TestCached_FailuresNotCached(t *testing.T) {
	next := &countingResolver{coords: map[string]query.Coordinate{}}
	cached, _ := setupCached(t, next)
	ctx := context.Background()

	_, err := cached.Resolve(ctx, "Atlantis")
	assert.True(t, errors.Is(err, ErrNoResults))
	_, err = cached.Resolve(ctx, "Atlantis")
	assert.True(t, errors.Is(err, ErrNoResults))

	assert.Equal(t, 2, next.calls)
}

func TestCached_Expiry(t *testing.T) {
	next := &countingResolver{coords: map[string]query.Coordinate{
		"Oslo": {Latitude: 59.91, Longitude: 10.75},
	}}
	cached, mr := setupCached(t, next)
	ctx := context.Background()

	_, err := cached.Resolve(ctx, "Oslo")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = cached.Resolve(ctx, "Oslo")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	next := &countingResolver{coords: map[string]query.Coordinate{
		"Rome": {Latitude: 41.9, Longitude: 12.5},
	}}
	cached, mr := setupCached(t, next)
	mr.Close()

	coord, err := cached.Resolve(context.Background(), "Rome")
	require.NoError(t, err)
	assert.Equal(t, 41.9, coord.Latitude)
}

func TestNewCached_DefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cached := NewCached(&countingResolver{}, cache.NewManager(client), 0)
	assert.Equal(t, DefaultCacheTTL, cached.ttl)
}
