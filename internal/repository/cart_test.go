package repository

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func newTestCartRepository(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCartRepository(rdb), mr
}

func TestCartRepository_AddAndQuantities(t *testing.T) {
	repo, mr := newTestCartRepository(t)
	ctx := context.Background()

	qty, err := repo.Add(ctx, "s1", 7, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	qty, err = repo.Add(ctx, "s1", 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, qty)

	_, err = repo.Add(ctx, "s1", 9, 1)
	require.NoError(t, err)

	items, err := repo.Quantities(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{7: 3, 9: 1}, items)

	assert.Equal(t, cartTTL, mr.TTL("cart:s1"))

	other, err := repo.Quantities(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCartRepository_QuantitiesSkipsGarbage(t *testing.T) {
	repo, mr := newTestCartRepository(t)

	mr.HSet("cart:s1", "7", "2", "bad", "1", "8", "zero", "9", "0")

	items, err := repo.Quantities(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{7: 2}, items)
}

func TestCartRepository_ClearIsIdempotent(t *testing.T) {
	repo, mr := newTestCartRepository(t)
	ctx := context.Background()

	_, err := repo.Add(ctx, "s1", 7, 1)
	require.NoError(t, err)

	require.NoError(t, repo.Clear(ctx, "s1"))
	assert.False(t, mr.Exists("cart:s1"))

	require.NoError(t, repo.Clear(ctx, "s1"))
}
