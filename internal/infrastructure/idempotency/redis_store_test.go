package idempotency_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/infrastructure/idempotency"
	"github.com/jhoicas/inventario-movimientos/pkg/config"
)

func newStore(t *testing.T, ttl time.Duration) (*idempotency.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return idempotency.NewRedisStore(client, ttl), mr
}

func TestRedisStore_ReserveCompleteReplay(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.Empty(t, id)

	// Segunda solicitud mientras la primera sigue en curso
	_, err = store.Reserve(ctx, "k1")
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	require.NoError(t, store.Complete(ctx, "k1", "mov-1"))
	id, err = store.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "mov-1", id)

	got, err := mr.Get("ledger:idem:k1")
	require.NoError(t, err)
	assert.Equal(t, "mov-1", got)
	assert.Equal(t, time.Hour, mr.TTL("ledger:idem:k1"))
}

func TestRedisStore_ReleaseLiberaLaLlave(t *testing.T) {
	store, _ := newStore(t, time.Hour)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k1")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k1"))

	id, err := store.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRedisStore_LlaveVencida(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k1")
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k1", "mov-1"))

	mr.FastForward(2 * time.Minute)

	id, err := store.Reserve(ctx, "k1")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestRedisStore_TTLPorDefecto(t *testing.T) {
	store, mr := newStore(t, 0)
	_, err := store.Reserve(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, mr.TTL("ledger:idem:k1"))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := idempotency.Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	_ = client.Close()

	addr := mr.Addr()
	mr.Close()
	_, err = idempotency.Connect(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}
