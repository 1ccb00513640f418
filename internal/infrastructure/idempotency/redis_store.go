// Package idempotency guarda en Redis las llaves Idempotency-Key del registro de movimientos.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/pkg/config"
)

const (
	keyPrefix = "ledger:idem:"
	pending   = "pending"
)

// RedisStore implementa inventory.IdempotencyStore.
// Una llave pasa por "pending" (reservada) y luego guarda el ID del movimiento hasta que vence el TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore construye el store. ttl <= 0 usa 24h.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Connect abre el cliente y verifica la conexión.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Reserve toma la llave con SET NX. Si ya existe devuelve el ID guardado,
// o domain.ErrIdempotencyConflict si la otra solicitud aún no termina.
func (s *RedisStore) Reserve(ctx context.Context, key string) (string, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, pending, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("idempotency reserve: %w", err)
	}
	if ok {
		return "", nil
	}
	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// Venció entre SETNX y GET: se intenta una vez más
		return s.Reserve(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("idempotency lookup: %w", err)
	}
	if val == pending {
		return "", domain.ErrIdempotencyConflict
	}
	return val, nil
}

// Complete asocia la llave al movimiento registrado.
func (s *RedisStore) Complete(ctx context.Context, key, movementID string) error {
	if err := s.client.Set(ctx, keyPrefix+key, movementID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency complete: %w", err)
	}
	return nil
}

// Release libera una llave reservada cuyo registro falló, para que el cliente pueda reintentar.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}
