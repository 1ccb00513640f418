package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Migrate crea tablas, índices y el trigger de solo inserción. Es idempotente.
func Migrate(ctx context.Context, q Querier) error {
	// Sin argumentos pgx usa el protocolo simple y acepta varias sentencias
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
