package repository

import (
	"context"

	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
)

// StockMovementRepository define el puerto de persistencia del libro de movimientos (solo inserción).
type StockMovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	GetByID(ctx context.Context, id string) (*entity.StockMovement, error)
	// GetByIdempotencyKey devuelve el movimiento registrado con esa llave, o nil si no hay.
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.StockMovement, error)
	// Query devuelve los movimientos que cumplen el filtro, del más reciente al más antiguo,
	// con el nombre del producto resuelto al leer.
	Query(ctx context.Context, filter entity.MovementFilter) ([]entity.MovementView, error)
	// SumByProduct devuelve la suma de cantidades de entradas y de salidas de un producto.
	SumByProduct(ctx context.Context, productID string) (entries, exits int64, err error)
}
