package repository

import (
	"context"

	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
// Stock solo se modifica con ApplyStockDelta, dentro de la transacción del libro de movimientos.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetForUpdate obtiene el producto y lo bloquea hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Product, error)
	GetByNameKey(ctx context.Context, nameKey string) (*entity.Product, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Product, error)
	Search(ctx context.Context, nameKey string, limit, offset int) ([]*entity.Product, error)
	// Count cuenta los productos cuyo name_key contiene nameKey; vacío cuenta todos.
	Count(ctx context.Context, nameKey string) (int, error)
	// UpdateDetails actualiza nombre y precios. Nunca toca Stock.
	UpdateDetails(ctx context.Context, product *entity.Product) error
	// ApplyStockDelta suma delta al stock y devuelve el nuevo valor.
	// Devuelve domain.ErrInvariantViolation si el resultado sería negativo.
	ApplyStockDelta(ctx context.Context, productID string, delta int64) (int64, error)
	Delete(ctx context.Context, id string) error
}
