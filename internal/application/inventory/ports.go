package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción, pasando repositorios atados a esa tx.
// Si fn devuelve error no queda ningún cambio (ni stock ni movimiento).
type TxRunner interface {
	Run(ctx context.Context, fn func(
		movRepo repository.StockMovementRepository,
		productRepo repository.ProductRepository,
	) error) error
}

// IdempotencyStore reserva llaves enviadas por el cliente para que un reintento no duplique un movimiento.
type IdempotencyStore interface {
	// Reserve devuelve "" si la llave quedó reservada para esta solicitud, o el ID del movimiento
	// ya registrado con esa llave. Devuelve domain.ErrIdempotencyConflict si otra solicitud la tiene en curso.
	Reserve(ctx context.Context, key string) (movementID string, err error)
	Complete(ctx context.Context, key, movementID string) error
	Release(ctx context.Context, key string) error
}

// MovementReport datos de entrada del reporte PDF de movimientos.
type MovementReport struct {
	Title        string
	GeneratedAt  time.Time
	Filter       entity.MovementFilter
	Range        string
	Movements    []entity.MovementView
	TotalEntries int64
	TotalExits   int64
}

// MovementReportGenerator genera la representación PDF del historial (implementado en infrastructure/pdf).
type MovementReportGenerator interface {
	GenerateMovementReport(ctx context.Context, report MovementReport) ([]byte, error)
}
