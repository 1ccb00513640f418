package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordMovementRequest body para POST /api/movements.
// kind acepta entry|exit y los alias entrada|salida.
type RecordMovementRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Kind      string `json:"kind" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

// MovementQueryParams query string de GET /api/movements (nombres del cliente original o en inglés).
type MovementQueryParams struct {
	Kind      string `query:"kind"`
	Tipo      string `query:"tipo"`
	ProductID string `query:"product_id"`
	Producto  string `query:"producto"`
	Since     string `query:"since"`
	Desde     string `query:"desde"`
	Until     string `query:"until"`
	Hasta     string `query:"hasta"`
	Rango     string `query:"rango" validate:"omitempty,oneof=dia semana mes anio"`
	Limit     int    `query:"limit" validate:"min=0,max=500"`
	Offset    int    `query:"offset" validate:"min=0"`
}

// MovementResponse salida de un movimiento. ProductName y SalePrice se resuelven al leer.
type MovementResponse struct {
	ID          string           `json:"id"`
	ProductID   string           `json:"product_id"`
	ProductName string           `json:"product_name,omitempty"`
	SalePrice   *decimal.Decimal `json:"sale_price,omitempty"`
	Kind        string           `json:"kind"`
	Quantity    int64            `json:"quantity"`
	StockBefore int64            `json:"stock_before"`
	StockAfter  int64            `json:"stock_after"`
	CreatedBy   string           `json:"created_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// RecordMovementResponse respuesta de POST /api/movements.
type RecordMovementResponse struct {
	Message  string           `json:"message"`
	Movement MovementResponse `json:"movement"`
	Product  *ProductResponse `json:"product,omitempty"`
	Replayed bool             `json:"replayed,omitempty"`
}

// MovementListResponse historial de movimientos.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// StockDriftDTO producto con diferencia entre stock y libro.
type StockDriftDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Stock     int64  `json:"stock"`
	Expected  int64  `json:"expected"`
}

// ReconcileResponse resultado de la conciliación.
type ReconcileResponse struct {
	Checked    int             `json:"checked"`
	Drifted    []StockDriftDTO `json:"drifted"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// ReconcileEnqueuedResponse conciliación encolada en el worker.
type ReconcileEnqueuedResponse struct {
	TaskID string `json:"task_id"`
}
