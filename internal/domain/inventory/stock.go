package inventory

import (
	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
)

// ValidateMovement revisa tipo y cantidad antes de tocar el almacenamiento.
func ValidateMovement(kind entity.MovementKind, quantity int64) error {
	if !kind.Valid() || quantity < 1 {
		return domain.ErrInvalidInput
	}
	return nil
}

// CheckAvailability rechaza una salida mayor al stock actual (las entradas siempre pasan).
func CheckAvailability(stock int64, kind entity.MovementKind, quantity int64) error {
	if kind == entity.MovementExit && quantity > stock {
		return domain.ErrInsufficientStock
	}
	return nil
}

// ApplyDelta calcula el nuevo stock. Es la verificación defensiva del almacenamiento:
// un resultado negativo es ErrInvariantViolation, no ErrInsufficientStock.
func ApplyDelta(stock, delta int64) (int64, error) {
	next := stock + delta
	if next < 0 {
		return stock, domain.ErrInvariantViolation
	}
	return next, nil
}

// ExpectedStock reconstruye el stock a partir del libro:
// InitialStock + Σ entradas − Σ salidas.
func ExpectedStock(initial, entries, exits int64) int64 {
	return initial + entries - exits
}
