package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind tipo de movimiento de inventario.
type MovementKind string

// Tipos de movimiento de inventario.
const (
	MovementEntry MovementKind = "entry" // entrada, suma stock
	MovementExit  MovementKind = "exit"  // salida, resta stock
)

// ParseMovementKind acepta entry/exit y los alias entrada/salida.
func ParseMovementKind(s string) (MovementKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "entry", "entrada":
		return MovementEntry, true
	case "exit", "salida":
		return MovementExit, true
	}
	return "", false
}

// Valid indica si el tipo es entry o exit.
func (k MovementKind) Valid() bool {
	return k == MovementEntry || k == MovementExit
}

// Delta devuelve el cambio de stock con signo para la cantidad dada.
func (k MovementKind) Delta(quantity int64) int64 {
	if k == MovementExit {
		return -quantity
	}
	return quantity
}

// StockMovement registro inmutable del libro de movimientos.
// ProductID puede quedar colgando si el producto se elimina; el movimiento nunca se borra.
type StockMovement struct {
	ID             string
	ProductID      string
	Kind           MovementKind
	Quantity       int64 // siempre >= 1
	StockBefore    int64
	StockAfter     int64
	CreatedAt      time.Time
	CreatedBy      string // UserID del token, puede ser vacío
	IdempotencyKey string
}

// MovementView movimiento con datos del producto resueltos al momento de la lectura.
// ProductName queda vacío si el producto ya no existe.
type MovementView struct {
	StockMovement
	ProductName string
	SalePrice   decimal.Decimal
}

// MovementFilter filtros combinables (AND) para consultar el libro.
// Since/Until son inclusivos.
type MovementFilter struct {
	Kind      MovementKind
	ProductID string
	Since     *time.Time
	Until     *time.Time
}
