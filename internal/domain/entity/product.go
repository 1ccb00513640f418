package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del inventario.
// Stock solo cambia por movimientos (entradas/salidas); InitialStock queda fijo desde la creación.
type Product struct {
	ID            string
	Name          string
	NameKey       string          // nombre normalizado (minúsculas, sin tildes) para unicidad y búsqueda
	PurchasePrice decimal.Decimal // precio de compra
	SalePrice     decimal.Decimal // precio de venta
	Stock         int64
	InitialStock  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
