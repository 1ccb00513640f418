package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

const movementColumns = `m.id, m.product_id, m.kind, m.quantity, m.stock_before, m.stock_after, m.created_at, m.created_by, m.idempotency_key`

// StockMovementRepo libro de movimientos sobre PostgreSQL (usable con pool o tx). Solo inserción.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Create persiste un movimiento. Una llave de idempotencia repetida devuelve domain.ErrDuplicate.
func (r *StockMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, product_id, kind, quantity, stock_before, stock_after, created_at, created_by, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.ProductID, string(m.Kind), m.Quantity, m.StockBefore, m.StockAfter,
		m.CreatedAt, nullable(m.CreatedBy), nullable(m.IdempotencyKey),
	)
	if err != nil {
		return mapWriteError("create stock movement", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID.
func (r *StockMovementRepo) GetByID(ctx context.Context, id string) (*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements m WHERE m.id = $1`
	var m entity.StockMovement
	if err := scanMovement(r.q.QueryRow(ctx, query, id), &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return &m, nil
}

// GetByIdempotencyKey obtiene el movimiento registrado con esa llave.
func (r *StockMovementRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.StockMovement, error) {
	if key == "" {
		return nil, nil
	}
	query := `SELECT ` + movementColumns + ` FROM stock_movements m WHERE m.idempotency_key = $1`
	var m entity.StockMovement
	if err := scanMovement(r.q.QueryRow(ctx, query, key), &m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement by idempotency key: %w", err)
	}
	return &m, nil
}

// Query arma el WHERE con los filtros presentes. El nombre y el precio de venta se leen
// con LEFT JOIN: un producto eliminado deja ambos vacíos.
func (r *StockMovementRepo) Query(ctx context.Context, f entity.MovementFilter) ([]entity.MovementView, error) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != "" {
		add("m.kind = $%d", string(f.Kind))
	}
	if f.ProductID != "" {
		add("m.product_id = $%d", f.ProductID)
	}
	if f.Since != nil {
		add("m.created_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("m.created_at <= $%d", *f.Until)
	}

	query := `SELECT ` + movementColumns + `, p.name, p.sale_price
		FROM stock_movements m LEFT JOIN products p ON p.id = m.product_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.created_at DESC, m.id DESC"

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()
	list := make([]entity.MovementView, 0)
	for rows.Next() {
		var v entity.MovementView
		var name *string
		var price decimal.NullDecimal
		if err := scanMovement(rows, &v.StockMovement, &name, &price); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		if name != nil {
			v.ProductName = *name
		}
		if price.Valid {
			v.SalePrice = price.Decimal
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// SumByProduct devuelve Σ entradas y Σ salidas del producto.
func (r *StockMovementRepo) SumByProduct(ctx context.Context, productID string) (entries, exits int64, err error) {
	query := `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE kind = 'entry'), 0),
			COALESCE(SUM(quantity) FILTER (WHERE kind = 'exit'), 0)
		FROM stock_movements WHERE product_id = $1`
	if err := r.q.QueryRow(ctx, query, productID).Scan(&entries, &exits); err != nil {
		return 0, 0, fmt.Errorf("sum movements: %w", err)
	}
	return entries, exits, nil
}

func scanMovement(row pgx.Row, m *entity.StockMovement, extra ...any) error {
	var kind string
	var createdBy, idemKey *string
	dest := append([]any{&m.ID, &m.ProductID, &kind, &m.Quantity, &m.StockBefore, &m.StockAfter,
		&m.CreatedAt, &createdBy, &idemKey}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	m.Kind = entity.MovementKind(kind)
	if createdBy != nil {
		m.CreatedBy = *createdBy
	}
	if idemKey != nil {
		m.IdempotencyKey = *idemKey
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
