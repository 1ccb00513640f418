package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

const productColumns = `id, name, name_key, purchase_price, sale_price, stock, initial_stock, created_at, updated_at`

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un nuevo producto.
func (r *ProductRepo) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		product.ID, product.Name, product.NameKey, product.PurchasePrice, product.SalePrice,
		product.Stock, product.InitialStock, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert product", err)
	}
	return nil
}

// GetByID obtiene un producto por ID.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	return r.getOne(ctx, "get product", `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// GetForUpdate obtiene el producto y bloquea la fila hasta Commit/Rollback (SELECT FOR UPDATE).
// Solo tiene efecto dentro de una transacción.
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.getOne(ctx, "get product for update", `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

// GetByNameKey obtiene un producto por su nombre normalizado.
func (r *ProductRepo) GetByNameKey(ctx context.Context, nameKey string) (*entity.Product, error) {
	return r.getOne(ctx, "get product by name", `SELECT `+productColumns+` FROM products WHERE name_key = $1`, nameKey)
}

func (r *ProductRepo) getOne(ctx context.Context, op, query string, arg any) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// List lista productos con paginación (más recientes primero).
func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	return r.list(ctx, "list products", query, limitOrAll(limit), offset)
}

// Search lista productos cuyo name_key contiene el término ya normalizado.
func (r *ProductRepo) Search(ctx context.Context, nameKey string, limit, offset int) ([]*entity.Product, error) {
	query := `
		SELECT ` + productColumns + ` FROM products
		WHERE name_key LIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	return r.list(ctx, "search products", query, escapeLike(nameKey), limitOrAll(limit), offset)
}

// Count cuenta los productos que coinciden con el término; vacío cuenta todos.
func (r *ProductRepo) Count(ctx context.Context, nameKey string) (int, error) {
	query := `SELECT count(*) FROM products WHERE $1 = '' OR name_key LIKE '%' || $1 || '%' ESCAPE '\'`
	var n int
	if err := r.q.QueryRow(ctx, query, escapeLike(nameKey)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *ProductRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	list := make([]*entity.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// UpdateDetails actualiza nombre y precios. No permite modificar Stock (se maneja vía movimientos).
func (r *ProductRepo) UpdateDetails(ctx context.Context, product *entity.Product) error {
	query := `
		UPDATE products SET name = $2, name_key = $3, purchase_price = $4, sale_price = $5, updated_at = $6
		WHERE id = $1`
	cmd, err := r.q.Exec(ctx, query,
		product.ID, product.Name, product.NameKey, product.PurchasePrice, product.SalePrice, product.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("update product", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ApplyStockDelta suma delta al stock en una sola sentencia. La condición stock + delta >= 0
// es la verificación propia del almacenamiento; el CHECK de la tabla es la última barrera.
func (r *ProductRepo) ApplyStockDelta(ctx context.Context, productID string, delta int64) (int64, error) {
	query := `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock`
	var stock int64
	err := r.q.QueryRow(ctx, query, productID, delta).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapWriteError("apply stock delta", err)
	}
	// Sin fila: o no existe o el resultado sería negativo
	var current int64
	err = r.q.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("apply stock delta: %w", err)
	}
	return current, domain.ErrInvariantViolation
}

// Delete elimina un producto por ID. Sus movimientos se conservan.
func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	if err := row.Scan(&p.ID, &p.Name, &p.NameKey, &p.PurchasePrice, &p.SalePrice,
		&p.Stock, &p.InitialStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// limitOrAll convierte limit <= 0 en NULL (LIMIT NULL = sin límite en PostgreSQL).
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// mapWriteError traduce violaciones de constraints a errores de dominio.
func mapWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return domain.ErrDuplicate
	case isCheckViolation(err):
		return domain.ErrInvariantViolation
	}
	return fmt.Errorf("%s: %w", op, err)
}
