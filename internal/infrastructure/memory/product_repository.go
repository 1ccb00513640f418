package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	domaininv "github.com/jhoicas/inventario-movimientos/internal/domain/inventory"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación en memoria. Con tx != nil las lecturas ven los cambios pendientes
// de esa transacción y las escrituras de stock quedan en espera del commit.
type ProductRepo struct {
	store *Store
	tx    *tx
}

// NewProductRepository repositorio fuera de transacción.
func NewProductRepository(store *Store) *ProductRepo {
	return &ProductRepo{store: store}
}

func (r *ProductRepo) Create(ctx context.Context, product *entity.Product) error {
	if product.Stock < 0 {
		return domain.ErrInvariantViolation
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, p := range s.products {
		if p.NameKey == product.NameKey {
			return domain.ErrDuplicate
		}
	}
	s.products[product.ID] = *product
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	return r.overlay(r.store.getProduct(id)), nil
}

// GetForUpdate toma el bloqueo del producto hasta el fin de la transacción.
// Fuera de transacción se comporta como GetByID.
func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	if r.tx != nil {
		if err := r.tx.lock(ctx, id); err != nil {
			return nil, err
		}
	}
	return r.GetByID(ctx, id)
}

func (r *ProductRepo) GetByNameKey(ctx context.Context, nameKey string) (*entity.Product, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.NameKey == nameKey {
			p := p
			return r.overlay(&p, true), nil
		}
	}
	return nil, nil
}

func (r *ProductRepo) List(ctx context.Context, limit, offset int) ([]*entity.Product, error) {
	return r.collect(func(*entity.Product) bool { return true }, limit, offset), nil
}

func (r *ProductRepo) Search(ctx context.Context, nameKey string, limit, offset int) ([]*entity.Product, error) {
	return r.collect(func(p *entity.Product) bool {
		return strings.Contains(p.NameKey, nameKey)
	}, limit, offset), nil
}

func (r *ProductRepo) Count(ctx context.Context, nameKey string) (int, error) {
	return len(r.collect(func(p *entity.Product) bool {
		return strings.Contains(p.NameKey, nameKey)
	}, 0, 0)), nil
}

func (r *ProductRepo) UpdateDetails(ctx context.Context, product *entity.Product) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[product.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for _, p := range s.products {
		if p.ID != product.ID && p.NameKey == product.NameKey {
			return domain.ErrDuplicate
		}
	}
	current.Name = product.Name
	current.NameKey = product.NameKey
	current.PurchasePrice = product.PurchasePrice
	current.SalePrice = product.SalePrice
	current.UpdatedAt = product.UpdatedAt
	s.products[product.ID] = current
	return nil
}

// ApplyStockDelta dentro de una tx deja el nuevo stock pendiente; fuera de tx lo aplica de inmediato
// tomando el bloqueo del producto.
func (r *ProductRepo) ApplyStockDelta(ctx context.Context, productID string, delta int64) (int64, error) {
	if r.tx == nil {
		return r.applyNow(ctx, productID, delta)
	}
	if err := r.tx.lock(ctx, productID); err != nil {
		return 0, err
	}
	current, _ := r.GetByID(ctx, productID)
	if current == nil {
		return 0, domain.ErrNotFound
	}
	next, err := domaininv.ApplyDelta(current.Stock, delta)
	if err != nil {
		return current.Stock, err
	}
	r.tx.stock[productID] = next
	return next, nil
}

func (r *ProductRepo) applyNow(ctx context.Context, productID string, delta int64) (int64, error) {
	s := r.store
	unlock, err := s.lockProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	next, err := domaininv.ApplyDelta(p.Stock, delta)
	if err != nil {
		return p.Stock, err
	}
	p.Stock = next
	s.products[productID] = p
	return next, nil
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	if r.tx != nil {
		if p, _ := r.GetByID(ctx, id); p == nil {
			return domain.ErrNotFound
		}
		r.tx.deleted[id] = true
		delete(r.tx.stock, id)
		return nil
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// overlay aplica los cambios pendientes de la transacción sobre una copia confirmada.
func (r *ProductRepo) overlay(p *entity.Product, found bool) *entity.Product {
	if !found || p == nil {
		return nil
	}
	if r.tx == nil {
		return p
	}
	if r.tx.deleted[p.ID] {
		return nil
	}
	if stock, ok := r.tx.stock[p.ID]; ok {
		p.Stock = stock
	}
	return p
}

// collect filtra y ordena igual que PostgreSQL: created_at DESC, id.
func (r *ProductRepo) collect(match func(*entity.Product) bool, limit, offset int) []*entity.Product {
	s := r.store
	s.mu.RLock()
	list := make([]*entity.Product, 0, len(s.products))
	for _, p := range s.products {
		p := p
		if ov := r.overlay(&p, true); ov != nil && match(ov) {
			list = append(list, ov)
		}
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return page(list, limit, offset)
}

func page[T any](list []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
