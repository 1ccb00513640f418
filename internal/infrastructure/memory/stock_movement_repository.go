package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*MovementRepo)(nil)

// MovementRepo libro de movimientos en memoria (solo inserción).
type MovementRepo struct {
	store *Store
	tx    *tx
}

// NewStockMovementRepository repositorio fuera de transacción.
func NewStockMovementRepository(store *Store) *MovementRepo {
	return &MovementRepo{store: store}
}

func (r *MovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	if m.Quantity < 1 || !m.Kind.Valid() {
		return domain.ErrInvalidInput
	}
	if r.tx != nil {
		for _, staged := range r.tx.movements {
			if m.IdempotencyKey != "" && staged.IdempotencyKey == m.IdempotencyKey {
				return domain.ErrDuplicate
			}
		}
		r.tx.movements = append(r.tx.movements, *m)
		return nil
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.idemKeys[m.IdempotencyKey]; m.IdempotencyKey != "" && dup {
		return domain.ErrDuplicate
	}
	s.appendMovement(*m)
	return nil
}

func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.StockMovement, error) {
	if r.tx != nil {
		for i := range r.tx.movements {
			if r.tx.movements[i].ID == id {
				m := r.tx.movements[i]
				return &m, nil
			}
		}
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.movementAt[id]
	if !ok {
		return nil, nil
	}
	m := s.movements[i]
	return &m, nil
}

func (r *MovementRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.StockMovement, error) {
	if key == "" {
		return nil, nil
	}
	if r.tx != nil {
		for i := range r.tx.movements {
			if r.tx.movements[i].IdempotencyKey == key {
				m := r.tx.movements[i]
				return &m, nil
			}
		}
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idemKeys[key]
	if !ok {
		return nil, nil
	}
	m := s.movements[s.movementAt[id]]
	return &m, nil
}

// Query filtra sobre los movimientos confirmados y resuelve nombre y precio del producto al leer.
func (r *MovementRepo) Query(ctx context.Context, f entity.MovementFilter) ([]entity.MovementView, error) {
	s := r.store
	s.mu.RLock()
	out := make([]entity.MovementView, 0)
	for _, m := range s.movements {
		if !matches(m, f) {
			continue
		}
		v := entity.MovementView{StockMovement: m}
		if p, ok := s.products[m.ProductID]; ok {
			v.ProductName = p.Name
			v.SalePrice = p.SalePrice
		}
		out = append(out, v)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// SumByProduct suma cantidades confirmadas por tipo.
func (r *MovementRepo) SumByProduct(ctx context.Context, productID string) (entries, exits int64, err error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.movements {
		if m.ProductID != productID {
			continue
		}
		switch m.Kind {
		case entity.MovementEntry:
			entries += m.Quantity
		case entity.MovementExit:
			exits += m.Quantity
		}
	}
	return entries, exits, nil
}

func matches(m entity.StockMovement, f entity.MovementFilter) bool {
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.ProductID != "" && m.ProductID != f.ProductID {
		return false
	}
	if f.Since != nil && m.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && m.CreatedAt.After(*f.Until) {
		return false
	}
	return true
}
