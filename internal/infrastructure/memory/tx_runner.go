package memory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
)

// TxRunner implementa inventory.TxRunner: ejecuta callbacks con repositorios atados a una transacción en memoria.
type TxRunner struct {
	store *Store
}

// NewTxRunner construye el runner sobre el store.
func NewTxRunner(store *Store) *TxRunner {
	return &TxRunner{store: store}
}

// tx cambios pendientes y bloqueos tomados. Nada es visible hasta commit.
type tx struct {
	store     *Store
	unlock    map[string]func()
	stock     map[string]int64
	deleted   map[string]bool
	movements []entity.StockMovement
	now       time.Time
}

// Run ejecuta fn; si devuelve error descarta todos los cambios, si no los aplica de una vez.
// Los bloqueos de producto se liberan al final en ambos casos.
func (r *TxRunner) Run(ctx context.Context, fn func(
	movRepo repository.StockMovementRepository,
	productRepo repository.ProductRepository,
) error) error {
	t := &tx{
		store:   r.store,
		unlock:  make(map[string]func()),
		stock:   make(map[string]int64),
		deleted: make(map[string]bool),
		now:     time.Now().UTC(),
	}
	defer t.release()

	if err := fn(&MovementRepo{store: r.store, tx: t}, &ProductRepo{store: r.store, tx: t}); err != nil {
		return err
	}
	return t.commit()
}

func (t *tx) lock(ctx context.Context, productID string) error {
	if _, held := t.unlock[productID]; held {
		return nil
	}
	unlock, err := t.store.lockProduct(ctx, productID)
	if err != nil {
		return err
	}
	t.unlock[productID] = unlock
	return nil
}

func (t *tx) release() {
	for id, unlock := range t.unlock {
		unlock()
		delete(t.unlock, id)
	}
}

// commit valida y aplica todo bajo el lock del store: o se aplica completo o no se aplica nada.
func (t *tx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(t.movements))
	for _, m := range t.movements {
		if m.IdempotencyKey == "" {
			continue
		}
		if _, dup := s.idemKeys[m.IdempotencyKey]; dup || seen[m.IdempotencyKey] {
			return domain.ErrDuplicate
		}
		seen[m.IdempotencyKey] = true
	}
	for id, stock := range t.stock {
		if stock < 0 {
			return domain.ErrInvariantViolation
		}
		if _, ok := s.products[id]; !ok && !t.deleted[id] {
			return domain.ErrNotFound
		}
	}

	for id, stock := range t.stock {
		p, ok := s.products[id]
		if !ok {
			continue
		}
		p.Stock = stock
		p.UpdatedAt = t.now
		s.products[id] = p
	}
	for id := range t.deleted {
		delete(s.products, id)
	}
	for _, m := range t.movements {
		s.appendMovement(m)
	}
	return nil
}

// appendMovement requiere s.mu tomado en escritura.
func (s *Store) appendMovement(m entity.StockMovement) {
	s.movementAt[m.ID] = len(s.movements)
	s.movements = append(s.movements, m)
	if m.IdempotencyKey != "" {
		s.idemKeys[m.IdempotencyKey] = m.ID
	}
}
