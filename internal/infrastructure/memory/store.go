// Package memory implementa los puertos de persistencia en memoria del proceso.
// Sirve para desarrollo local (STORAGE_DRIVER=memory) y para las pruebas de los casos de uso.
// Respeta las mismas reglas que PostgreSQL: bloqueo por producto, transacciones todo-o-nada
// y stock nunca negativo.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
)

// Store estado compartido: productos confirmados y el libro de movimientos (solo inserción).
type Store struct {
	mu         sync.RWMutex
	products   map[string]entity.Product
	movements  []entity.StockMovement
	movementAt map[string]int    // id -> posición en movements
	idemKeys   map[string]string // llave de idempotencia -> id de movimiento

	locksMu sync.Mutex
	locks   map[string]*productLock
}

// productLock semáforo de un producto. refs cuenta dueño y espera; en 0 la entrada se borra.
type productLock struct {
	ch   chan struct{}
	refs int
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		products:   make(map[string]entity.Product),
		movementAt: make(map[string]int),
		idemKeys:   make(map[string]string),
		locks:      make(map[string]*productLock),
	}
}

// lockProduct bloquea el producto hasta que se llame la función devuelta. Respeta la cancelación de ctx.
func (s *Store) lockProduct(ctx context.Context, productID string) (func(), error) {
	s.locksMu.Lock()
	l, ok := s.locks[productID]
	if !ok {
		l = &productLock{ch: make(chan struct{}, 1)}
		s.locks[productID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			s.dropLockRef(productID, l)
		}, nil
	case <-ctx.Done():
		s.dropLockRef(productID, l)
		return nil, ctx.Err()
	}
}

func (s *Store) dropLockRef(productID string, l *productLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, productID)
	}
}

func (s *Store) getProduct(id string) (*entity.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, false
	}
	return &p, true
}
