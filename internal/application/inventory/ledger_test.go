package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-movimientos/internal/domain"
	"github.com/jhoicas/inventario-movimientos/internal/domain/entity"
	"github.com/jhoicas/inventario-movimientos/internal/domain/repository"
	"github.com/jhoicas/inventario-movimientos/internal/infrastructure/memory"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

type ledgerFixture struct {
	store *memory.Store
	uc    *RecordMovementUseCase
}

func newLedger(t *testing.T, idem IdempotencyStore) *ledgerFixture {
	t.Helper()
	store := memory.NewStore()
	uc := NewRecordMovementUseCase(
		memory.NewTxRunner(store),
		memory.NewProductRepository(store),
		memory.NewStockMovementRepository(store),
		idem,
		nil,
	)
	return &ledgerFixture{store: store, uc: uc}
}

func (f *ledgerFixture) product(t *testing.T, id string, stock int64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, memory.NewProductRepository(f.store).Create(context.Background(), &entity.Product{
		ID: id, Name: "Producto " + id, NameKey: "producto " + id,
		Stock: stock, InitialStock: stock, CreatedAt: now, UpdatedAt: now,
	}))
}

func (f *ledgerFixture) stock(t *testing.T, id string) int64 {
	t.Helper()
	s, err := f.uc.GetStock(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (f *ledgerFixture) movements(t *testing.T) []entity.MovementView {
	t.Helper()
	list, err := f.uc.QueryMovements(context.Background(), MovementQuery{})
	require.NoError(t, err)
	return list
}

// fakeIdem guarda llaves en un mapa; "" significa reservada sin completar.
// Con failComplete, Complete falla y la llave queda pendiente.
type fakeIdem struct {
	mu           sync.Mutex
	keys         map[string]string
	failComplete bool
}

func newFakeIdem() *fakeIdem { return &fakeIdem{keys: map[string]string{}} }

func (f *fakeIdem) Reserve(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.keys[key]
	if !ok {
		f.keys[key] = ""
		return "", nil
	}
	if id == "" {
		return "", domain.ErrIdempotencyConflict
	}
	return id, nil
}

func (f *fakeIdem) Complete(_ context.Context, key, movementID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failComplete {
		return errors.New("redis caído")
	}
	f.keys[key] = movementID
	return nil
}

func (f *fakeIdem) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

// ─── RecordMovement ─────────────────────────────────────────────────────────

func TestRecordMovement_SalidaDescuentaStock(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)

	res, err := f.uc.RecordMovement(context.Background(), RecordMovementInput{
		ProductID: "p1", Kind: entity.MovementExit, Quantity: 5, UserID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.Product.Stock)
	assert.Equal(t, entity.MovementExit, res.Movement.Kind)
	assert.Equal(t, int64(5), res.Movement.Quantity)
	assert.Equal(t, int64(10), res.Movement.StockBefore)
	assert.Equal(t, int64(5), res.Movement.StockAfter)
	assert.Equal(t, "u1", res.Movement.CreatedBy)
	assert.False(t, res.Replayed)

	assert.Equal(t, int64(5), f.stock(t, "p1"))
	assert.Len(t, f.movements(t), 1)
}

func TestRecordMovement_StockInsuficienteNoDejaRastro(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 3)

	_, err := f.uc.RecordMovement(context.Background(), RecordMovementInput{
		ProductID: "p1", Kind: entity.MovementExit, Quantity: 5,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(3), f.stock(t, "p1"))
	assert.Empty(t, f.movements(t))
}

func TestRecordMovement_EntradaDesdeCero(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 0)

	res, err := f.uc.RecordMovement(context.Background(), RecordMovementInput{
		ProductID: "p1", Kind: entity.MovementEntry, Quantity: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Product.Stock)
	assert.Equal(t, entity.MovementEntry, res.Movement.Kind)
}

func TestRecordMovement_ProductoInexistente(t *testing.T) {
	f := newLedger(t, nil)

	_, err := f.uc.RecordMovement(context.Background(), RecordMovementInput{
		ProductID: "nope", Kind: entity.MovementEntry, Quantity: 1,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.movements(t))
}

func TestRecordMovement_EntradaInvalida(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)
	ctx := context.Background()

	cases := []RecordMovementInput{
		{ProductID: "p1", Kind: "ajuste", Quantity: 1},
		{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 0},
		{ProductID: "p1", Kind: entity.MovementExit, Quantity: -2},
		{ProductID: "", Kind: entity.MovementEntry, Quantity: 1},
	}
	for _, in := range cases {
		_, err := f.uc.RecordMovement(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", in)
	}
	assert.Equal(t, int64(10), f.stock(t, "p1"))
	assert.Empty(t, f.movements(t))
}

func TestRecordMovement_SalidasConcurrentesNuncaDejanStockNegativo(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)
	ctx := context.Background()

	var mu sync.Mutex
	var ok, insufficient int
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 6})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrInsufficientStock):
				insufficient++
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, int64(4), f.stock(t, "p1"))
	assert.Len(t, f.movements(t), 1)
}

func TestRecordMovement_CargaConcurrenteConservaElInvariante(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 50)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 40; i++ {
		kind := entity.MovementExit
		if i%3 == 0 {
			kind = entity.MovementEntry
		}
		g.Go(func() error {
			_, err := f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: kind, Quantity: 3})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientStock)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var entries, exits int64
	for _, m := range f.movements(t) {
		if m.Kind == entity.MovementEntry {
			entries += m.Quantity
		} else {
			exits += m.Quantity
		}
	}
	stock := f.stock(t, "p1")
	assert.GreaterOrEqual(t, stock, int64(0))
	assert.Equal(t, 50+entries-exits, stock)
}

// ─── Idempotencia ───────────────────────────────────────────────────────────

func TestRecordMovement_ReintentoConMismaLlave(t *testing.T) {
	idem := newFakeIdem()
	f := newLedger(t, idem)
	f.product(t, "p1", 10)
	ctx := context.Background()
	in := RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 2, IdempotencyKey: "k1"}

	first, err := f.uc.RecordMovement(ctx, in)
	require.NoError(t, err)
	second, err := f.uc.RecordMovement(ctx, in)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Movement.ID, second.Movement.ID)
	assert.Equal(t, int64(8), f.stock(t, "p1"))
	assert.Len(t, f.movements(t), 1)

	// Misma llave, otro contenido
	_, err = f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 3, IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRecordMovement_FalloLiberaLaLlave(t *testing.T) {
	idem := newFakeIdem()
	f := newLedger(t, idem)
	f.product(t, "p1", 1)
	ctx := context.Background()

	_, err := f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 5, IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// La llave quedó libre: el cliente puede reintentar con datos corregidos
	res, err := f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 1, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestRecordMovement_LlaveEnCurso(t *testing.T) {
	idem := newFakeIdem()
	f := newLedger(t, idem)
	f.product(t, "p1", 1)
	_, _ = idem.Reserve(context.Background(), "k1")

	_, err := f.uc.RecordMovement(context.Background(), RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 1, IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	assert.Equal(t, int64(1), f.stock(t, "p1"))
}

func TestRecordMovement_CompleteFallidoNoBloqueaElReintento(t *testing.T) {
	idem := newFakeIdem()
	idem.failComplete = true
	f := newLedger(t, idem)
	f.product(t, "p1", 10)
	ctx := context.Background()
	in := RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 2, IdempotencyKey: "k1"}

	first, err := f.uc.RecordMovement(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "", idem.keys["k1"])

	// La llave sigue pendiente pero el libro ya tiene el movimiento
	idem.failComplete = false
	second, err := f.uc.RecordMovement(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Movement.ID, second.Movement.ID)
	assert.Equal(t, first.Movement.ID, idem.keys["k1"])
	assert.Equal(t, int64(8), f.stock(t, "p1"))
	assert.Len(t, f.movements(t), 1)
}

func TestRecordMovement_LlaveSinRedisUsaElLibro(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)
	ctx := context.Background()
	in := RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 2, IdempotencyKey: "k1"}

	first, err := f.uc.RecordMovement(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.uc.RecordMovement(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Movement.ID, second.Movement.ID)
	assert.Equal(t, int64(8), f.stock(t, "p1"))
	assert.Len(t, f.movements(t), 1)

	_, err = f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 2, IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRecordMovement_LlaveSinRedisConcurrente(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)
	ctx := context.Background()
	in := RecordMovementInput{ProductID: "p1", Kind: entity.MovementExit, Quantity: 3, IdempotencyKey: "k1"}

	ids := make([]string, 4)
	var g errgroup.Group
	for i := range ids {
		g.Go(func() error {
			res, err := f.uc.RecordMovement(ctx, in)
			if err != nil {
				return err
			}
			ids[i] = res.Movement.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int64(7), f.stock(t, "p1"))
	assert.Len(t, f.movements(t), 1)
}

func TestRecordMovement_HoraTomadaConElBloqueo(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)
	ctx := context.Background()

	var released, clockAfterRelease atomic.Bool
	f.uc.now = func() time.Time {
		clockAfterRelease.Store(released.Load())
		return time.Now()
	}

	locked := make(chan struct{})
	release := make(chan struct{})
	holder := make(chan error, 1)
	go func() {
		holder <- memory.NewTxRunner(f.store).Run(ctx, func(_ repository.StockMovementRepository, productRepo repository.ProductRepository) error {
			if _, err := productRepo.GetForUpdate(ctx, "p1"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	recorded := make(chan error, 1)
	go func() {
		_, err := f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 1})
		recorded <- err
	}()
	time.Sleep(50 * time.Millisecond)
	released.Store(true)
	close(release)

	require.NoError(t, <-holder)
	require.NoError(t, <-recorded)
	assert.True(t, clockAfterRelease.Load())
}

// ─── GetStock / QueryMovements ──────────────────────────────────────────────

func TestGetStock(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 4)

	assert.Equal(t, int64(4), f.stock(t, "p1"))
	_, err := f.uc.GetStock(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.uc.GetStock(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueryMovements_FiltrosYOrden(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)
	f.product(t, "p2", 10)
	ctx := context.Background()

	clock := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	f.uc.now = func() time.Time { return clock }
	record := func(productID string, kind entity.MovementKind, qty int64) {
		_, err := f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: productID, Kind: kind, Quantity: qty})
		require.NoError(t, err)
		clock = clock.Add(time.Hour)
	}
	record("p1", entity.MovementEntry, 1) // 09:00
	record("p2", entity.MovementExit, 2)  // 10:00
	record("p1", entity.MovementExit, 3)  // 11:00

	all := f.movements(t)
	require.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].Quantity)
	assert.Equal(t, int64(1), all[2].Quantity)
	assert.Equal(t, "Producto p1", all[0].ProductName)

	exits, err := f.uc.QueryMovements(ctx, MovementQuery{Filter: entity.MovementFilter{Kind: entity.MovementExit}})
	require.NoError(t, err)
	assert.Len(t, exits, 2)

	since := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	fromTen, err := f.uc.QueryMovements(ctx, MovementQuery{Filter: entity.MovementFilter{ProductID: "p1", Since: &since}})
	require.NoError(t, err)
	require.Len(t, fromTen, 1)
	assert.Equal(t, int64(3), fromTen[0].Quantity)

	// La misma consulta dos veces da el mismo resultado
	again, err := f.uc.QueryMovements(ctx, MovementQuery{Filter: entity.MovementFilter{ProductID: "p1", Since: &since}})
	require.NoError(t, err)
	assert.Equal(t, fromTen, again)

	empty, err := f.uc.QueryMovements(ctx, MovementQuery{Filter: entity.MovementFilter{ProductID: "p3"}})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestQueryMovements_FiltrosInvalidos(t *testing.T) {
	f := newLedger(t, nil)
	ctx := context.Background()

	_, err := f.uc.QueryMovements(ctx, MovementQuery{Filter: entity.MovementFilter{Kind: "ajuste"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	since := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.uc.QueryMovements(ctx, MovementQuery{Filter: entity.MovementFilter{Since: &since, Until: &until}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.uc.QueryMovements(ctx, MovementQuery{Range: "siglo"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRangeStart(t *testing.T) {
	now := time.Date(2024, 3, 31, 15, 30, 0, 0, time.UTC)
	cases := map[string]time.Time{
		RangeDay:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		RangeWeek:  time.Date(2024, 3, 24, 0, 0, 0, 0, time.UTC),
		RangeMonth: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), // 31 feb se normaliza a 2 mar
		RangeYear:  time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	for rango, want := range cases {
		got, err := RangeStart(rango, now)
		require.NoError(t, err, rango)
		assert.Equal(t, want, got, rango)
	}
}

func TestQueryMovements_RangoSoloSinDesde(t *testing.T) {
	f := newLedger(t, nil)
	f.product(t, "p1", 10)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.uc.now = func() time.Time { return old }
	_, err := f.uc.RecordMovement(ctx, RecordMovementInput{ProductID: "p1", Kind: entity.MovementEntry, Quantity: 1})
	require.NoError(t, err)

	f.uc.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	week, err := f.uc.QueryMovements(ctx, MovementQuery{Range: RangeWeek})
	require.NoError(t, err)
	assert.Empty(t, week)

	// Desde explícito tiene prioridad sobre el rango
	since := old.Add(-time.Hour)
	explicit, err := f.uc.QueryMovements(ctx, MovementQuery{Range: RangeWeek, Filter: entity.MovementFilter{Since: &since}})
	require.NoError(t, err)
	assert.Len(t, explicit, 1)
}
